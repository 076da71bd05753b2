package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/auth/password"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 7 * 24 * time.Hour

	maxProfileFieldLength = 120
)

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	sessionTTL  time.Duration
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
}

func New(log *zap.Logger, cfg config.Config, clk clock.Clock, repo domain.Repository, sessionRepo domain.SessionRepository, genID *snowflake.Node) domain.Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:         log.Named("auth.service"),
		clock:       clk,
		sessionTTL:  ttl,
		repo:        repo,
		sessionRepo: sessionRepo,
		genID:       genID,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !password.Strong(req.Password) {
		return nil, domain.ErrWeakPassword
	}
	displayName, companyName, err := normalizeProfile(req.DisplayName, req.CompanyName)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:                  s.genID.Generate(),
		Email:               email,
		PasswordHash:        hashed,
		DisplayName:         displayName,
		CompanyName:         companyName,
		LastPasswordChanged: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			password.Decoy(req.Password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		s.log.Debug("login rejected", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}
	if password.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, req.Password)
	}

	return s.issueSession(ctx, user, req.UserAgent, req.IPAddress)
}

// rehash upgrades a stored hash to the current parameters after a successful
// login. Failure leaves the old hash in place.
func (s *Service) rehash(ctx context.Context, user *domain.User, plain string) {
	hashed, err := password.Hash(plain)
	if err == nil {
		err = s.repo.UpdateFields(ctx, user.ID, map[string]any{"password_hash": hashed})
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = hashed
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}
	if session.RevokedAt != nil {
		return nil
	}

	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now().UTC())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	session.LastSeenAt = now

	return session, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if id == 0 {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// ChangePassword replaces the password hash, revokes every session of the user
// and returns a fresh session for the caller.
func (s *Service) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) (*domain.LoginResult, error) {
	user, err := s.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !password.Verify(req.CurrentPassword, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Strong(req.NewPassword) {
		return nil, domain.ErrWeakPassword
	}
	if req.NewPassword == req.CurrentPassword {
		return nil, domain.ErrPasswordUnchanged
	}

	hashed, err := password.Hash(req.NewPassword)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash":         hashed,
		"last_password_changed": now,
		"updated_at":            now,
	}); err != nil {
		return nil, err
	}
	user.PasswordHash = hashed
	user.LastPasswordChanged = &now
	user.UpdatedAt = now

	revoked, err := s.sessionRepo.RevokeAllForUser(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	s.log.Info("password changed",
		zap.String("user_id", user.ID.String()),
		zap.Int64("revoked_sessions", revoked),
	)

	return s.issueSession(ctx, user, req.UserAgent, req.IPAddress)
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.User, error) {
	displayName, companyName, err := normalizeProfile(req.DisplayName, req.CompanyName)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"display_name": displayName,
		"company_name": companyName,
		"updated_at":   now,
	}); err != nil {
		return nil, err
	}

	user.DisplayName = displayName
	user.CompanyName = companyName
	user.UpdatedAt = now
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*domain.LoginResult, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(userAgent),
		IPAddress:        strings.TrimSpace(ipAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func normalizeProfile(displayName, companyName string) (string, string, error) {
	displayName = strings.TrimSpace(displayName)
	companyName = strings.TrimSpace(companyName)
	if utf8.RuneCountInString(displayName) > maxProfileFieldLength || utf8.RuneCountInString(companyName) > maxProfileFieldLength {
		return "", "", domain.ErrInvalidProfile
	}
	return displayName, companyName, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
