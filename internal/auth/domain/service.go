package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) (*LoginResult, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error)
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	CompanyName string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}

type ChangePasswordRequest struct {
	UserID          snowflake.ID
	CurrentPassword string
	NewPassword     string
	UserAgent       string
	IPAddress       string
}

// UpdateProfileRequest replaces both profile fields. Empty strings clear them.
type UpdateProfileRequest struct {
	UserID      snowflake.ID
	DisplayName string
	CompanyName string
}
