package seed_test

import (
	"testing"

	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/auth/password"
	"github.com/justinhw1987/invoiceflow/internal/config"
	"github.com/justinhw1987/invoiceflow/internal/seed"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"go.uber.org/zap"
)

func TestEnsureBootstrapUser(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&authdomain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{Bootstrap: config.BootstrapConfig{
		AdminEmail:    "Owner@Example.com",
		AdminPassword: "correct-horse",
		AdminName:     "Owner",
	}}

	for i := 0; i < 2; i++ {
		if err := seed.EnsureBootstrapUser(conn, cfg, zap.NewNop()); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	var users []authdomain.User
	if err := conn.Find(&users).Error; err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected exactly one user, got %d", len(users))
	}
	if users[0].Email != "owner@example.com" {
		t.Fatalf("expected lowercased email, got %s", users[0].Email)
	}
	if !password.Verify("correct-horse", users[0].PasswordHash) {
		t.Fatalf("expected stored hash to verify")
	}
}

func TestEnsureBootstrapUserSkipsWithoutCredentials(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&authdomain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := seed.EnsureBootstrapUser(conn, config.Config{}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var count int64
	conn.Model(&authdomain.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no users, got %d", count)
	}
}
