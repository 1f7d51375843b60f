package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/store"
)

// UserStore is the part of the store seeding needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

// SeedAdmin creates the bootstrap admin account when it does not exist yet.
// It is a no-op when email is empty.
func SeedAdmin(ctx context.Context, s UserStore, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	_, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		slog.Info("admin seed skipped, account exists", "email", email)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up seed admin: %w", err)
	}
	if len(password) < 6 {
		return errors.New("seed admin password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}
	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := s.CreateUser(ctx, &admin); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	slog.Info("seeded admin account", "email", email, "user_id", admin.ID)
	return nil
}
