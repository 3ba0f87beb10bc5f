package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// RegisterParams carries the raw signup form fields. Username and Email
// are normalized before any lookup or write.
type RegisterParams struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// UserService manages accounts: registration, credential verification and
// password changes.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	bcryptCost  int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{db: db, repomanager: m, bcryptCost: cfg.BcryptCost}
}

// normalizeIdentifier strips all whitespace and lowercases, so lookups by
// email or username are insensitive to case and stray spaces.
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// Register creates a new account. Identifiers are normalized, the password
// must satisfy the strength policy, and both email and username must be
// unused. The account is created active.
func (s *UserService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	email := normalizeIdentifier(p.Email)
	username := normalizeIdentifier(p.Username)

	if err := auth.CheckPasswordStrength(p.Password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}
	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return nil, common.ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	hash, err := auth.HashPassword(p.Password, s.bcryptCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// Authenticate resolves an account by email and verifies the password.
// Every failure, including an unknown email, yields the same
// ErrorUnauthorized so callers cannot probe which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeIdentifier(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// GetByID resolves an account by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// ChangePassword verifies the current password, applies the strength
// policy to the new one, then stores the new hash and deactivates every
// session of the user in one transaction. Either both happen or neither:
// a password change must not leave old sessions alive.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, current) {
		return common.ErrorUnauthorized
	}
	if err := auth.CheckPasswordStrength(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return common.ErrorInternal
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if _, err := s.repomanager.Sessions(tx).DeactivateAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("error revoking sessions: %w", err)
		}
		return nil
	})
}
