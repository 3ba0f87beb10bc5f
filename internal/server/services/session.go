// Package services contains server-side business logic: account management
// and the credential session lifecycle (login, refresh, logout, bulk
// revocation).
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles the short-lived access credential and the long-lived
// refresh credential minted together at login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshResult carries the replacement access credential minted by a
// successful refresh. The refresh credential itself is not rotated.
type RefreshResult struct {
	AccessToken string
}

// SessionService owns the lifecycle of credential sessions:
//   - Login: mint a pair and persist its record
//   - Refresh: validate the presented pair and rotate the access credential
//   - Logout: deactivate one session, idempotently
//   - RevokeAll: deactivate every active session of a user
type SessionService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	jwtSecret            []byte
	accessTokenValidity  time.Duration
	refreshTokenValidity time.Duration
}

// NewSessionService constructs a SessionService from server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SessionService {
	return &SessionService{
		db:                   db,
		repomanager:          m,
		jwtSecret:            []byte(cfg.SecretKey),
		accessTokenValidity:  cfg.AccessTokenValidity,
		refreshTokenValidity: cfg.RefreshTokenValidity,
	}
}

// Login mints an access/refresh pair for the user and persists the session
// record. Both credentials are generated before anything is written, so a
// signing failure never leaves a half-created session behind.
func (s *SessionService) Login(ctx context.Context, userID string, meta models.SessionMeta) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, auth.TokenKindAccess, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateToken(userID, auth.TokenKindRefresh, s.jwtSecret, s.refreshTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Sessions(s.db)
	if _, err := repo.Create(ctx, userID, refresh, access, meta); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh validates the presented refresh credential against its stored
// session record and, on success, rotates the access credential. The new
// access credential is always minted, even if the presented one has not
// expired yet.
//
// Failure surface is deliberately coarse: every problem with the refresh
// credential or its record (bad signature, wrong type, expired, unknown,
// deactivated, or an access value that does not match the stored one)
// collapses to ErrSessionExpired, and a missing or deactivated owner
// collapses to ErrorUnauthorized. A failed refresh never deactivates the
// session.
func (s *SessionService) Refresh(ctx context.Context, presentedRefresh, presentedAccess string) (*RefreshResult, error) {
	payload, err := auth.DecodeToken(presentedRefresh, s.jwtSecret)
	if err != nil {
		return nil, common.ErrSessionExpired
	}
	if payload.TokenType != auth.TokenKindRefresh {
		return nil, common.ErrSessionExpired
	}
	if payload.Expired(time.Now()) {
		return nil, common.ErrSessionExpired
	}

	sessionRepo := s.repomanager.Sessions(s.db)
	session, err := sessionRepo.FindByRefreshToken(ctx, presentedRefresh)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionExpired
		}
		return nil, common.ErrorInternal
	}
	if !session.IsActive {
		return nil, common.ErrSessionExpired
	}
	// The stored access value binds the pair members together: a refresh
	// credential presented with any other access credential is not honored.
	if subtle.ConstantTimeCompare([]byte(session.AccessToken), []byte(presentedAccess)) != 1 {
		return nil, common.ErrSessionExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}

	access, err := auth.GenerateToken(user.ID, auth.TokenKindAccess, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := sessionRepo.RotateAccess(ctx, session.ID, access); err != nil {
		return nil, common.ErrorInternal
	}
	return &RefreshResult{AccessToken: access}, nil
}

// Logout deactivates the session identified by the refresh credential.
// It succeeds whether or not such a session exists: repeating a logout,
// or presenting a value that was never issued, is indistinguishable from
// the first successful call.
func (s *SessionService) Logout(ctx context.Context, presentedRefresh string) error {
	repo := s.repomanager.Sessions(s.db)
	if _, err := repo.DeactivateOne(ctx, presentedRefresh); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RevokeAll deactivates every active session of the user and returns how
// many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	repo := s.repomanager.Sessions(s.db)
	count, err := repo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, common.ErrorInternal
	}
	return count, nil
}
