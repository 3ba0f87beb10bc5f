// Package common defines shared constants and sentinel errors used across
// authkeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid, forged or malformed credential).
	ErrInvalidToken = errors.New("invalid token")

	// Session lifecycle errors. A refresh attempt against an expired,
	// revoked or unknown session collapses to ErrSessionExpired; the
	// caller must force a re-login.
	ErrSessionExpired = errors.New("session expired")

	// Registration / password-change errors.
	ErrEmailTaken      = errors.New("email already registered")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrPasswordTooWeak = errors.New("password too weak")
)
