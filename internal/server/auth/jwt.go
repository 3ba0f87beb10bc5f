// Package auth implements the credential codec: signed, expiring tokens
// that carry a subject identity and a type tag, plus password hashing for
// the user directory.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// TokenKind is the credential type tag. It is fixed at issuance and must
// match the operation consuming the credential: a refresh credential is
// never accepted where an access credential is required, and vice versa.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the signed payload: subject identity, absolute expiry
// (epoch seconds, via RegisteredClaims) and the type tag.
type Claims struct {
	jwt.RegisteredClaims
	Identity  string    `json:"identity"`
	TokenType TokenKind `json:"type"`
}

// TokenPayload is the decoded view of a credential. ExpiresAt is returned
// raw: the codec verifies signature and shape only, and each call site
// compares expiry against its own clock.
type TokenPayload struct {
	Identity  string
	TokenType TokenKind
	ExpiresAt time.Time
}

// Expired reports whether the credential's expiry instant has passed.
func (p *TokenPayload) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

// GenerateToken builds a signed HS256 credential for the given identity
// with an expiry of now+validity. Signature covers the full payload, so
// changing any byte of the serialized form invalidates it.
func GenerateToken(identity string, kind TokenKind, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Identity:  identity,
		TokenType: kind,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// DecodeToken verifies the signature and structural shape of a serialized
// credential and returns its payload. Any failure (bad signature,
// malformed payload, unknown algorithm, unparsable identity) collapses
// to common.ErrInvalidToken; the raw cause is never propagated.
//
// Expiry is deliberately not enforced here. Call sites apply their own
// clock policy against the returned ExpiresAt.
func DecodeToken(tokenString string, secretKey []byte) (*TokenPayload, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if _, err := uuid.Parse(claims.Identity); err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.TokenType != TokenKindAccess && claims.TokenType != TokenKindRefresh {
		return nil, common.ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, common.ErrInvalidToken
	}

	return &TokenPayload{
		Identity:  claims.Identity,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
