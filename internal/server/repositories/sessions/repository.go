// Package sessions declares the token-store contract: the persisted record
// of each issued credential pair and its lifecycle operations.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines the token store. Implementations must guarantee that
// Create is atomic (no partially written record is ever visible) and that
// DeactivateOne takes a row lock, or an equivalent compare-and-swap, before
// flipping the active flag.
type Repository interface {
	// Create persists a new active record for the credential pair.
	Create(ctx context.Context, userID, refreshToken, accessToken string, meta models.SessionMeta) (*models.Session, error)

	// FindByRefreshToken is a point lookup by the refresh credential value.
	// Returns common.ErrorNotFound when no record exists.
	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error)

	// RotateAccess overwrites only the access credential and the updated
	// timestamp of the identified record.
	RotateAccess(ctx context.Context, id string, accessToken string) error

	// DeactivateOne transitions exactly one active record to inactive and
	// reports whether this call won the transition. Losing a concurrent
	// race, or repeating the call, yields (false, nil).
	DeactivateOne(ctx context.Context, refreshToken string) (bool, error)

	// DeactivateAllForUser transitions every active record owned by the
	// user to inactive in one set-based statement and returns the count.
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)
}
