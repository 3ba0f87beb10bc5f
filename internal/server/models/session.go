package models

import "time"

// Session is the persisted record of one issued credential pair, keyed by
// the refresh credential value. The access credential field is overwritten
// on each successful refresh; everything else is immutable after creation
// except IsActive, which is flipped to false on logout or bulk revocation.
// Records are never physically deleted here.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	AccessToken  string
	IsActive     bool
	UserAgent    string
	IPAddress    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionMeta is client metadata captured at login for auditing.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}
