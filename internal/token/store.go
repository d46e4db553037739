package token

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("token: not found")
)

// Purpose tags what a token was issued for.
const (
	PurposeAuth        = "auth"
	PurposeEmailChange = "email-change"
)

// Record is a persisted access token. Only the hash of the secret is ever
// stored; the raw secret is discarded immediately after hashing.
type Record struct {
	ID             string
	UserID         string
	Hash           string
	Purpose        string
	ProtectedValue string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store manages access token persistence.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id string) (*Record, error)
	// Consume deletes the record if it still exists. It returns ErrNotFound
	// when a concurrent redeemer got there first, which is what makes
	// single-use redemption race-free.
	Consume(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
