package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell.app/internal/ids"
	"inkwell.app/internal/token"
)

const defaultAccessTTL = time.Hour

// Service issues and verifies the opaque access tokens that back login
// links, email changes and bearer authentication.
type Service struct {
	users  UserStore
	tokens token.Store

	accessTTL time.Duration
	now       func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithAccessTTL overrides the default token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(users UserStore, tokens token.Store, opts ...Option) (*Service, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("auth: user and token stores are required")
	}
	s := &Service{
		users:     users,
		tokens:    tokens,
		accessTTL: defaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueToken mints an opaque token for the user. The returned string is the
// only copy of the bearer credential that will ever exist; the store keeps
// the hash alone. A non-positive ttl falls back to the configured default.
func (s *Service) IssueToken(ctx context.Context, userID, purpose string, ttl time.Duration, protectedValue string) (string, *token.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, errors.New("auth: userID is required")
	}
	if purpose == "" {
		purpose = token.PurposeAuth
	}
	if ttl <= 0 {
		ttl = s.accessTTL
	}

	secret, err := token.NewSecret()
	if err != nil {
		return "", nil, err
	}
	rec := &token.Record{
		ID:             ids.New(),
		UserID:         userID,
		Hash:           token.HashSecret(secret),
		Purpose:        purpose,
		ProtectedValue: protectedValue,
		ExpiresAt:      s.now().UTC().Add(ttl),
	}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return "", nil, err
	}
	return token.Encode(token.PrefixAccess, rec.ID, secret), rec, nil
}

// VerifyToken resolves a bearer string to its user without consuming the
// token. This is the per-request path used by the authentication
// middleware.
func (s *Service) VerifyToken(ctx context.Context, raw string) (*User, *token.Record, error) {
	rec, err := s.checkToken(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.Find(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if user.Status != UserStatusActive {
		return nil, nil, ErrInvalidToken
	}
	return user, rec, nil
}

// RedeemToken performs the single-use redemption contract: decode, look
// up, reject missing or expired, verify the secret in constant time, then
// consume atomically. Under concurrent redemption of the same bearer
// string at most one caller succeeds; the rest observe ErrInvalidToken.
func (s *Service) RedeemToken(ctx context.Context, raw string) (*token.Record, error) {
	rec, err := s.checkToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Consume(ctx, rec.ID); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) checkToken(ctx context.Context, raw string) (*token.Record, error) {
	id, secret, ok := token.Decode(token.PrefixAccess, raw)
	if !ok {
		return nil, ErrInvalidToken
	}
	rec, err := s.tokens.Find(ctx, id)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if token.Expired(rec.ExpiresAt, s.now().UTC()) {
		return nil, ErrInvalidToken
	}
	if !token.VerifySecret(rec.Hash, secret) {
		return nil, ErrInvalidToken
	}
	return rec, nil
}

// Login verifies credentials and issues a fresh auth token. Unknown email,
// wrong password and disabled accounts all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *token.Record, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, err
	}
	if user.Status != UserStatusActive {
		return "", nil, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", nil, nil, ErrInvalidCredentials
	}
	bearer, rec, err := s.IssueToken(ctx, user.ID, token.PurposeAuth, 0, "")
	if err != nil {
		return "", nil, nil, err
	}
	return bearer, rec, user, nil
}

// Logout consumes the caller's bearer token. A token that is already gone
// is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, raw string) error {
	id, _, ok := token.Decode(token.PrefixAccess, raw)
	if !ok {
		return nil
	}
	if err := s.tokens.Consume(ctx, id); err != nil && !errors.Is(err, token.ErrNotFound) {
		return err
	}
	return nil
}

// InvalidateUser drops every outstanding token for the user. Called when
// an account is disabled or its password changes.
func (s *Service) InvalidateUser(ctx context.Context, userID string) error {
	return s.tokens.DeleteByUser(ctx, userID)
}
