// Package store manages API keys: issuance, validation, revocation and the
// pluggable backends that persist them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApiKeyRecord is one issued API key. Token is the only credential.
type ApiKeyRecord struct {
	Token     string    `json:"key"`
	Label     string    `json:"label,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// Expired reports whether the record's validity window has passed.
func (r ApiKeyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Validation failure taxonomy, surfaced to HTTP callers as reason codes.
var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyRevoked  = errors.New("api key revoked")
	ErrKeyExpired  = errors.New("api key expired")
)

// KeyStore is the persistence capability behind the key service. The
// service never branches on which backend is active.
type KeyStore interface {
	Put(ctx context.Context, rec ApiKeyRecord) error
	// Get returns nil (no error) when the token is unknown.
	Get(ctx context.Context, token string) (*ApiKeyRecord, error)
	// MarkRevoked flips the record to revoked, reporting whether it existed.
	MarkRevoked(ctx context.Context, token string) (bool, error)
	List(ctx context.Context) ([]ApiKeyRecord, error)
}

const (
	// DefaultKeyDays is the validity applied when the caller picks none.
	DefaultKeyDays = 30
	// MaxKeyDays caps caller-chosen validity.
	MaxKeyDays = 365
)

// Service implements key issuance and validation on top of a KeyStore.
type Service struct {
	backend KeyStore
}

func NewService(backend KeyStore) *Service {
	return &Service{backend: backend}
}

// Create issues a new key valid for durationDays (defaulted and capped) and
// persists it.
func (s *Service) Create(ctx context.Context, label, owner string, durationDays int) (ApiKeyRecord, error) {
	if durationDays <= 0 {
		durationDays = DefaultKeyDays
	}
	if durationDays > MaxKeyDays {
		durationDays = MaxKeyDays
	}

	now := time.Now().UTC()
	rec := ApiKeyRecord{
		Token:     newToken(),
		Label:     label,
		Owner:     owner,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, durationDays),
	}
	if err := s.backend.Put(ctx, rec); err != nil {
		return ApiKeyRecord{}, fmt.Errorf("persist api key: %w", err)
	}
	return rec, nil
}

// Validate resolves a token to its record or one of the taxonomy errors.
func (s *Service) Validate(ctx context.Context, token string) (*ApiKeyRecord, error) {
	if token == "" {
		return nil, ErrKeyNotFound
	}
	rec, err := s.backend.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load api key: %w", err)
	}
	if rec == nil {
		return nil, ErrKeyNotFound
	}
	if rec.Revoked {
		return rec, ErrKeyRevoked
	}
	if rec.Expired(time.Now().UTC()) {
		return rec, ErrKeyExpired
	}
	return rec, nil
}

// Revoke marks a token revoked, reporting whether it existed.
func (s *Service) Revoke(ctx context.Context, token string) (bool, error) {
	return s.backend.MarkRevoked(ctx, token)
}

// List returns all records.
func (s *Service) List(ctx context.Context) ([]ApiKeyRecord, error) {
	return s.backend.List(ctx)
}

// SweepExpired marks naturally-expired keys as revoked. Validation already
// rejects expired keys on its own; the sweep only keeps listings tidy.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list api keys: %w", err)
	}
	swept := 0
	for _, rec := range records {
		if rec.Revoked || !rec.Expired(now) {
			continue
		}
		ok, err := s.backend.MarkRevoked(ctx, rec.Token)
		if err != nil {
			return swept, fmt.Errorf("revoke expired key: %w", err)
		}
		if ok {
			swept++
		}
	}
	return swept, nil
}

// newToken produces an unguessable opaque token (uuid4 without dashes,
// matching the original key format).
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
