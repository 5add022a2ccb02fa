package store

import (
	"context"
	"log/slog"
)

// FailoverStore degrades every operation to a local fallback backend when
// the primary (networked) backend errors, instead of propagating store
// unavailability to callers.
type FailoverStore struct {
	primary  KeyStore
	fallback KeyStore
}

func NewFailoverStore(primary, fallback KeyStore) *FailoverStore {
	return &FailoverStore{primary: primary, fallback: fallback}
}

func (f *FailoverStore) Put(ctx context.Context, rec ApiKeyRecord) error {
	if err := f.primary.Put(ctx, rec); err != nil {
		slog.Warn("primary key store put failed, using fallback", "error", err)
		return f.fallback.Put(ctx, rec)
	}
	return nil
}

func (f *FailoverStore) Get(ctx context.Context, token string) (*ApiKeyRecord, error) {
	rec, err := f.primary.Get(ctx, token)
	if err != nil {
		slog.Warn("primary key store get failed, using fallback", "error", err)
		return f.fallback.Get(ctx, token)
	}
	return rec, nil
}

func (f *FailoverStore) MarkRevoked(ctx context.Context, token string) (bool, error) {
	ok, err := f.primary.MarkRevoked(ctx, token)
	if err != nil {
		slog.Warn("primary key store revoke failed, using fallback", "error", err)
		return f.fallback.MarkRevoked(ctx, token)
	}
	return ok, nil
}

func (f *FailoverStore) List(ctx context.Context) ([]ApiKeyRecord, error) {
	records, err := f.primary.List(ctx)
	if err != nil {
		slog.Warn("primary key store list failed, using fallback", "error", err)
		return f.fallback.List(ctx)
	}
	return records, nil
}
