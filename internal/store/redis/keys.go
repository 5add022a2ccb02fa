// Package redis persists API keys in Redis, the networked backend used
// when a connection string is configured.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/relayd/internal/store"
)

const (
	keyPrefix = "relayd:apikey:"
	indexKey  = "relayd:apikeys"
)

// KeyStore stores one JSON value per token plus a set indexing all tokens.
type KeyStore struct {
	client *redis.Client
}

// New parses the connection URL and verifies the server is reachable.
func New(ctx context.Context, url string) (*KeyStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &KeyStore{client: client}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client) *KeyStore {
	return &KeyStore{client: client}
}

func (ks *KeyStore) Close() error { return ks.client.Close() }

func (ks *KeyStore) Put(ctx context.Context, rec store.ApiKeyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode api key record: %w", err)
	}
	pipe := ks.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+rec.Token, data, 0)
	pipe.SAdd(ctx, indexKey, rec.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

func (ks *KeyStore) Get(ctx context.Context, token string) (*store.ApiKeyRecord, error) {
	data, err := ks.client.Get(ctx, keyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load api key: %w", err)
	}
	var rec store.ApiKeyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode api key record: %w", err)
	}
	return &rec, nil
}

func (ks *KeyStore) MarkRevoked(ctx context.Context, token string) (bool, error) {
	rec, err := ks.Get(ctx, token)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	rec.Revoked = true
	if err := ks.Put(ctx, *rec); err != nil {
		return false, err
	}
	return true, nil
}

func (ks *KeyStore) List(ctx context.Context) ([]store.ApiKeyRecord, error) {
	tokens, err := ks.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list api key tokens: %w", err)
	}
	records := make([]store.ApiKeyRecord, 0, len(tokens))
	for _, token := range tokens {
		rec, err := ks.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}
