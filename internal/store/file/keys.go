// Package file persists API keys in a flat JSON file, the fallback used
// when no networked store is configured or the networked store is down.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nextlevelbuilder/relayd/internal/store"
)

// KeyStore keeps the whole key map in memory and rewrites the file in full
// on every mutation. The layout is a JSON object keyed by token.
type KeyStore struct {
	mu   sync.Mutex
	path string
	keys map[string]store.ApiKeyRecord

	watcher *fsnotify.Watcher
}

// New loads the file if it exists; a missing file is an empty store.
func New(path string) (*KeyStore, error) {
	ks := &KeyStore{path: path, keys: make(map[string]store.ApiKeyRecord)}
	if err := ks.load(); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *KeyStore) load() error {
	data, err := os.ReadFile(ks.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read key file: %w", err)
	}
	keys := make(map[string]store.ApiKeyRecord)
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("parse key file %s: %w", ks.path, err)
	}
	ks.keys = keys
	return nil
}

// save is called with ks.mu held.
func (ks *KeyStore) save() error {
	data, err := json.MarshalIndent(ks.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}
	if dir := filepath.Dir(ks.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create key file dir: %w", err)
		}
	}
	if err := os.WriteFile(ks.path, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func (ks *KeyStore) Put(_ context.Context, rec store.ApiKeyRecord) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[rec.Token] = rec
	return ks.save()
}

func (ks *KeyStore) Get(_ context.Context, token string) (*store.ApiKeyRecord, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	rec, ok := ks.keys[token]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (ks *KeyStore) MarkRevoked(_ context.Context, token string) (bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	rec, ok := ks.keys[token]
	if !ok {
		return false, nil
	}
	rec.Revoked = true
	ks.keys[token] = rec
	return true, ks.save()
}

func (ks *KeyStore) List(_ context.Context) ([]store.ApiKeyRecord, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	records := make([]store.ApiKeyRecord, 0, len(ks.keys))
	for _, rec := range ks.keys {
		records = append(records, rec)
	}
	return records, nil
}

// Watch reloads the store when the file is edited outside the process
// (operators hand-edit the fallback file). It returns immediately; the
// watch goroutine stops when ctx is done.
func (ks *KeyStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create key file watcher: %w", err)
	}
	dir := filepath.Dir(ks.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch key file dir: %w", err)
	}
	ks.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(ks.path) ||
					!event.Op.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				ks.mu.Lock()
				if err := ks.load(); err != nil {
					slog.Warn("key file reload failed", "error", err)
				} else {
					slog.Info("key file reloaded after external edit", "path", ks.path)
				}
				ks.mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("key file watcher error", "error", err)
			}
		}
	}()
	return nil
}
