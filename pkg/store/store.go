// Package store is the key-value blob persistence consumed by the
// orchestrator for saved sessions and search history. Backends: in-memory
// (default, tests), Postgres, and Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/guilhermexp/notesbraingem/pkg/core"
	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

// Store is a flat key-value blob store.
type Store interface {
	// Load returns the blob for key, reporting whether it exists.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const (
	sessionKeyPrefix = "session:"
	searchHistoryKey = "search-history"

	maxSearchHistory = 50
)

// SaveSession persists a saved-session envelope under its name.
func SaveSession(ctx context.Context, s Store, saved types.SavedSession) error {
	if strings.TrimSpace(saved.Name) == "" {
		return core.NewInvalidRequestError("session name must not be empty")
	}
	blob, err := json.Marshal(saved)
	if err != nil {
		return core.NewStoreError("encode session", err)
	}
	if err := s.Save(ctx, sessionKeyPrefix+saved.Name, blob); err != nil {
		return core.NewStoreError("save session", err)
	}
	return nil
}

// LoadSession restores a saved session by name.
func LoadSession(ctx context.Context, s Store, name string) (types.SavedSession, bool, error) {
	blob, ok, err := s.Load(ctx, sessionKeyPrefix+name)
	if err != nil {
		return types.SavedSession{}, false, core.NewStoreError("load session", err)
	}
	if !ok {
		return types.SavedSession{}, false, nil
	}
	var saved types.SavedSession
	if err := json.Unmarshal(blob, &saved); err != nil {
		return types.SavedSession{}, false, core.NewStoreError("decode session", err)
	}
	return saved, true, nil
}

// DeleteSession removes a saved session by name.
func DeleteSession(ctx context.Context, s Store, name string) error {
	if err := s.Delete(ctx, sessionKeyPrefix+name); err != nil {
		return core.NewStoreError("delete session", err)
	}
	return nil
}

// ListSessions returns all saved session names, sorted.
func ListSessions(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, sessionKeyPrefix)
	if err != nil {
		return nil, core.NewStoreError("list sessions", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, sessionKeyPrefix))
	}
	sort.Strings(names)
	return names, nil
}

// AppendSearchHistory records one search topic, keeping the most recent
// maxSearchHistory entries.
func AppendSearchHistory(ctx context.Context, s Store, entry types.SearchHistoryEntry) error {
	entries, err := LoadSearchHistory(ctx, s)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > maxSearchHistory {
		entries = entries[len(entries)-maxSearchHistory:]
	}
	blob, err := json.Marshal(entries)
	if err != nil {
		return core.NewStoreError("encode search history", err)
	}
	if err := s.Save(ctx, searchHistoryKey, blob); err != nil {
		return core.NewStoreError("save search history", err)
	}
	return nil
}

// LoadSearchHistory returns all recorded search topics, oldest first.
func LoadSearchHistory(ctx context.Context, s Store) ([]types.SearchHistoryEntry, error) {
	blob, ok, err := s.Load(ctx, searchHistoryKey)
	if err != nil {
		return nil, core.NewStoreError("load search history", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []types.SearchHistoryEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, core.NewStoreError("decode search history", err)
	}
	return entries, nil
}

// ClearSearchHistory deletes all recorded search topics.
func ClearSearchHistory(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, searchHistoryKey); err != nil {
		return core.NewStoreError("clear search history", err)
	}
	return nil
}

// Open builds a store from a backend name and address. Supported:
// "memory" (addr ignored), "postgres" (addr is a DSN), "redis" (addr is
// host:port).
func Open(ctx context.Context, backend, addr string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, addr)
	case "redis":
		return OpenRedis(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
