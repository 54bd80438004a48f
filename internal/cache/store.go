// Package cache persists build artifacts descriptors across runs and decides
// what must be rebuilt.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evansims/contentbuild/internal/errors"
)

// EntryKind distinguishes document and image cache entries.
type EntryKind string

const (
	KindDocument EntryKind = "document"
	KindImage    EntryKind = "image"
)

// Entry describes one cached build result. An entry is usable only while its
// key (the input hash) and ParamHash match freshly computed values and every
// recorded output still exists with its recorded hash.
type Entry struct {
	Kind       EntryKind         `json:"kind"`
	SourcePath string            `json:"source_path"`
	Outputs    map[string]string `json:"outputs"` // output path -> sha256 of file content
	ParamHash  string            `json:"param_hash"`
	RecordedAt time.Time         `json:"recorded_at"`
}

type manifest struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

const manifestVersion = 1

// Store is a persisted key -> Entry mapping. It is loaded once at build
// start and flushed once at build end; Lookup and Record are safe for
// concurrent use by workers.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// Open loads the manifest at path. A missing manifest yields an empty store;
// an unreadable or corrupt manifest yields an empty store plus a cache
// warning — corruption is never fatal, affected keys just become misses.
func Open(path string) (*Store, *errors.BuildError) {
	s := &Store{
		path:    path,
		logger:  slog.Default(),
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, errors.Wrap(err, errors.CategoryCache, errors.SeverityWarning, "unreadable cache manifest").
			WithContext("path", path)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return s, errors.Wrap(err, errors.CategoryCache, errors.SeverityWarning, "corrupt cache manifest, starting empty").
			WithContext("path", path)
	}
	if m.Version != manifestVersion {
		return s, errors.New(errors.CategoryCache, errors.SeverityWarning,
			fmt.Sprintf("cache manifest version %d not supported, starting empty", m.Version)).
			WithContext("path", path)
	}
	if m.Entries != nil {
		s.entries = m.Entries
	}
	s.logger.Debug("Cache manifest loaded", "path", path, "entries", len(s.entries))
	return s, nil
}

// Lookup returns the entry for key, if present.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Record stores a fresh entry for key. Callers must not record partial
// results: an entry's outputs must all exist on disk when recorded.
func (s *Store) Record(key string, e Entry) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	s.dirty = true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// InvalidateMissingSources drops entries whose source file no longer exists
// and returns how many were dropped.
func (s *Store) InvalidateMissingSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if e.SourcePath == "" {
			continue
		}
		if _, err := os.Stat(e.SourcePath); os.IsNotExist(err) {
			delete(s.entries, key)
			dropped++
			s.dirty = true
		}
	}
	if dropped > 0 {
		s.logger.Info("Dropped cache entries for missing sources", "count", dropped)
	}
	return dropped
}

// Flush atomically persists the manifest: the full state is written to a
// temporary file in the same directory and renamed over the old manifest,
// so a killed process never leaves a half-written, falsely-trusted file.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(manifest{Version: manifestVersion, Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache manifest: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache manifest: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache manifest: %w", err)
	}

	s.dirty = false
	s.logger.Debug("Cache manifest flushed", "path", s.path, "entries", len(s.entries))
	return nil
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - paths are build outputs under the configured output dir
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of a byte slice.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
