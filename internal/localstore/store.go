// Package localstore persists small keyed JSON blobs under a state
// directory, playing the role browser local storage plays for the
// web storefront: plain versionless values, corrupt or missing data
// read as absent, and storage failures degrade to an in-memory view
// for the life of the process instead of crashing callers.
package localstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-client/pkg/logger"
)

type Store struct {
	dir  string
	logg *logger.Logger

	mu       sync.Mutex
	mem      map[string][]byte
	degraded bool
}

// New opens the state directory. A directory that cannot be created
// leaves the store in memory-only mode; every operation keeps
// working for the current process.
func New(dir string, logg *logger.Logger) *Store {
	s := &Store{
		dir:  dir,
		logg: logg,
		mem:  map[string][]byte{},
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.degraded = true
		s.warn("state dir unavailable, using in-memory storage", err)
	}
	return s
}

// Get decodes the blob stored under key into dest. It reports false
// for missing, unreadable, or unparsable data and never returns an
// error to the caller.
func (s *Store) Get(key string, dest any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.mem[key]
	if !ok && !s.degraded {
		data, err := os.ReadFile(s.path(key))
		if err != nil {
			return false
		}
		raw = data
		ok = true
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

// Set overwrites the blob under key. The write is atomic from a
// reader's perspective (temp file + rename). A failed write flips
// the store into memory-only mode rather than surfacing an error.
func (s *Store) Set(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.warn("encode state blob", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem[key] = raw
	if s.degraded {
		return
	}
	if err := s.writeAtomic(key, raw); err != nil {
		s.degraded = true
		s.warn("state write failed, continuing in memory", err)
	}
}

// Remove deletes the blob under key entirely, which is distinct from
// storing an empty value.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mem, key)
	if s.degraded {
		return
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.warn("state remove failed", err)
	}
}

// Degraded reports whether the store has fallen back to memory-only
// operation.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) writeAtomic(key string, raw []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, target)
}

func (s *Store) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *Store) warn(msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx := s.logg.WithField(context.Background(), "error", err.Error())
	s.logg.Warn(ctx, msg)
}
