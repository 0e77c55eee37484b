package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Store loads and saves one preferences blob.
type Store struct {
	kv  KV
	key string
	log logrus.FieldLogger

	mu sync.Mutex
}

func NewStore(kv KV, key string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{kv: kv, key: key, log: log.WithField("prefs_key", key)}
}

// Load returns the stored preferences, or the defaults when the blob is
// missing, unreadable or corrupt. It never fails.
func (s *Store) Load(ctx context.Context) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) Preferences {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WithError(err).Warn("preferences unavailable, using defaults")
		}
		return Defaults()
	}
	var stored Patch
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.log.WithError(err).Warn("preferences corrupt, using defaults")
		return Defaults()
	}
	return Defaults().Apply(stored)
}

// Save merges patch into the stored preferences and writes the result.
func (s *Store) Save(ctx context.Context, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.load(ctx).Apply(patch)
	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
