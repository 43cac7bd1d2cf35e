// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package artifact persists trained model parameters in BadgerDB so a
// restarted process can serve forecasts without retraining. Artifacts are
// versioned per model kind; a "latest" pointer tracks the newest version.
package artifact

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/logging"
)

// Model kinds stored by the service.
const (
	KindShortHorizon = "gbr"
	KindLongHorizon  = "lstm"
)

// ErrNotFound indicates no artifact exists for the requested kind.
var ErrNotFound = errors.New("artifact: not found")

// Artifact is one persisted snapshot of a trained model.
type Artifact struct {
	// Kind identifies the model family, one of the Kind constants.
	Kind string `json:"kind"`

	// Version increments monotonically per kind on every save.
	Version int `json:"version"`

	// TrainedAt is when the model finished training.
	TrainedAt time.Time `json:"trained_at"`

	// SchemaFingerprint is the feature schema the model was trained under.
	// Inference must refuse artifacts with a mismatched fingerprint.
	SchemaFingerprint string `json:"schema_fingerprint"`

	// TrainingSamples is the size of the training set.
	TrainingSamples int `json:"training_samples"`

	// Params holds the model's serialized parameters, opaque to the store.
	Params json.RawMessage `json:"params"`

	// Metrics holds the model's training metrics, opaque to the store.
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// Store persists artifacts in a dedicated BadgerDB directory. Safe for
// concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.Mutex
	closed bool
}

// Open creates or opens the artifact database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("artifact: empty store path")
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("artifact: open store: %w", err)
	}

	logging.Info().Str("path", path).Msg("Artifact store opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("artifact: open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

func versionKey(kind string, version int) []byte {
	return []byte(fmt.Sprintf("artifact:%s:%08d", kind, version))
}

func latestKey(kind string) []byte {
	return []byte("artifact:" + kind + ":latest")
}

// Save persists the artifact under the next version for its kind and moves
// the latest pointer. The assigned version is written back into a.Version.
func (s *Store) Save(a *Artifact) error {
	if a.Kind == "" {
		return fmt.Errorf("artifact: empty kind")
	}

	// Versions are assigned under the store lock so concurrent saves of the
	// same kind cannot collide.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("artifact: store closed")
	}

	latest, err := s.loadLatestLocked(a.Kind)
	switch {
	case err == nil:
		a.Version = latest.Version + 1
	case errors.Is(err, ErrNotFound):
		a.Version = 1
	default:
		return err
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", a.Kind, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(versionKey(a.Kind, a.Version), payload); err != nil {
			return err
		}
		return txn.Set(latestKey(a.Kind), payload)
	})
	if err != nil {
		return fmt.Errorf("artifact: save %s v%d: %w", a.Kind, a.Version, err)
	}

	logging.Info().
		Str("kind", a.Kind).
		Int("version", a.Version).
		Str("schema", a.SchemaFingerprint).
		Msg("Artifact saved")
	return nil
}

// LoadLatest returns the newest artifact for the kind, or ErrNotFound.
func (s *Store) LoadLatest(kind string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("artifact: store closed")
	}
	return s.loadLatestLocked(kind)
}

func (s *Store) loadLatestLocked(kind string) (*Artifact, error) {
	var a Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey(kind))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: kind=%s", ErrNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: load latest %s: %w", kind, err)
	}
	return &a, nil
}

// LoadVersion returns one specific artifact version, or ErrNotFound.
func (s *Store) LoadVersion(kind string, version int) (*Artifact, error) {
	var a Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey(kind, version))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: kind=%s version=%d", ErrNotFound, kind, version)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: load %s v%d: %w", kind, version, err)
	}
	return &a, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
