/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Persistent model store on BadgerDB. Models are kept as JSON documents under
model/<name> together with a revision counter and the time of the last write.
*/

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "model/"

// ErrNotFound is returned for models the store does not hold
var ErrNotFound = fuzzy.ErrNotFound

// Config configures the store
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *logrus.Logger

	NumVersionsToKeep int
	GCInterval        time.Duration
	GCDiscardRatio    float64
}

// DefaultConfig returns settings for a persistent store at path
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns settings for a throwaway store
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// Record is a stored model with its bookkeeping
type Record struct {
	Document *modelfile.Document `json:"document"`
	Revision int                 `json:"revision"`
	Updated  time.Time           `json:"updated"`
}

// Store keeps models in badger. Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *logrus.Logger
}

// Open opens or creates the store
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.NumVersionsToKeep <= 0 {
		cfg.NumVersionsToKeep = 1
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func key(name string) []byte {
	return []byte(keyPrefix + strings.ToLower(strings.TrimSpace(name)))
}

// Put stores m, replacing any model with the same name
func (s *Store) Put(ctx context.Context, m *fuzzy.Model) (*Record, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return s.PutDocument(ctx, modelfile.FromModel(m))
}

// PutDocument stores a document after checking it builds a valid model
func (s *Store) PutDocument(ctx context.Context, doc *modelfile.Document) (*Record, error) {
	m, err := doc.Model()
	if err != nil {
		return nil, err
	}
	// canonical form: normalised names, rule text as printed
	doc = modelfile.FromModel(m)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec Record
	err = s.db.Update(func(txn *badger.Txn) error {
		prev, err := get(txn, doc.Name)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			rec.Revision = prev.Revision
		}
		rec.Document = doc
		rec.Revision++
		rec.Updated = time.Now().UTC()

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set(key(doc.Name), data)
	})
	if err != nil {
		return nil, fmt.Errorf("store model %s: %w", doc.Name, err)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"model":    doc.Name,
			"revision": rec.Revision,
		}).Debug("Store saved model")
	}
	return &rec, nil
}

func get(txn *badger.Txn, name string) (*Record, error) {
	item, err := txn.Get(key(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("model %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode model %s: %w", name, err)
	}
	return &rec, nil
}

// GetRecord returns the stored record for name
func (s *Store) GetRecord(ctx context.Context, name string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = get(txn, name)
		return err
	})
	return rec, err
}

// Get returns a fresh model built from the stored document
func (s *Store) Get(ctx context.Context, name string) (*fuzzy.Model, error) {
	rec, err := s.GetRecord(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.Document.Model()
}

// Delete removes a model
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("model %s: %w", name, ErrNotFound)
			}
			return err
		}
		return txn.Delete(key(name))
	})
}

// List returns the stored model names in key order
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return names, err
}
