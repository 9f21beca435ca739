package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is the number of history entries kept before the oldest are evicted.
const DefaultHistoryLimit = 1000

// BadgerRepository implements Repository on a single BadgerDB directory.
// Key prefixes: "state:" for watcher state, "hist:" for history, "user:" for users.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger

	historyLimit int

	// Serializes read-modify-write sequences so concurrent callers never
	// hit transaction conflicts or lose updates.
	mu sync.Mutex
}

// Option tweaks a BadgerRepository.
type Option func(*BadgerRepository)

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(r *BadgerRepository) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// NewBadgerRepository opens (or creates) the database at dbPath.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger, opts ...Option) (*BadgerRepository, error) {
	bopts := badger.DefaultOptions(dbPath)
	bopts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(bopts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	repo := &BadgerRepository{
		db:           db,
		log:          logger.WithField("component", "repository"),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// RunGC reclaims value log space every interval until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: no rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// getJSON loads key into out. It reports false when the key does not exist.
func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, fmt.Errorf("failed to decode value for key %s: %w", key, err)
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	return txn.SetEntry(badger.NewEntry(key, data))
}

// scanPrefix decodes every value under prefix. newest iterates in reverse key order.
func scanPrefix[T any](txn *badger.Txn, prefix []byte, newest bool, visit func(key []byte, v T) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = newest
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if newest {
		seek = append(append([]byte{}, prefix...), 0xFF)
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("failed to decode value for key %s: %w", item.Key(), err)
		}
		more, err := visit(item.KeyCopy(nil), v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
