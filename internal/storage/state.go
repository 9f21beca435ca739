package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

const statePrefix = "state:"

func stateKey(sourceID string) []byte {
	return []byte(statePrefix + sourceID)
}

// GetState returns the stored watcher state of a source.
func (r *BadgerRepository) GetState(ctx context.Context, sourceID string) (domain.WatcherState, bool, error) {
	var (
		state domain.WatcherState
		found bool
	)
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, stateKey(sourceID), &state)
		return err
	})
	if err != nil {
		return domain.WatcherState{}, false, fmt.Errorf("failed to get state for %s: %w", sourceID, err)
	}
	return state, found, nil
}

// SaveState overwrites the watcher state of a source.
func (r *BadgerRepository) SaveState(ctx context.Context, sourceID string, state domain.WatcherState) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, stateKey(sourceID), state)
	})
	if err != nil {
		r.log.WithError(err).WithField("source", sourceID).Error("Failed to save watcher state")
		return fmt.Errorf("failed to save state for %s: %w", sourceID, err)
	}
	r.log.WithFields(logrus.Fields{
		"source": sourceID,
		"url":    state.LastArticleURL,
	}).Debug("Watcher state saved")
	return nil
}

// States returns every stored watcher state keyed by source id.
func (r *BadgerRepository) States(ctx context.Context) (map[string]domain.WatcherState, error) {
	states := make(map[string]domain.WatcherState)
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(statePrefix), false, func(key []byte, s domain.WatcherState) (bool, error) {
			states[strings.TrimPrefix(string(key), statePrefix)] = s
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list watcher states: %w", err)
	}
	return states, nil
}
