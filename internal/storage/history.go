package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

const (
	historyEntryPrefix = "hist:entry:"
	historyURLPrefix   = "hist:url:"
	historyMetaKey     = "hist:meta"
)

// historyMeta tracks the insertion counter and the number of live entries.
type historyMeta struct {
	Seq   uint64 `json:"seq"`
	Count int    `json:"count"`
}

// historyEntryKey pads the sequence so that key order equals insertion order.
// Format: hist:entry:{seq:020d}
func historyEntryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", historyEntryPrefix, seq))
}

// historyURLKey indexes an entry by its exact URL.
// Format: hist:url:{url}
func historyURLKey(url string) []byte {
	return []byte(historyURLPrefix + url)
}

// AddArticle prepends entry to the history unless its URL is already stored,
// then evicts the oldest entries beyond the history limit.
func (r *BadgerRepository) AddArticle(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	log := r.log.WithFields(logrus.Fields{
		"url":    entry.URL,
		"source": entry.Source,
	})
	if entry.URL == "" {
		return false, errors.New("history entry has no url")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted bool
	var evicted int
	err := r.db.Update(func(txn *badger.Txn) error {
		urlKey := historyURLKey(entry.URL)
		if _, err := txn.Get(urlKey); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var meta historyMeta
		if _, err := getJSON(txn, []byte(historyMetaKey), &meta); err != nil {
			return err
		}
		meta.Seq++
		meta.Count++

		if err := setJSON(txn, historyEntryKey(meta.Seq), entry); err != nil {
			return err
		}
		if err := setJSON(txn, urlKey, meta.Seq); err != nil {
			return err
		}

		if overflow := meta.Count - r.historyLimit; overflow > 0 {
			n, err := r.evictOldest(txn, overflow)
			if err != nil {
				return err
			}
			meta.Count -= n
			evicted = n
		}

		inserted = true
		return setJSON(txn, []byte(historyMetaKey), meta)
	})
	if err != nil {
		log.WithError(err).Error("Failed to add article to history")
		return false, fmt.Errorf("failed to add %s to history: %w", entry.URL, err)
	}

	if inserted {
		log.WithFields(logrus.Fields{
			"title":   entry.Title,
			"tags":    strings.Join(entry.Tags, ", "),
			"evicted": evicted,
		}).Info("Saved to history")
	} else {
		log.Debug("Article already in history")
	}
	return inserted, nil
}

// evictOldest removes the n oldest entries and their URL index keys.
func (r *BadgerRepository) evictOldest(txn *badger.Txn, n int) (int, error) {
	type victim struct {
		key []byte
		url string
	}
	var victims []victim
	err := scanPrefix(txn, []byte(historyEntryPrefix), false, func(key []byte, e domain.HistoryEntry) (bool, error) {
		victims = append(victims, victim{key: key, url: e.URL})
		return len(victims) < n, nil
	})
	if err != nil {
		return 0, err
	}
	for _, v := range victims {
		if err := txn.Delete(v.key); err != nil {
			return 0, err
		}
		if err := txn.Delete(historyURLKey(v.url)); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

// Search returns entries whose title or any tag contains query, ignoring case.
func (r *BadgerRepository) Search(ctx context.Context, query string) ([]domain.HistoryEntry, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return r.collectHistory(func(e domain.HistoryEntry) bool {
		return matchesQuery(e, q)
	}, 0)
}

// Recent returns the entries dated at or after since.
func (r *BadgerRepository) Recent(ctx context.Context, since time.Time) ([]domain.HistoryEntry, error) {
	return r.collectHistory(func(e domain.HistoryEntry) bool {
		return !e.Date.Before(since)
	}, 0)
}

// History returns up to limit entries, most recent first.
func (r *BadgerRepository) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return r.collectHistory(func(domain.HistoryEntry) bool { return true }, limit)
}

func (r *BadgerRepository) collectHistory(keep func(domain.HistoryEntry) bool, limit int) ([]domain.HistoryEntry, error) {
	entries := []domain.HistoryEntry{}
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(historyEntryPrefix), true, func(_ []byte, e domain.HistoryEntry) (bool, error) {
			if keep(e) {
				entries = append(entries, e)
			}
			return limit <= 0 || len(entries) < limit, nil
		})
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to read history")
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

func matchesQuery(e domain.HistoryEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Title), q) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
