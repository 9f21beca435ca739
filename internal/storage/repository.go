package storage

import (
	"context"
	"time"

	"fxwatch/internal/domain"
)

// StateRepository persists the watcher's per-source bookmark.
type StateRepository interface {
	// GetState returns the stored state and whether one exists.
	GetState(ctx context.Context, sourceID string) (domain.WatcherState, bool, error)

	// SaveState overwrites the state of a source.
	SaveState(ctx context.Context, sourceID string, state domain.WatcherState) error

	// States returns every stored state keyed by source id.
	States(ctx context.Context) (map[string]domain.WatcherState, error)
}

// HistoryRepository is the bounded, URL-deduplicated log of processed articles.
type HistoryRepository interface {
	// AddArticle stores entry unless its URL is already known. It reports
	// whether the entry was inserted.
	AddArticle(ctx context.Context, entry domain.HistoryEntry) (bool, error)

	// Search matches query against titles and tags, ignoring case,
	// most recent first.
	Search(ctx context.Context, query string) ([]domain.HistoryEntry, error)

	// Recent returns the entries dated at or after since, most recent first.
	Recent(ctx context.Context, since time.Time) ([]domain.HistoryEntry, error)

	// History returns up to limit entries, most recent first. limit <= 0 means all.
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// UserRepository stores users and their subscriptions.
type UserRepository interface {
	// RegisterUser creates the user if absent and reports whether it was created.
	RegisterUser(ctx context.Context, id int64, name string) (domain.User, bool, error)

	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	Subscribe(ctx context.Context, userID int64, sourceID string, tags []string) (domain.Subscription, error)
	Unsubscribe(ctx context.Context, userID int64, sourceID string, tags []string) error

	// GetRecipients returns the ids of users interested in an article from
	// sourceID carrying articleTags, in ascending order.
	GetRecipients(ctx context.Context, sourceID string, articleTags []string) ([]int64, error)
}

// Repository bundles every store backed by one database.
type Repository interface {
	StateRepository
	HistoryRepository
	UserRepository

	// Close gracefully shuts down the repository connection.
	Close() error
}
