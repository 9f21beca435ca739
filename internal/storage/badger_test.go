package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
// It returns the repository instance and a cleanup function.
func setupTestDB(t *testing.T, opts ...Option) (*BadgerRepository, func()) {
	t.Helper()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)
	testLogger.SetLevel(logrus.ErrorLevel) // Only show errors by default

	repo, err := NewBadgerRepository(t.TempDir(), testLogger, opts...)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		assert.NoError(t, repo.Close(), "Failed to close test BadgerDB repository")
	}
	return repo, cleanup
}

func TestBadgerRepository_State(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, found, err := repo.GetState(ctx, "ing")
	require.NoError(t, err)
	assert.False(t, found, "empty store has no state")

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SaveState(ctx, "ing", domain.WatcherState{LastArticleURL: "https://a/1", LastCheck: now}))
	require.NoError(t, repo.SaveState(ctx, "investing", domain.WatcherState{LastArticleURL: "https://b/1", LastCheck: now}))
	require.NoError(t, repo.SaveState(ctx, "ing", domain.WatcherState{LastArticleURL: "https://a/2", LastCheck: now}))

	state, found, err := repo.GetState(ctx, "ing")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://a/2", state.LastArticleURL)
	assert.True(t, now.Equal(state.LastCheck))

	states, err := repo.States(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
	assert.Equal(t, "https://b/1", states["investing"].LastArticleURL)
}

func TestBadgerRepository_StateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	ctx := context.Background()

	repo, err := NewBadgerRepository(dir, logger)
	require.NoError(t, err)
	require.NoError(t, repo.SaveState(ctx, "ing", domain.WatcherState{LastArticleURL: "https://a/1", LastCheck: time.Now()}))
	require.NoError(t, repo.Close())

	repo, err = NewBadgerRepository(dir, logger)
	require.NoError(t, err)
	defer repo.Close()

	state, found, err := repo.GetState(ctx, "ing")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://a/1", state.LastArticleURL)
}

func TestBadgerRepository_AddArticleDeduplicatesByURL(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	entry := domain.HistoryEntry{URL: "https://a/1", Title: "FX Daily: EUR firms", Tags: []string{"#EUR"}, Source: "ing"}
	added, err := repo.AddArticle(ctx, entry)
	require.NoError(t, err)
	assert.True(t, added)

	entry.Title = "Same URL, other title"
	added, err = repo.AddArticle(ctx, entry)
	require.NoError(t, err)
	assert.False(t, added)

	// A cosmetically different URL is a different key.
	added, err = repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/1/", Title: "Trailing slash"})
	require.NoError(t, err)
	assert.True(t, added)

	entries, err := repo.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://a/1/", entries[0].URL, "most recent first")
	assert.Equal(t, "FX Daily: EUR firms", entries[1].Title)
	assert.NotEmpty(t, entries[1].ID)
	assert.False(t, entries[1].Date.IsZero())
}

func TestBadgerRepository_HistoryCapEvictsOldest(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 1; i <= DefaultHistoryLimit+1; i++ {
		_, err := repo.AddArticle(ctx, domain.HistoryEntry{
			URL:   fmt.Sprintf("https://a/%d", i),
			Title: fmt.Sprintf("Article %d", i),
		})
		require.NoError(t, err)
	}

	entries, err := repo.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, DefaultHistoryLimit)
	assert.Equal(t, "https://a/1001", entries[0].URL)
	assert.Equal(t, "https://a/2", entries[len(entries)-1].URL, "only the oldest entry is evicted")

	// The evicted URL is forgotten and may be stored again.
	added, err := repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/1", Title: "Article 1 again"})
	require.NoError(t, err)
	assert.True(t, added)
}

func TestBadgerRepository_HistoryLimitOption(t *testing.T) {
	repo, cleanup := setupTestDB(t, WithHistoryLimit(3))
	defer cleanup()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := repo.AddArticle(ctx, domain.HistoryEntry{URL: fmt.Sprintf("https://a/%d", i)})
		require.NoError(t, err)
	}

	entries, err := repo.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"https://a/5", "https://a/4", "https://a/3"},
		[]string{entries[0].URL, entries[1].URL, entries[2].URL})

	limited, err := repo.History(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBadgerRepository_Search(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/1", Title: "Dollar licks its wounds", Tags: []string{"#USD", "#Fed"}})
	require.NoError(t, err)
	_, err = repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/2", Title: "Sterling slides", Tags: []string{"#GBP"}})
	require.NoError(t, err)

	byTag, err := repo.Search(ctx, "#fed")
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "https://a/1", byTag[0].URL)

	byTitle, err := repo.Search(ctx, "STERLING")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "https://a/2", byTitle[0].URL)

	none, err := repo.Search(ctx, "yen")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBadgerRepository_Recent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/old", Date: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://a/new"})
	require.NoError(t, err)

	recent, err := repo.Recent(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "https://a/new", recent[0].URL)
}

func TestBadgerRepository_Users(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, created, err := repo.RegisterUser(ctx, 42, "Ada")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = repo.RegisterUser(ctx, 42, "Ada again")
	require.NoError(t, err)
	assert.False(t, created, "registration is idempotent")

	_, err = repo.Subscribe(ctx, 7, "ing", nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.Subscribe(ctx, 42, "ing", []string{"#USD"})
	require.NoError(t, err)
	sub, err := repo.Subscribe(ctx, 42, "ing", []string{"#usd"})
	require.NoError(t, err)
	assert.Equal(t, []string{"#USD"}, sub.Tags)

	user, err := repo.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	require.Len(t, user.Subscriptions, 1)

	err = repo.Unsubscribe(ctx, 42, "investing", nil)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	require.NoError(t, repo.Unsubscribe(ctx, 42, "ing", nil))
	user, err = repo.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, user.Subscriptions)

	_, err = repo.GetUser(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBadgerRepository_GetRecipients(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3, 10} {
		_, _, err := repo.RegisterUser(ctx, id, fmt.Sprintf("user%d", id))
		require.NoError(t, err)
	}
	_, err := repo.Subscribe(ctx, 1, "ing", []string{"#USD"})
	require.NoError(t, err)
	_, err = repo.Subscribe(ctx, 2, "ing", nil)
	require.NoError(t, err)
	_, err = repo.Subscribe(ctx, 3, "investing", nil)
	require.NoError(t, err)
	_, err = repo.Subscribe(ctx, 10, "ing", []string{"#gbp"})
	require.NoError(t, err)

	got, err := repo.GetRecipients(ctx, "ing", []string{"#USD", "#Fed"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	got, err = repo.GetRecipients(ctx, "ing", []string{"#GBP"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 10}, got, "a #USD subscriber does not get a #GBP-only article")

	got, err = repo.GetRecipients(ctx, "other", []string{"#USD"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
