package domain

import "time"

// SourceKind classifies how much detail a source's articles carry.
type SourceKind string

const (
	// KindFXDaily sources publish a per-currency breakdown worth full-page extraction.
	KindFXDaily SourceKind = "fx_daily"
	// KindGeneralNews sources publish short headlines; their snippet is enough.
	KindGeneralNews SourceKind = "general_news"
)

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	return k == KindFXDaily || k == KindGeneralNews
}

// SourceInfo is the public description of a registered source.
type SourceInfo struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind SourceKind `json:"kind"`
}

// LatestItem is what a source adapter reports as its most recent article.
// It is produced fresh on each fetch and never persisted as is.
type LatestItem struct {
	// URL is absolute and doubles as the article identity.
	URL string `json:"url"`

	Title string `json:"title"`

	// Description is the feed snippet or the teaser text next to the link, if any.
	Description string `json:"description,omitempty"`

	// PublishedTime is zero when the source does not expose it.
	PublishedTime time.Time `json:"publishedTime,omitempty"`
}

// Article is the normalized content handed to the summarizer.
type Article struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	SiteName      string    `json:"siteName"`
	PublishedTime time.Time `json:"publishedTime,omitempty"`
}

// ReferenceTime returns the publication time, or now when it is unknown.
func (a Article) ReferenceTime() time.Time {
	if a.PublishedTime.IsZero() {
		return time.Now()
	}
	return a.PublishedTime
}

// WatcherState is the per-source bookmark persisted between runs.
type WatcherState struct {
	LastArticleURL string    `json:"lastArticleUrl"`
	LastCheck      time.Time `json:"lastCheck"`
}

// HistoryEntry is one processed article kept for search, briefing and Q&A.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	KeyTakeaway string    `json:"keyTakeaway"`
	Source      string    `json:"source"`
	SourceName  string    `json:"sourceName,omitempty"`
}
