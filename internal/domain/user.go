package domain

import (
	"strings"
	"time"
)

// Subscription ties a user to one source. An empty tag set means every article
// from that source.
type Subscription struct {
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// All reports whether the subscription accepts every article of its source.
func (s Subscription) All() bool {
	return len(s.Tags) == 0
}

// Matches reports whether an article from sourceID carrying articleTags is
// relevant to this subscription.
func (s Subscription) Matches(sourceID string, articleTags []string) bool {
	if s.Source != sourceID {
		return false
	}
	if s.All() {
		return true
	}
	for _, want := range s.Tags {
		for _, have := range articleTags {
			if sameTag(want, have) {
				return true
			}
		}
	}
	return false
}

// User is a bot user together with their subscriptions.
type User struct {
	// ID is the Telegram chat ID, used as the delivery address.
	ID int64 `json:"id"`

	// Name is the Telegram first name at registration time.
	Name string `json:"name"`

	JoinedAt time.Time `json:"joinedAt"`

	// Subscriptions holds at most one entry per source.
	Subscriptions []Subscription `json:"subscriptions"`
}

func (u *User) find(sourceID string) int {
	for i, sub := range u.Subscriptions {
		if sub.Source == sourceID {
			return i
		}
	}
	return -1
}

// Subscription returns the user's subscription to sourceID, if any.
func (u *User) Subscription(sourceID string) (Subscription, bool) {
	if i := u.find(sourceID); i >= 0 {
		return u.Subscriptions[i], true
	}
	return Subscription{}, false
}

// Subscribe upserts the subscription to sourceID. Without tags the
// subscription is reset to "all content"; with tags they are merged into the
// existing set, ignoring case.
func (u *User) Subscribe(sourceID string, tags []string) Subscription {
	i := u.find(sourceID)
	if i < 0 {
		u.Subscriptions = append(u.Subscriptions, Subscription{Source: sourceID})
		i = len(u.Subscriptions) - 1
	}
	sub := &u.Subscriptions[i]

	if len(tags) == 0 {
		sub.Tags = nil
		return *sub
	}
	for _, tag := range tags {
		tag = NormalizeTag(tag)
		if tag == "" || containsTag(sub.Tags, tag) {
			continue
		}
		sub.Tags = append(sub.Tags, tag)
	}
	return *sub
}

// Unsubscribe removes the whole subscription when tags is empty, otherwise
// only the given tags. A tag-filtered subscription whose last tag is removed
// is deleted rather than widened to "all content". Removing tags from an
// "all content" subscription leaves it untouched.
func (u *User) Unsubscribe(sourceID string, tags []string) error {
	i := u.find(sourceID)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	if len(tags) == 0 {
		u.Subscriptions = append(u.Subscriptions[:i], u.Subscriptions[i+1:]...)
		return nil
	}

	sub := &u.Subscriptions[i]
	if sub.All() {
		return nil
	}
	kept := sub.Tags[:0]
	for _, have := range sub.Tags {
		if !containsTag(tags, have) {
			kept = append(kept, have)
		}
	}
	sub.Tags = kept
	if len(sub.Tags) == 0 {
		u.Subscriptions = append(u.Subscriptions[:i], u.Subscriptions[i+1:]...)
	}
	return nil
}

// Wants reports whether any subscription matches the article.
func (u *User) Wants(sourceID string, articleTags []string) bool {
	for _, sub := range u.Subscriptions {
		if sub.Matches(sourceID, articleTags) {
			return true
		}
	}
	return false
}

// SourceIDs lists the ids of the subscribed sources in subscription order.
func (u *User) SourceIDs() []string {
	ids := make([]string, 0, len(u.Subscriptions))
	for _, sub := range u.Subscriptions {
		ids = append(ids, sub.Source)
	}
	return ids
}

// Interests is the union of all subscription tags, deduplicated ignoring case.
func (u *User) Interests() []string {
	var out []string
	for _, sub := range u.Subscriptions {
		for _, tag := range sub.Tags {
			if !containsTag(out, tag) {
				out = append(out, tag)
			}
		}
	}
	return out
}

// NormalizeTag trims a tag and gives it the leading '#' convention.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// ParseTags splits free text such as "#USD, eur fed" into normalized tags.
func ParseTags(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	var tags []string
	for _, f := range fields {
		if tag := NormalizeTag(f); tag != "" && !containsTag(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MergeTags appends the tags of extra missing from base, ignoring case.
func MergeTags(base []string, extra ...string) []string {
	out := append([]string(nil), base...)
	for _, tag := range extra {
		if tag != "" && !containsTag(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

func sameTag(a, b string) bool {
	return strings.EqualFold(strings.TrimLeft(a, "#"), strings.TrimLeft(b, "#"))
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if sameTag(t, tag) {
			return true
		}
	}
	return false
}
