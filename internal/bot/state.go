package bot

import (
	"sync"
	"time"
)

// DefaultConversationTTL is how long the bot waits for a tag list.
const DefaultConversationTTL = 5 * time.Minute

type ConvState string

const (
	StateIdle         ConvState = "idle"
	StateAwaitingTags ConvState = "awaiting_tags"
)

// Conversation is the per-user input mode.
type Conversation struct {
	State     ConvState
	SourceID  string
	ExpiresAt time.Time
}

// Conversations keeps conversation state in memory, per user.
type Conversations struct {
	mu    sync.Mutex
	byID  map[int64]Conversation
	ttl   time.Duration
	clock func() time.Time
}

func NewConversations(ttl time.Duration) *Conversations {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &Conversations{byID: map[int64]Conversation{}, ttl: ttl, clock: time.Now}
}

// AwaitTags makes the next plain message of userID a tag list for sourceID.
func (c *Conversations) AwaitTags(userID int64, sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[userID] = Conversation{
		State:     StateAwaitingTags,
		SourceID:  sourceID,
		ExpiresAt: c.clock().Add(c.ttl),
	}
}

// Get returns the user's conversation. Expired conversations are dropped and
// reported as idle.
func (c *Conversations) Get(userID int64) Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(userID)
}

// Reset returns the user to idle and reports whether a conversation was active.
func (c *Conversations) Reset(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.getLocked(userID).State != StateIdle
	delete(c.byID, userID)
	return active
}

func (c *Conversations) getLocked(userID int64) Conversation {
	conv, ok := c.byID[userID]
	if !ok {
		return Conversation{State: StateIdle}
	}
	if !c.clock().Before(conv.ExpiresAt) {
		delete(c.byID, userID)
		return Conversation{State: StateIdle}
	}
	return conv
}
