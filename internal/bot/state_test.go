package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversations_Expiry(t *testing.T) {
	c := NewConversations(time.Minute)
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	c.AwaitTags(42, "ing")
	conv := c.Get(42)
	assert.Equal(t, StateAwaitingTags, conv.State)
	assert.Equal(t, "ing", conv.SourceID)

	now = now.Add(time.Minute)
	assert.Equal(t, StateIdle, c.Get(42).State)
	assert.False(t, c.Reset(42))
}

// A prompt opened while Reset runs must survive it.
func TestConversations_ResetDoesNotDropConcurrentPrompt(t *testing.T) {
	c := NewConversations(time.Minute)
	now := time.Now()
	c.clock = func() time.Time { return now }
	c.AwaitTags(42, "ing")

	var once sync.Once
	done := make(chan struct{})
	c.clock = func() time.Time {
		once.Do(func() {
			go func() {
				c.AwaitTags(42, "investing")
				close(done)
			}()
		})
		return now
	}

	require.True(t, c.Reset(42))
	<-done

	conv := c.Get(42)
	assert.Equal(t, StateAwaitingTags, conv.State)
	assert.Equal(t, "investing", conv.SourceID)
}
