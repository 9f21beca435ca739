package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_SubscribeMergesTagsIgnoringCase(t *testing.T) {
	u := &User{ID: 1}

	u.Subscribe("ing", []string{"#USD"})
	u.Subscribe("ing", []string{"#usd", "USD"})
	sub := u.Subscribe("ing", []string{"#Fed"})

	require.Len(t, u.Subscriptions, 1, "re-subscribing must not duplicate the subscription")
	assert.Equal(t, []string{"#USD", "#Fed"}, sub.Tags)
}

func TestUser_SubscribeWithoutTagsResetsToAll(t *testing.T) {
	u := &User{ID: 1}
	u.Subscribe("ing", []string{"#USD", "#EUR"})

	sub := u.Subscribe("ing", nil)

	assert.True(t, sub.All())
	require.Len(t, u.Subscriptions, 1)
	assert.Empty(t, u.Subscriptions[0].Tags)
}

func TestUser_Unsubscribe(t *testing.T) {
	t.Run("whole source", func(t *testing.T) {
		u := &User{ID: 1}
		u.Subscribe("ing", []string{"#USD"})
		u.Subscribe("investing", nil)

		require.NoError(t, u.Unsubscribe("ing", nil))
		assert.Equal(t, []string{"investing"}, u.SourceIDs())
	})

	t.Run("some tags", func(t *testing.T) {
		u := &User{ID: 1}
		u.Subscribe("ing", []string{"#USD", "#GBP"})

		require.NoError(t, u.Unsubscribe("ing", []string{"#gbp"}))
		sub, ok := u.Subscription("ing")
		require.True(t, ok)
		assert.Equal(t, []string{"#USD"}, sub.Tags)
	})

	t.Run("last tag deletes the subscription", func(t *testing.T) {
		u := &User{ID: 1}
		u.Subscribe("ing", []string{"#USD"})

		require.NoError(t, u.Unsubscribe("ing", []string{"#USD"}))
		_, ok := u.Subscription("ing")
		assert.False(t, ok)
	})

	t.Run("tags on an all subscription are a no-op", func(t *testing.T) {
		u := &User{ID: 1}
		u.Subscribe("ing", nil)

		require.NoError(t, u.Unsubscribe("ing", []string{"#USD"}))
		sub, ok := u.Subscription("ing")
		require.True(t, ok)
		assert.True(t, sub.All())
	})

	t.Run("unknown source", func(t *testing.T) {
		u := &User{ID: 1}
		assert.ErrorIs(t, u.Unsubscribe("ing", nil), ErrSubscriptionNotFound)
	})
}

func TestUser_Wants(t *testing.T) {
	u := &User{ID: 1}
	u.Subscribe("ing", []string{"#USD"})

	assert.True(t, u.Wants("ing", []string{"#USD", "#Fed"}))
	assert.True(t, u.Wants("ing", []string{"#usd"}))
	assert.False(t, u.Wants("ing", []string{"#GBP"}))
	assert.False(t, u.Wants("investing", []string{"#USD"}), "other sources never match")

	u.Subscribe("investing", nil)
	assert.True(t, u.Wants("investing", nil))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"#USD", "#eur", "#Fed"}, ParseTags("#USD, eur  Fed #usd"))
	assert.Empty(t, ParseTags("  , # "))
}

func TestUser_Interests(t *testing.T) {
	u := &User{ID: 1}
	u.Subscribe("ing", []string{"#USD", "#EUR"})
	u.Subscribe("investing", []string{"#usd", "#Gold"})

	assert.Equal(t, []string{"#USD", "#EUR", "#Gold"}, u.Interests())
}
