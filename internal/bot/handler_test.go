package bot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
	"fxwatch/internal/source"
	"fxwatch/internal/storage"
)

type stubAsker struct {
	answer string
	err    error
}

func (s stubAsker) Ask(context.Context, int64, string) (string, error) {
	return s.answer, s.err
}

func setupHandler(t *testing.T, asker Asker) (*Handler, *storage.BadgerRepository) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })

	reg := source.NewRegistry()
	noop := source.AdapterFunc(func(context.Context) (domain.LatestItem, error) { return domain.LatestItem{}, nil })
	require.NoError(t, reg.Register(source.Source{ID: "ing", Name: "ING Think", Kind: domain.KindFXDaily, Adapter: noop}))
	require.NoError(t, reg.Register(source.Source{ID: "investing", Name: "InvestingLive", Adapter: noop}))

	h := NewHandler(nil, Deps{Sources: reg, Users: repo, History: repo, Asker: asker}, logger)
	return h, repo
}

var alice = &models.User{ID: 42, FirstName: "Alice"}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("/subscribe@fxwatch_bot ing  #USD ")
	assert.Equal(t, "/subscribe", cmd)
	assert.Equal(t, "ing  #USD", args)

	cmd, args = parseCommand("/mysubs")
	assert.Equal(t, "/mysubs", cmd)
	assert.Empty(t, args)
}

func TestStart_RegistersUser(t *testing.T) {
	h, repo := setupHandler(t, nil)
	ctx := context.Background()

	msg := h.start(ctx, alice, "")
	assert.Contains(t, msg.Text, "Bonjour Alice")

	u, err := repo.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
}

func TestSources(t *testing.T) {
	h, _ := setupHandler(t, nil)
	msg := h.sources()
	assert.True(t, msg.HTML)
	assert.Contains(t, msg.Text, "<code>ing</code> : ING Think (fx_daily)")
	assert.Contains(t, msg.Text, "<code>investing</code>")
}

func TestSubscribeFlow(t *testing.T) {
	h, repo := setupHandler(t, nil)
	ctx := context.Background()

	msg := h.subscribe(ctx, alice, "nope")
	assert.Contains(t, msg.Text, "Source inconnue")
	assert.Contains(t, msg.Text, "ing, investing")

	// Works without a prior /start.
	msg = h.subscribe(ctx, alice, "ing")
	assert.Contains(t, msg.Text, "tout le contenu")
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "tags:ing", msg.Buttons[0][0].Data)

	msg = h.subscribe(ctx, alice, "investing usd, #EUR")
	assert.Contains(t, msg.Text, "#usd, #EUR")

	msg = h.mySubs(ctx, 42)
	assert.Contains(t, msg.Text, "1. ing (tout)")
	assert.Contains(t, msg.Text, "2. investing (tags : #usd, #EUR)")

	recipients, err := repo.GetRecipients(ctx, "investing", []string{"#USD"})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, recipients)
}

func TestSubscribe_RejectsArgumentWithoutTags(t *testing.T) {
	h, repo := setupHandler(t, nil)
	ctx := context.Background()

	h.subscribe(ctx, alice, "ing #USD")

	msg := h.subscribe(ctx, alice, "ing #")
	assert.Contains(t, msg.Text, "Aucun tag valide")
	assert.Contains(t, msg.Text, "Usage : /subscribe")
	msg = h.unsubscribe(ctx, alice, "ing ,, #")
	assert.Contains(t, msg.Text, "Usage : /unsubscribe")

	assert.Contains(t, h.mySubs(ctx, 42).Text, "1. ing (tags : #USD)")
	recipients, err := repo.GetRecipients(ctx, "ing", []string{"#JPY"})
	require.NoError(t, err)
	assert.Empty(t, recipients, "the filter was not widened to all content")
}

func TestUnsubscribeFlow(t *testing.T) {
	h, _ := setupHandler(t, nil)
	ctx := context.Background()

	assert.Contains(t, h.unsubscribe(ctx, alice, "ing").Text, "pas abonné")

	h.subscribe(ctx, alice, "investing #USD #EUR")
	assert.Contains(t, h.unsubscribe(ctx, alice, "investing #usd").Text, "Filtres restants pour investing : #EUR")
	assert.Contains(t, h.unsubscribe(ctx, alice, "investing #EUR").Text, "abonnement à investing supprimé")
	assert.Contains(t, h.mySubs(ctx, 42).Text, "Aucun abonnement")

	h.subscribe(ctx, alice, "ing")
	assert.Contains(t, h.unsubscribe(ctx, alice, "ing #USD").Text, "couvre tout le contenu")
	assert.Contains(t, h.unsubscribe(ctx, alice, "ing").Text, "Désabonné de ing")
}

func TestTagConversation(t *testing.T) {
	h, repo := setupHandler(t, nil)
	ctx := context.Background()
	h.subscribe(ctx, alice, "ing")

	_, handled := h.text(ctx, 42, "#USD")
	assert.False(t, handled, "plain text is ignored while idle")

	msg := h.callback(ctx, 42, "tags:ing")
	assert.Contains(t, msg.Text, "Envoyez les tags")
	assert.Equal(t, StateAwaitingTags, h.convs.Get(42).State)

	msg, handled = h.text(ctx, 42, "   ")
	assert.True(t, handled)
	assert.Contains(t, msg.Text, "Aucun tag reconnu")
	assert.Equal(t, StateAwaitingTags, h.convs.Get(42).State, "still waiting after bad input")

	msg, handled = h.text(ctx, 42, "#USD jpy")
	assert.True(t, handled)
	assert.Contains(t, msg.Text, "#USD, #jpy")
	assert.Equal(t, StateIdle, h.convs.Get(42).State)

	u, err := repo.GetUser(ctx, 42)
	require.NoError(t, err)
	sub, ok := u.Subscription("ing")
	require.True(t, ok)
	assert.Equal(t, []string{"#USD", "#jpy"}, sub.Tags)
}

func TestTagConversation_CancelAndExpiry(t *testing.T) {
	h, _ := setupHandler(t, nil)
	ctx := context.Background()

	assert.Equal(t, "Rien à annuler.", h.cancel(42).Text)
	h.callback(ctx, 42, "tags:ing")
	assert.Equal(t, "Saisie annulée.", h.cancel(42).Text)
	assert.Equal(t, StateIdle, h.convs.Get(42).State)

	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	h.convs.clock = func() time.Time { return now }
	h.callback(ctx, 42, "tags:ing")
	now = now.Add(DefaultConversationTTL)

	_, handled := h.text(ctx, 42, "#USD")
	assert.False(t, handled, "the tag prompt expires")
}

func TestSearch(t *testing.T) {
	h, repo := setupHandler(t, nil)
	ctx := context.Background()

	assert.Contains(t, h.search(ctx, "").Text, "Usage")
	assert.Contains(t, h.search(ctx, "yen").Text, "Aucun article")

	_, err := repo.AddArticle(ctx, domain.HistoryEntry{URL: "https://x/1", Title: "Le yen <rebondit>", Tags: []string{"#JPY"}, Source: "ing"})
	require.NoError(t, err)

	msg := h.search(ctx, "YEN")
	assert.True(t, msg.HTML)
	assert.Contains(t, msg.Text, "Le yen &lt;rebondit&gt;")

	msg = h.callback(ctx, 42, "search:JPY")
	assert.Contains(t, msg.Text, "https://x/1")
}

func TestAsk(t *testing.T) {
	h, _ := setupHandler(t, stubAsker{answer: "Selon vos sources d'abonnement, le yen progresse."})
	ctx := context.Background()

	assert.Contains(t, h.ask(ctx, 42, " ").Text, "Usage")
	assert.Equal(t, "Selon vos sources d'abonnement, le yen progresse.", h.ask(ctx, 42, "et le yen ?").Text)

	h.deps.Asker = stubAsker{err: &domain.ConfigError{Key: "LLM_API_KEY"}}
	assert.Contains(t, h.ask(ctx, 42, "et le yen ?").Text, "clé API IA")

	h.deps.Asker = stubAsker{err: errors.New("timeout")}
	assert.Contains(t, h.ask(ctx, 42, "et le yen ?").Text, "erreur")

	h.deps.Asker = nil
	assert.Contains(t, h.ask(ctx, 42, "et le yen ?").Text, "clé API IA")
}
