// Package pipeline turns a newly detected item into a summarized, enriched,
// persisted and delivered article.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/events"
	"fxwatch/internal/metrics"
	"fxwatch/internal/notify"
	"fxwatch/internal/scraper"
	"fxwatch/internal/source"
	"fxwatch/internal/storage"
	"fxwatch/internal/summarize"
)

const noContent = "No content available."

// Calendar enriches currency sections with the day's economic events.
type Calendar interface {
	EventsForCurrencies(ctx context.Context, codes []string, ref time.Time) (map[string][]domain.CalendarEvent, error)
}

// RecipientResolver finds the users interested in an article.
type RecipientResolver interface {
	GetRecipients(ctx context.Context, sourceID string, articleTags []string) ([]int64, error)
}

// Deps are the collaborators of a Pipeline. Extractor, Summarizer, History
// and Users are required; the others are optional and skipped when nil.
type Deps struct {
	Extractor  scraper.Extractor
	Summarizer summarize.Summarizer
	History    storage.HistoryRepository
	Users      RecipientResolver

	Calendar  Calendar
	Messenger notify.Messenger
	Mailer    notify.Mailer
	Publisher events.Publisher

	// Location renders event times in messages.
	Location *time.Location
}

// Pipeline processes one item at a time. It holds no per-article state.
type Pipeline struct {
	deps Deps
	log  logrus.FieldLogger
	now  func() time.Time
}

// Result describes what ProcessAndSend did with an item.
type Result struct {
	Entry      domain.HistoryEntry
	Summary    *domain.Summary
	Added      bool
	Recipients []int64
	Delivered  int
	Failed     int
}

func New(deps Deps, logger logrus.FieldLogger) *Pipeline {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Pipeline{deps: deps, log: logger.WithField("component", "pipeline"), now: time.Now}
}

// ProcessAndSend runs content → summary → calendar → history → delivery for
// item. An error means the item was not durably recorded and should be retried;
// delivery, calendar, email and event failures are logged only.
func (p *Pipeline) ProcessAndSend(ctx context.Context, src source.Source, item domain.LatestItem) (*Result, error) {
	log := p.log.WithFields(logrus.Fields{"source": src.ID, "url": item.URL})

	article, err := p.content(ctx, src, item)
	if err != nil {
		return nil, err
	}

	summary, err := p.deps.Summarizer.Summarize(ctx, article, src.Kind)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", item.URL, err)
	}
	mode := "ai"
	if summary.Fallback {
		mode = "fallback"
	}
	metrics.SummariesTotal.WithLabelValues(mode).Inc()

	p.enrich(ctx, summary, article.ReferenceTime(), log)

	title := article.Title
	if title == "" {
		title = summary.Title
	}
	entry := domain.HistoryEntry{
		ID:          uuid.NewString(),
		Date:        p.now(),
		URL:         item.URL,
		Title:       title,
		Tags:        summary.Tags,
		KeyTakeaway: summary.KeyTakeaway,
		Source:      src.ID,
		SourceName:  src.Name,
	}
	added, err := p.deps.History.AddArticle(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	if !added {
		log.Info("Article already in history, delivering again")
	}

	recipients, err := p.deps.Users.GetRecipients(ctx, src.ID, summary.Tags)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	res := &Result{Entry: entry, Summary: summary, Added: added, Recipients: recipients}
	p.deliver(ctx, res, src, item.URL, log)
	p.newsletter(ctx, summary, src, item.URL, log)
	p.publish(ctx, res, log)

	metrics.ArticlesProcessedTotal.WithLabelValues(src.ID).Inc()
	log.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"delivered":  res.Delivered,
		"failed":     res.Failed,
	}).Info("Article processed")
	return res, nil
}

// content obtains the text to summarize. Full-page sources must extract;
// snippet sources use the adapter description and only try extraction when it
// is empty.
func (p *Pipeline) content(ctx context.Context, src source.Source, item domain.LatestItem) (domain.Article, error) {
	if src.FullPage {
		article, err := p.deps.Extractor.Extract(ctx, item.URL)
		if err != nil {
			return domain.Article{}, fmt.Errorf("extract %s: %w", item.URL, err)
		}
		if article.Title == "" {
			article.Title = item.Title
		}
		if article.PublishedTime.IsZero() {
			article.PublishedTime = item.PublishedTime
		}
		if article.SiteName == "" {
			article.SiteName = src.Name
		}
		return article, nil
	}

	article := domain.Article{
		URL:           item.URL,
		Title:         item.Title,
		Content:       strings.TrimSpace(item.Description),
		SiteName:      src.Name,
		PublishedTime: item.PublishedTime,
	}
	if article.Content != "" {
		return article, nil
	}

	if p.deps.Extractor != nil {
		full, err := p.deps.Extractor.Extract(ctx, item.URL)
		if err == nil && strings.TrimSpace(full.Content) != "" {
			article.Content = full.Content
			return article, nil
		}
		p.log.WithError(err).WithField("url", item.URL).Debug("Snippet empty and extraction failed")
	}
	article.Content = item.Title
	if article.Content == "" {
		article.Content = noContent
	}
	return article, nil
}

func (p *Pipeline) enrich(ctx context.Context, summary *domain.Summary, ref time.Time, log logrus.FieldLogger) {
	codes := summary.CurrencyCodes()
	if p.deps.Calendar == nil || len(codes) == 0 {
		return
	}
	byCode, err := p.deps.Calendar.EventsForCurrencies(ctx, codes, ref)
	if err != nil {
		log.WithError(err).Warn("Calendar unavailable, delivering without events")
		return
	}
	for code, sec := range summary.Currencies {
		sec.Events = byCode[code]
		summary.Currencies[code] = sec
	}
}

func (p *Pipeline) deliver(ctx context.Context, res *Result, src source.Source, url string, log logrus.FieldLogger) {
	if len(res.Recipients) == 0 {
		log.Info("No subscribers for this article")
		return
	}
	if p.deps.Messenger == nil {
		log.WithField("recipients", len(res.Recipients)).Warn("Telegram not configured, skipping delivery")
		return
	}

	msg := notify.ArticleMessage(res.Summary, url, src.Name, p.deps.Location)
	for _, chatID := range res.Recipients {
		err := p.deps.Messenger.Send(ctx, chatID, msg)
		metrics.DeliveriesTotal.WithLabelValues(notify.ChannelTelegram, metrics.Status(err)).Inc()
		if err != nil {
			res.Failed++
			log.WithError(err).WithField("user_id", chatID).Error("Delivery failed")
			continue
		}
		res.Delivered++
	}
}

func (p *Pipeline) newsletter(ctx context.Context, summary *domain.Summary, src source.Source, url string, log logrus.FieldLogger) {
	if p.deps.Mailer == nil {
		return
	}
	html, err := notify.NewsletterHTML(summary, url, src.Name, summarize.CurrencyNames, p.now().In(p.deps.Location))
	if err == nil {
		err = p.deps.Mailer.Send(ctx, notify.NewsletterSubject(summary), html)
	}
	metrics.DeliveriesTotal.WithLabelValues(notify.ChannelEmail, metrics.Status(err)).Inc()
	if err != nil {
		log.WithError(err).Error("Newsletter email failed")
	}
}

func (p *Pipeline) publish(ctx context.Context, res *Result, log logrus.FieldLogger) {
	if p.deps.Publisher == nil {
		return
	}
	if err := p.deps.Publisher.Publish(ctx, events.NewArticleEvent(res.Entry, res.Summary, len(res.Recipients))); err != nil {
		log.WithError(err).Warn("Article event not published")
	}
}
