// Package events publishes processed articles to NATS for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/metrics"
)

// ArticleEvent is the JSON payload published for each processed article.
type ArticleEvent struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	SourceName  string            `json:"sourceName"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	KeyTakeaway string            `json:"keyTakeaway"`
	Tags        []string          `json:"tags"`
	Currencies  map[string]string `json:"currencies"` // code -> sentiment
	Fallback    bool              `json:"fallback"`
	Recipients  int               `json:"recipients"`
	ProcessedAt time.Time         `json:"processedAt"`
}

// NewArticleEvent builds the payload from a history entry and its summary.
func NewArticleEvent(entry domain.HistoryEntry, summary *domain.Summary, recipients int) ArticleEvent {
	currencies := make(map[string]string, len(summary.Currencies))
	for code, sec := range summary.Currencies {
		currencies[code] = sec.Sentiment
	}
	return ArticleEvent{
		ID:          entry.ID,
		Source:      entry.Source,
		SourceName:  entry.SourceName,
		URL:         entry.URL,
		Title:       entry.Title,
		KeyTakeaway: entry.KeyTakeaway,
		Tags:        entry.Tags,
		Currencies:  currencies,
		Fallback:    summary.Fallback,
		Recipients:  recipients,
		ProcessedAt: entry.Date,
	}
}

// Publisher sends article events.
type Publisher interface {
	Publish(ctx context.Context, ev ArticleEvent) error
}

// NATSPublisher publishes on a single subject with core NATS.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	log     logrus.FieldLogger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger logrus.FieldLogger) (*NATSPublisher, error) {
	log := logger.WithField("component", "nats")
	nc, err := nats.Connect(url,
		nats.Name("fxwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.WithField("subject", subject).Info("Connected to NATS")
	return NewNATSPublisher(nc, subject, logger), nil
}

func NewNATSPublisher(nc *nats.Conn, subject string, logger logrus.FieldLogger) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, log: logger.WithField("component", "nats")}
}

const flushTimeout = 5 * time.Second

// Publish sends ev and flushes so a failure is reported to the caller.
func (p *NATSPublisher) Publish(ctx context.Context, ev ArticleEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal article event: %w", err)
	}
	err = p.nc.Publish(p.subject, data)
	if err == nil {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		err = p.nc.FlushWithContext(flushCtx)
		cancel()
	}
	metrics.EventsPublishedTotal.WithLabelValues(p.subject, metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	p.log.WithFields(logrus.Fields{"subject": p.subject, "url": ev.URL}).Debug("Article event published")
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
