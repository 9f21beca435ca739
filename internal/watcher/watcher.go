// Package watcher polls every registered source and hands new items to the
// processing pipeline.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/metrics"
	"fxwatch/internal/pipeline"
	"fxwatch/internal/source"
	"fxwatch/internal/storage"
)

// DefaultInterval between two polling cycles.
const DefaultInterval = 30 * time.Minute

// SourceLister yields the sources to check, in check order.
type SourceLister interface {
	Sources() []source.Source
}

// Processor runs the pipeline for one new item.
type Processor interface {
	ProcessAndSend(ctx context.Context, src source.Source, item domain.LatestItem) (*pipeline.Result, error)
}

// Report summarizes one cycle by source id.
type Report struct {
	Processed []string
	UpToDate  []string
	Failed    map[string]error
}

// Watcher runs check cycles. Cycles never overlap.
type Watcher struct {
	sources   SourceLister
	states    storage.StateRepository
	processor Processor
	log       logrus.FieldLogger
	now       func() time.Time

	mu sync.Mutex
}

func New(sources SourceLister, states storage.StateRepository, processor Processor, logger logrus.FieldLogger) *Watcher {
	return &Watcher{
		sources:   sources,
		states:    states,
		processor: processor,
		log:       logger.WithField("component", "watcher"),
		now:       time.Now,
	}
}

// Check runs one cycle over every source in registry order. force processes
// the latest item even when it was already seen. A failing source is logged
// and recorded in the report; the cycle continues with the next one. The only
// error returned is a failure to read the stored states.
func (w *Watcher) Check(ctx context.Context, force bool) (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	report := Report{Failed: map[string]error{}}
	states, err := w.states.States(ctx)
	if err != nil {
		return report, fmt.Errorf("load watcher state: %w", err)
	}

	sources := w.sources.Sources()
	w.log.WithFields(logrus.Fields{"sources": len(sources), "force": force}).Info("Starting check cycle")

	for _, src := range sources {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log := w.log.WithField("source", src.ID)

		processed, err := w.checkSource(ctx, src, states[src.ID], force)
		switch {
		case err != nil:
			report.Failed[src.ID] = err
			metrics.SourceChecksTotal.WithLabelValues(src.ID, "failed").Inc()
			var noMatch *domain.NoMatchError
			if errors.As(err, &noMatch) {
				log.WithError(err).Warn("No article found")
			} else {
				log.WithError(err).Error("Source check failed")
			}
		case processed:
			report.Processed = append(report.Processed, src.ID)
			metrics.SourceChecksTotal.WithLabelValues(src.ID, "processed").Inc()
		default:
			report.UpToDate = append(report.UpToDate, src.ID)
			metrics.SourceChecksTotal.WithLabelValues(src.ID, "up_to_date").Inc()
		}
	}

	w.log.WithFields(logrus.Fields{
		"processed":  len(report.Processed),
		"up_to_date": len(report.UpToDate),
		"failed":     len(report.Failed),
	}).Info("Check cycle finished")
	return report, nil
}

func (w *Watcher) checkSource(ctx context.Context, src source.Source, state domain.WatcherState, force bool) (bool, error) {
	log := w.log.WithField("source", src.ID)

	item, err := src.Adapter.FetchLatest(ctx)
	if err != nil {
		return false, err
	}
	if !force && item.URL == state.LastArticleURL {
		log.WithField("url", item.URL).Debug("No new article")
		return false, nil
	}

	log.WithFields(logrus.Fields{"url": item.URL, "title": item.Title}).Info("New article detected")
	if _, err := w.processor.ProcessAndSend(ctx, src, item); err != nil {
		return false, fmt.Errorf("process %s: %w", item.URL, err)
	}

	now := w.now()
	if err := w.states.SaveState(ctx, src.ID, domain.WatcherState{LastArticleURL: item.URL, LastCheck: now}); err != nil {
		return false, fmt.Errorf("save state: %w", err)
	}
	metrics.SourceLastCheck.WithLabelValues(src.ID).Set(float64(now.Unix()))
	return true, nil
}

// Run checks immediately, then every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w.log.WithField("interval", interval.String()).Info("Watcher started")

	w.runOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watcher stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	if _, err := w.Check(ctx, false); err != nil && ctx.Err() == nil {
		w.log.WithError(err).Error("Check cycle aborted")
	}
}
