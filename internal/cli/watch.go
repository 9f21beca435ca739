package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fxwatch/internal/bot"
	"fxwatch/internal/domain"
	"fxwatch/internal/httpapi"
	"fxwatch/internal/watcher"
)

const gcInterval = 10 * time.Minute

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll sources forever, serve the bot and send the daily briefing",
	Args:  cobra.NoArgs,
	RunE:  watchAction,
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "minutes between checks (default from watch.interval)")
	rootCmd.AddCommand(watchCmd)
}

func watchAction(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	interval := cfg.Watch.Interval
	if watchInterval < 0 {
		return fmt.Errorf("--interval must be positive, got %d", watchInterval)
	}
	if watchInterval > 0 {
		interval = time.Duration(watchInterval) * time.Minute
	}

	a, err := newApp(cfg, log, appOptions{telegram: true, delivery: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Error("Error during shutdown")
		}
	}()

	handler := bot.NewHandler(a.bot, bot.Deps{
		Sources:  a.registry,
		Users:    a.repo,
		History:  a.repo,
		Asker:    a.insight,
		Location: a.loc,
	}, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { a.repo.RunGC(ctx, gcInterval) })
	spawn(func() { handler.Start(ctx) })
	spawn(func() { a.watcher.Run(ctx, interval) })
	spawn(func() {
		err := runBriefingSchedule(ctx, a)
		if err != nil {
			log.WithError(err).Error("Daily briefing scheduler stopped")
		}
	})
	if cfg.HTTP.Addr != "" {
		server := httpapi.NewServer(httpapi.Deps{
			Sources: a.registry,
			History: a.repo,
			States:  a.repo,
			Checker: a.watcher,
		}, log)
		spawn(func() {
			if err := server.Run(ctx, cfg.HTTP.Addr); err != nil {
				log.WithError(err).Error("HTTP API failed")
			}
		})
	}

	log.WithField("interval", interval.String()).Info("fxwatch is running. Press Ctrl+C to exit.")
	<-ctx.Done()
	log.Info("Shutting down fxwatch...")
	wg.Wait()
	log.Info("fxwatch shut down gracefully.")
	return nil
}

// runBriefingSchedule sends the briefing every day at watch.briefing_time.
// Without an LLM there is nothing to schedule.
func runBriefingSchedule(ctx context.Context, a *app) error {
	if a.llm == nil {
		a.log.Info("Daily briefing disabled: no LLM configured")
		return nil
	}
	return watcher.RunDaily(ctx, a.cfg.Watch.BriefingTime, a.loc, func(ctx context.Context) error {
		_, err := a.insight.SendBriefings(ctx, a.messenger)
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			return nil
		}
		return err
	}, a.log)
}
