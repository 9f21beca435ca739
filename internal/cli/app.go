package cli

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/calendar"
	"fxwatch/internal/config"
	"fxwatch/internal/events"
	"fxwatch/internal/insight"
	"fxwatch/internal/llm"
	"fxwatch/internal/notify"
	"fxwatch/internal/pipeline"
	"fxwatch/internal/scraper"
	"fxwatch/internal/source"
	"fxwatch/internal/storage"
	"fxwatch/internal/summarize"
	"fxwatch/internal/watcher"
)

const emailTimeout = 30 * time.Second

// app holds the components shared by the commands. Optional collaborators
// stay nil when their configuration is absent.
type app struct {
	cfg config.Config
	log *logrus.Logger
	loc *time.Location

	repo     *storage.BadgerRepository
	registry *source.Registry
	calendar *calendar.Client
	llm      llm.Client
	insight  *insight.Service

	bot       *tgbot.Bot
	messenger notify.Messenger
	publisher *events.NATSPublisher
	pipeline  *pipeline.Pipeline
	watcher   *watcher.Watcher
}

type appOptions struct {
	// telegram requires a bot token and connects to the Bot API.
	telegram bool
	// delivery builds the processing pipeline and its outbound channels.
	delivery bool
}

func newApp(cfg config.Config, log *logrus.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, loc: cfg.Location()}

	log.WithFields(logrus.Fields{
		"storage_path": cfg.Storage.Path,
		"timezone":     cfg.Timezone,
		"llm_enabled":  cfg.LLM.Enabled(),
	}).Info("Configuration loaded successfully")

	registry, err := source.DefaultRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("register sources: %w", err)
	}
	a.registry = registry

	repo, err := storage.NewBadgerRepository(cfg.Storage.Path, log, storage.WithHistoryLimit(cfg.Storage.HistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.repo = repo

	if cfg.LLM.Enabled() {
		client, err := llm.NewClient(llm.Config{
			Provider:      cfg.LLM.Provider,
			BaseURL:       cfg.LLM.BaseURL,
			APIKey:        cfg.LLM.APIKey,
			Model:         cfg.LLM.Model,
			MaxRetries:    cfg.LLM.MaxRetries,
			RetryBackoff:  cfg.LLM.RetryBackoff,
			RetryMaxDelay: cfg.LLM.RetryMaxDelay,
			Timeout:       cfg.LLM.Timeout,
			Temperature:   cfg.LLM.Temperature,
		}, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("llm client: %w", err)
		}
		a.llm = client
	} else {
		log.Warn("LLM_API_KEY not set: summaries fall back to extraction, briefings and questions are disabled")
	}

	calendarHTTP := source.NewHTTPClient(cfg.Calendar.Timeout, cfg.Scraper.UserAgent)
	a.calendar = calendar.NewClient(cfg.Calendar.URL, calendarHTTP, a.loc, log)
	a.insight = insight.New(a.llm, repo, repo, a.calendar, log)

	if opts.telegram {
		if err := cfg.RequireTelegram("telegram delivery"); err != nil {
			a.Close()
			return nil, err
		}
		b, err := tgbot.New(cfg.Telegram.BotToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		a.bot = b
		a.messenger = notify.NewTelegram(b, log)
	}

	if opts.delivery {
		if err := a.buildPipeline(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) buildPipeline() error {
	cfg := a.cfg

	var extractor scraper.Extractor
	switch cfg.Scraper.Mode {
	case "rod":
		extractor = scraper.NewRodExtractor(cfg.Scraper.Timeout, a.log)
	default:
		extractor = scraper.NewHTTPExtractor(source.NewHTTPClient(cfg.Scraper.Timeout, cfg.Scraper.UserAgent), a.log)
	}

	var primary summarize.Summarizer
	if a.llm != nil {
		primary = summarize.NewAI(a.llm)
	}

	deps := pipeline.Deps{
		Extractor:  extractor,
		Summarizer: summarize.NewWithFallback(primary, a.log),
		History:    a.repo,
		Users:      a.repo,
		Calendar:   a.calendar,
		Location:   a.loc,
	}
	if a.messenger != nil {
		deps.Messenger = a.messenger
	}

	if cfg.EmailEnabled() {
		deps.Mailer = notify.NewEmail(notify.EmailConfig{
			To:           cfg.Email.To,
			From:         cfg.Email.From,
			ResendAPIKey: cfg.Email.ResendAPIKey,
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUser:     cfg.SMTP.User,
			SMTPPassword: cfg.SMTP.Password,
		}, &http.Client{Timeout: emailTimeout}, a.log)
	} else {
		a.log.Info("Email newsletter disabled")
	}

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, a.log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		a.publisher = pub
		deps.Publisher = pub
	}

	a.pipeline = pipeline.New(deps, a.log)
	a.watcher = watcher.New(a.registry, a.repo, a.pipeline, a.log)
	return nil
}

// Close releases the storage and broker connections.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.repo != nil {
		a.log.Info("Closing database...")
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
