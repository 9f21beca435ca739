// Package insight produces the personalized morning briefing and answers
// questions grounded on the user's article history.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/llm"
	"fxwatch/internal/notify"
)

const (
	briefingWindow = 24 * time.Hour

	maxKeywordMatches = 5
	maxLatest         = 5
	maxContext        = 10
	minKeywordLen     = 4
)

const (
	MsgNoSubscriptions = "⚠️ Vous n'avez aucun abonnement actif. Je ne peux pas chercher d'informations dans votre historique personnel."
	MsgNoHistory       = "📭 Je n'ai trouvé aucun article dans l'historique de vos sources d'abonnement."
)

// HistoryReader reads processed articles, most recent first.
type HistoryReader interface {
	Recent(ctx context.Context, since time.Time) ([]domain.HistoryEntry, error)
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// UserReader reads users and their subscriptions.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// EventReader lists the day's economic events.
type EventReader interface {
	Events(ctx context.Context, ref time.Time) ([]domain.CalendarEvent, error)
}

// Service builds briefings and answers. A nil LLM client disables both with
// a *domain.ConfigError; a nil calendar yields briefings without events.
type Service struct {
	llm      llm.Client
	history  HistoryReader
	users    UserReader
	calendar EventReader
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(client llm.Client, history HistoryReader, users UserReader, calendar EventReader, logger logrus.FieldLogger) *Service {
	return &Service{
		llm:      client,
		history:  history,
		users:    users,
		calendar: calendar,
		log:      logger.WithField("component", "insight"),
		now:      time.Now,
	}
}

func (s *Service) requireLLM(feature string) error {
	if s.llm == nil {
		return &domain.ConfigError{Key: "LLM_API_KEY", Feature: feature}
	}
	return nil
}

// Briefing writes a morning briefing from the last 24 hours of history and
// today's calendar, prioritizing the user's tags.
func (s *Service) Briefing(ctx context.Context, user domain.User) (string, error) {
	if err := s.requireLLM("the morning briefing"); err != nil {
		return "", err
	}
	now := s.now()
	log := s.log.WithField("user_id", user.ID)

	recent, err := s.history.Recent(ctx, now.Add(-briefingWindow))
	if err != nil {
		return "", fmt.Errorf("load recent history: %w", err)
	}

	interests := user.Interests()
	var events []domain.CalendarEvent
	if s.calendar != nil {
		all, err := s.calendar.Events(ctx, now)
		if err != nil {
			log.WithError(err).Warn("Calendar unavailable for briefing")
		}
		events = relevantEvents(all, interests)
	}

	log.WithFields(logrus.Fields{
		"articles":  len(recent),
		"events":    len(events),
		"interests": interests,
	}).Info("Generating briefing")

	req := llm.UserPrompt("", briefingPrompt(recent, events, interests))
	req.Temperature = 0.5
	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate briefing: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// relevantEvents keeps the events whose currency is among interests. No
// interests means every event.
func relevantEvents(events []domain.CalendarEvent, interests []string) []domain.CalendarEvent {
	if len(interests) == 0 {
		return events
	}
	var out []domain.CalendarEvent
	for _, ev := range events {
		for _, tag := range interests {
			if strings.EqualFold(strings.TrimPrefix(tag, "#"), ev.Currency) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// Delivered is one briefing that reached its user.
type Delivered struct {
	UserID int64
	Text   string
}

// SendBriefings delivers a briefing to every user and returns the ones that
// were sent. Per-user failures are logged; a missing LLM aborts the whole run.
func (s *Service) SendBriefings(ctx context.Context, messenger notify.Messenger) ([]Delivered, error) {
	if err := s.requireLLM("the morning briefing"); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var sent []Delivered
	for _, u := range users {
		log := s.log.WithField("user_id", u.ID)
		text, err := s.Briefing(ctx, u)
		if err != nil {
			log.WithError(err).Error("Briefing failed")
			continue
		}
		if err := messenger.Send(ctx, u.ID, notify.BriefingMessage(text)); err != nil {
			log.WithError(err).Error("Briefing delivery failed")
			continue
		}
		sent = append(sent, Delivered{UserID: u.ID, Text: text})
	}
	s.log.WithFields(logrus.Fields{"users": len(users), "sent": len(sent)}).Info("Briefings sent")
	return sent, nil
}

// Ask answers question from the articles of the user's subscribed sources.
// Users without subscriptions or history get an explanatory message and the
// model is not called.
func (s *Service) Ask(ctx context.Context, userID int64, question string) (string, error) {
	log := s.log.WithField("user_id", userID)

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return MsgNoSubscriptions, nil
	}
	if err != nil {
		return "", err
	}
	sources := user.SourceIDs()
	if len(sources) == 0 {
		return MsgNoSubscriptions, nil
	}

	all, err := s.history.History(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	var userHistory []domain.HistoryEntry
	for _, e := range all {
		for _, id := range sources {
			if e.Source == id {
				userHistory = append(userHistory, e)
				break
			}
		}
	}
	if len(userHistory) == 0 {
		return MsgNoHistory, nil
	}

	if err := s.requireLLM("questions"); err != nil {
		return "", err
	}

	selected := SelectContext(userHistory, question)
	log.WithFields(logrus.Fields{"question": question, "context": len(selected)}).Info("Answering question")

	req := llm.UserPrompt("", askPrompt(selected, question))
	req.Temperature = 0.3
	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Keywords returns the lower-cased words of question longer than three
// characters, punctuation removed.
func Keywords(question string) []string {
	cleaned := strings.NewReplacer("?", "", ".", "", ",", "", "!", "").Replace(strings.ToLower(question))
	var out []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) >= minKeywordLen {
			out = append(out, w)
		}
	}
	return out
}

// SelectContext picks up to five keyword matches, then fills with the latest
// entries, without duplicates and at most ten in total. history must be most
// recent first.
func SelectContext(history []domain.HistoryEntry, question string) []domain.HistoryEntry {
	var selected []domain.HistoryEntry
	seen := map[string]bool{}
	add := func(e domain.HistoryEntry) {
		if !seen[e.URL] && len(selected) < maxContext {
			seen[e.URL] = true
			selected = append(selected, e)
		}
	}

	if keywords := Keywords(question); len(keywords) > 0 {
		matches := 0
		for _, e := range history {
			if matches == maxKeywordMatches {
				break
			}
			text := strings.ToLower(e.Title + " " + e.KeyTakeaway + " " + strings.Join(e.Tags, " "))
			for _, k := range keywords {
				if strings.Contains(text, k) {
					add(e)
					matches++
					break
				}
			}
		}
	}
	for i, e := range history {
		if i == maxLatest {
			break
		}
		add(e)
	}
	return selected
}
