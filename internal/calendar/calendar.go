// Package calendar reads the ForexFactory weekly economic calendar.
package calendar

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

// cacheTTL bounds how often the weekly feed is downloaded; the publisher
// throttles clients that poll it aggressively.
const cacheTTL = 15 * time.Minute

type feed struct {
	Events []xmlEvent `xml:"event"`
}

type xmlEvent struct {
	Title    string `xml:"title"`
	Country  string `xml:"country"`
	Date     string `xml:"date"`
	Time     string `xml:"time"`
	Impact   string `xml:"impact"`
	Forecast string `xml:"forecast"`
	Previous string `xml:"previous"`
}

// Client fetches and filters calendar events.
type Client struct {
	url  string
	http *http.Client
	loc  *time.Location
	log  logrus.FieldLogger
	now  func() time.Time

	mu        sync.Mutex
	cached    []domain.CalendarEvent
	fetchedAt time.Time
}

// NewClient reads the feed at url. loc decides which calendar day a
// reference time falls on.
func NewClient(url string, httpClient *http.Client, loc *time.Location, logger logrus.FieldLogger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		url:  url,
		http: httpClient,
		loc:  loc,
		log:  logger.WithField("component", "calendar"),
		now:  time.Now,
	}
}

// Events returns the High and Medium impact events scheduled on the day of ref.
func (c *Client) Events(ctx context.Context, ref time.Time) ([]domain.CalendarEvent, error) {
	all, err := c.week(ctx)
	if err != nil {
		return nil, err
	}
	y, m, d := ref.In(c.loc).Date()

	var out []domain.CalendarEvent
	for _, ev := range all {
		ey, em, ed := ev.Date.Date()
		if ey != y || em != m || ed != d {
			continue
		}
		if ev.Impact != domain.ImpactHigh && ev.Impact != domain.ImpactMedium {
			continue
		}
		out = append(out, ev)
	}
	c.log.WithFields(logrus.Fields{
		"day":    fmt.Sprintf("%04d-%02d-%02d", y, m, d),
		"events": len(out),
	}).Debug("Calendar events filtered")
	return out, nil
}

// EventsForCurrencies groups the day's events by currency. Every requested
// code has an entry, possibly empty.
func (c *Client) EventsForCurrencies(ctx context.Context, codes []string, ref time.Time) (map[string][]domain.CalendarEvent, error) {
	events, err := c.Events(ctx, ref)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string][]domain.CalendarEvent, len(codes))
	for _, code := range codes {
		byCode[code] = []domain.CalendarEvent{}
	}
	for _, ev := range events {
		if _, ok := byCode[ev.Currency]; ok {
			byCode[ev.Currency] = append(byCode[ev.Currency], ev)
		}
	}
	return byCode, nil
}

func (c *Client) week(ctx context.Context) ([]domain.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < cacheTTL {
		return c.cached, nil
	}

	events, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cached, c.fetchedAt = events, c.now()
	return events, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.CalendarEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch calendar: unexpected status %d", resp.StatusCode)
	}

	var f feed
	dec := xml.NewDecoder(resp.Body)
	// The feed declares windows-1252; its content is ASCII in practice.
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]domain.CalendarEvent, 0, len(f.Events))
	for _, x := range f.Events {
		when, err := parseEventTime(x.Date, x.Time)
		if err != nil {
			c.log.WithError(err).WithField("title", x.Title).Debug("Skipping calendar event")
			continue
		}
		impact := strings.TrimSpace(x.Impact)
		if impact == "" {
			impact = domain.ImpactLow
		}
		events = append(events, domain.CalendarEvent{
			Title:    strings.TrimSpace(x.Title),
			Currency: strings.ToUpper(strings.TrimSpace(x.Country)),
			Date:     when,
			Impact:   impact,
			Forecast: strings.TrimSpace(x.Forecast),
			Previous: strings.TrimSpace(x.Previous),
		})
	}
	c.log.WithField("events", len(events)).Info("Calendar fetched")
	return events, nil
}

var clockRe = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(am|pm)$`)

// parseEventTime reads "M-D-YYYY" and "h:mmam". Times such as "All Day" or
// "Tentative" map to midnight.
func parseEventTime(date, clock string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(date), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}

	hour, minute := 0, 0
	if m := clockRe.FindStringSubmatch(strings.TrimSpace(clock)); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		pm := strings.EqualFold(m[3], "pm")
		if pm && hour < 12 {
			hour += 12
		}
		if !pm && hour == 12 {
			hour = 0
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}
