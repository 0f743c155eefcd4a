package calendar

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/redis"
)

// Cache is the shared day cache (*redis.Cache satisfies it)
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type memoEntry struct {
	events    []contracts.CalendarEvent
	fetchedAt time.Time
}

// Client scrapes the economic calendar one UTC day at a time
// ⭐ SSOT: 경제 캘린더 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	cache      Cache
	logger     *logger.Logger
	ttl        time.Duration
	now        func() time.Time

	mu   sync.Mutex
	memo map[string]memoEntry
}

// NewClient creates a calendar client. cache may be nil.
func NewClient(httpClient *httputil.Client, baseURL string, cache Cache, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      cache,
		logger:     log,
		ttl:        redis.TTLCalendar,
		now:        time.Now,
		memo:       make(map[string]memoEntry),
	}
}

// WithClock overrides the memo clock (tests)
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

var _ contracts.CalendarSource = (*Client)(nil)

// Events returns releases with from <= Time <= to, ordered by time
func (c *Client) Events(ctx context.Context, from, to time.Time) ([]contracts.CalendarEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: calendar range %s > %s", contracts.ErrMalformedInput, from, to)
	}

	var out []contracts.CalendarEvent
	for day := truncateDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		events, err := c.day(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if !ev.Time.Before(from) && !ev.Time.After(to) {
				out = append(out, ev)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// Refresh re-scrapes one day, replacing memo and cache entries
func (c *Client) Refresh(ctx context.Context, day time.Time) (int, error) {
	day = truncateDay(day)
	events, err := c.fetch(ctx, day)
	if err != nil {
		return 0, err
	}
	c.store(ctx, day, events)
	return len(events), nil
}

func (c *Client) day(ctx context.Context, day time.Time) ([]contracts.CalendarEvent, error) {
	key := redis.CalendarKey(day)

	c.mu.Lock()
	entry, ok := c.memo[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.events, nil
	}

	if c.cache != nil {
		var cached []contracts.CalendarEvent
		hit, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			c.logger.WithError(err).Debugf("Calendar cache read failed: %s", key)
		}
		if hit {
			c.remember(key, cached)
			return cached, nil
		}
	}

	events, err := c.fetch(ctx, day)
	if err != nil {
		return nil, err
	}
	c.store(ctx, day, events)
	return events, nil
}

func (c *Client) fetch(ctx context.Context, day time.Time) ([]contracts.CalendarEvent, error) {
	url := fmt.Sprintf("%s?day=%s", c.baseURL, dayParam(day))

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	events, err := ParseEvents(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"day":   day.Format("2006-01-02"),
		"count": len(events),
	}).Debug("Fetched calendar")

	return events, nil
}

func (c *Client) store(ctx context.Context, day time.Time, events []contracts.CalendarEvent) {
	key := redis.CalendarKey(day)
	c.remember(key, events)
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, events, c.ttl); err != nil {
		c.logger.WithError(err).Warnf("Calendar cache write failed: %s", key)
	}
}

func (c *Client) remember(key string, events []contracts.CalendarEvent) {
	c.mu.Lock()
	c.memo[key] = memoEntry{events: events, fetchedAt: c.now()}
	c.mu.Unlock()
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dayParam formats a day the way the calendar site expects (mar2.2026)
func dayParam(day time.Time) string {
	return strings.ToLower(day.Format("Jan")) + day.Format("2.2006")
}
