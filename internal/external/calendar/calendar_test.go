package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
)

const mar2 = `<table class="calendar__table">
<tr class="calendar__row calendar__row--day-breaker"><td>Mon Mar 2</td></tr>
<tr class="calendar__row" data-timestamp="1772440200">
  <td class="calendar__currency">GBP</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-yel" title="Low Impact Expected"></span></td>
  <td class="calendar__event"><span class="calendar__event-title">Manufacturing  PMI</span></td>
</tr>
<tr class="calendar__row" data-timestamp="1772458200">
  <td class="calendar__currency">USD</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-red" title="High Impact Expected"></span></td>
  <td class="calendar__event">Non-Farm Employment Change</td>
</tr>
<tr class="calendar__row">
  <td class="calendar__currency">EUR</td>
  <td class="calendar__impact"><span class="icon" title="Holiday"></span></td>
  <td class="calendar__event">Bank Holiday</td>
</tr>
<tr class="calendar__row" data-timestamp="1772463600">
  <td class="calendar__currency">eur</td>
  <td class="calendar__impact"><span class="icon" title="Medium Impact Expected"></span></td>
  <td class="calendar__event">ECB President Speaks</td>
</tr>
</table>`

const mar3 = `<table>
<tr class="calendar__row" data-timestamp="1772499600">
  <td class="calendar__currency">JPY</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-ora"></span></td>
  <td class="calendar__event">Tokyo CPI</td>
</tr>
</table>`

func TestParseEvents(t *testing.T) {
	events, err := ParseEvents(strings.NewReader(mar2))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, contracts.CalendarEvent{
		Time:     time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		Currency: "GBP",
		Impact:   ImpactLow,
		Title:    "Manufacturing PMI",
	}, events[0])
	assert.Equal(t, ImpactHigh, events[1].Impact)
	assert.Equal(t, "EUR", events[2].Currency)
	assert.Equal(t, ImpactMedium, events[2].Impact)
}

func TestDayParam(t *testing.T) {
	assert.Equal(t, "mar2.2026", dayParam(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "dec31.2025", dayParam(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

type fakeCache struct {
	data map[string][]contracts.CalendarEvent
	sets int
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	ev, ok := f.data[key]
	if !ok {
		return false, nil
	}
	*dest.(*[]contracts.CalendarEvent) = ev
	return true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.data[key] = value.([]contracts.CalendarEvent)
	f.sets++
	return nil
}

func newCalendarServer(hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Query().Get("day") {
		case "mar2.2026":
			fmt.Fprint(w, mar2)
		case "mar3.2026":
			fmt.Fprint(w, mar3)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
}

func TestEvents_SpansDaysAndFilters(t *testing.T) {
	var hits int32
	srv := newCalendarServer(&hits)
	defer srv.Close()

	cache := &fakeCache{data: map[string][]contracts.CalendarEvent{}}
	c := NewClient(httputil.New(logger.Nop()).DisableRetry(), srv.URL, cache, nil)

	from := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
	events, err := c.Events(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "USD", events[0].Currency)
	assert.Equal(t, "EUR", events[1].Currency)
	assert.Equal(t, "JPY", events[2].Currency)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, 2, cache.sets)

	// memo serves the second call
	_, err = c.Events(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestEvents_SharedCacheHit(t *testing.T) {
	var hits int32
	srv := newCalendarServer(&hits)
	defer srv.Close()

	cached := []contracts.CalendarEvent{{
		Time: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), Currency: "CAD", Impact: ImpactHigh, Title: "Rate Decision",
	}}
	cache := &fakeCache{data: map[string][]contracts.CalendarEvent{"calendar:2026-03-02": cached}}
	c := NewClient(httputil.New(logger.Nop()).DisableRetry(), srv.URL, cache, nil)

	events, err := c.Events(context.Background(),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, cached, events)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestEvents_Errors(t *testing.T) {
	var hits int32
	srv := newCalendarServer(&hits)
	defer srv.Close()
	c := NewClient(httputil.New(logger.Nop()).DisableRetry(), srv.URL, nil, nil)

	at := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	_, err := c.Events(context.Background(), at, at.Add(time.Hour))
	assert.Error(t, err)

	_, err = c.Events(context.Background(), at, at.Add(-time.Hour))
	assert.ErrorIs(t, err, contracts.ErrMalformedInput)
}

func TestRefresh_BypassesMemo(t *testing.T) {
	var hits int32
	srv := newCalendarServer(&hits)
	defer srv.Close()

	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	c := NewClient(httputil.New(logger.Nop()).DisableRetry(), srv.URL, nil, nil).
		WithClock(func() time.Time { return now })

	n, err := c.Refresh(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.Refresh(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	_, err = c.Events(context.Background(), now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
