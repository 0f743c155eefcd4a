package calendar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Impact levels
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// ParseEvents extracts timed releases from a calendar day page.
// Rows without a data-timestamp (all-day, tentative) are skipped.
func ParseEvents(r io.Reader) ([]contracts.CalendarEvent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}

	var events []contracts.CalendarEvent
	doc.Find("tr.calendar__row").Each(func(_ int, row *goquery.Selection) {
		ts, ok := row.Attr("data-timestamp")
		if !ok {
			return
		}
		sec, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
		if err != nil || sec <= 0 {
			return
		}

		currency := strings.ToUpper(strings.TrimSpace(row.Find("td.calendar__currency").Text()))
		title := strings.TrimSpace(row.Find("td.calendar__event").Text())
		if currency == "" || title == "" {
			return
		}

		events = append(events, contracts.CalendarEvent{
			Time:     time.Unix(sec, 0).UTC(),
			Currency: currency,
			Impact:   parseImpact(row.Find("td.calendar__impact span")),
			Title:    strings.Join(strings.Fields(title), " "),
		})
	})

	return events, nil
}

// parseImpact reads the impact icon: class suffix red/ora/yel, else the title text
func parseImpact(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	switch {
	case strings.Contains(class, "impact-red"):
		return ImpactHigh
	case strings.Contains(class, "impact-ora"):
		return ImpactMedium
	case strings.Contains(class, "impact-yel"):
		return ImpactLow
	}

	title, _ := s.Attr("title")
	title = strings.ToLower(title)
	switch {
	case strings.HasPrefix(title, "high"):
		return ImpactHigh
	case strings.HasPrefix(title, "medium"):
		return ImpactMedium
	default:
		return ImpactLow
	}
}
