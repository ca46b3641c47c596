// Package slots derives the bookable time labels of a calendar day.
package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
)

const (
	firstHour = 11
	lastHour  = 23

	// Midnight is the extra weekend label. It closes the day, so it sorts
	// and compares as hour 24.
	Midnight = "00:00"
)

// Labels returns the ordered time labels the restaurant serves on date.
func Labels(date time.Time) ([]string, error) {
	if date.IsZero() {
		return nil, domain.ErrInvalidDate
	}

	out := make([]string, 0, lastHour-firstHour+2)
	for h := firstHour; h <= lastHour; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h))
	}

	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		out = append(out, Midnight)
	}

	return out, nil
}

// Hour returns the ordering hour of a label, with "00:00" mapped to 24.
func Hour(label string) (int, error) {
	hh, mm, ok := strings.Cut(label, ":")
	if !ok || len(hh) != 2 || mm != "00" {
		return 0, fmt.Errorf("slots.Hour: %q: %w", label, domain.ErrInvalidSlot)
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("slots.Hour: %q: %w", label, domain.ErrInvalidSlot)
	}

	if h == 0 {
		return 24, nil
	}

	return h, nil
}

// Contains reports whether label is one of date's labels.
func Contains(date time.Time, label string) bool {
	labels, err := Labels(date)
	if err != nil {
		return false
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// ParseDate parses a YYYY-MM-DD day into local midnight of loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("slots.ParseDate: %q: %w", s, domain.ErrInvalidDate)
	}
	return d, nil
}

// Key formats the calendar day of t.
func Key(t time.Time) string {
	return t.Format(domain.DateLayout)
}

// InLocation re-anchors a calendar day (for example a DATE scanned as UTC
// midnight) at midnight of loc without shifting the day.
func InLocation(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
