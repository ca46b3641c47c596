package clock

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time in the restaurant's local zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type Real struct {
	loc *time.Location
}

func New(loc *time.Location) Real {
	if loc == nil {
		loc = time.Local
	}
	return Real{loc: loc}
}

func (r Real) Now() time.Time           { return time.Now().In(r.loc) }
func (r Real) Location() *time.Location { return r.loc }

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayWindow returns [midnight, next midnight) around now.
func DayWindow(now time.Time) (time.Time, time.Time) {
	from := StartOfDay(now)
	return from, from.AddDate(0, 0, 1)
}

// Today is the local calendar day of c.
func Today(c Clock) time.Time {
	return StartOfDay(c.Now())
}
