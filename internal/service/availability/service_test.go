package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saturday = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	monday   = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
)

type fakeCache struct {
	stored      map[string][]domain.SlotAvailability
	loads       int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{stored: make(map[string][]domain.SlotAvailability)}
}

func (c *fakeCache) LoadAvailability(
	ctx context.Context,
	date time.Time,
	_ time.Duration,
	loader func(ctx context.Context) ([]domain.SlotAvailability, error),
) ([]domain.SlotAvailability, error) {
	key := date.Format(domain.DateLayout)
	if m, ok := c.stored[key]; ok {
		return m, nil
	}
	c.loads++
	m, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	c.stored[key] = m
	return m, nil
}

func (c *fakeCache) InvalidateAvailability(_ context.Context, date time.Time) error {
	key := date.Format(domain.DateLayout)
	delete(c.stored, key)
	c.invalidated = append(c.invalidated, key)
	return nil
}

func setup(t *testing.T, now time.Time, cache Cache) (*Service, *memory.Store) {
	t.Helper()
	clk := clock.NewFixed(now)
	store := memory.NewStore(clk.Now)
	return New(store, cache, clk, Config{}), store
}

func book(t *testing.T, store *memory.Store, date time.Time, slot string, env domain.Environment) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		Customer:    domain.Customer{Name: "Ana", Phone: "+5511999990000"},
		Date:        date,
		TimeSlot:    slot,
		Environment: env,
		Guests:      2,
		Status:      domain.BookingConfirmed,
	}
	require.NoError(t, store.Bookings().Create(context.Background(), b))
	return b
}

func find(t *testing.T, m []domain.SlotAvailability, label string) domain.SlotAvailability {
	t.Helper()
	for _, a := range m {
		if a.Time == label {
			return a
		}
	}
	t.Fatalf("label %s not in matrix", label)
	return domain.SlotAvailability{}
}

func TestAvailability_FutureDayHasEveryLabel(t *testing.T) {
	svc, _ := setup(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), nil)

	m, err := svc.Availability(context.Background(), saturday)
	require.NoError(t, err)
	assert.Len(t, m, 14)

	m, err = svc.Availability(context.Background(), monday)
	require.NoError(t, err)
	assert.Len(t, m, 13)

	for _, a := range m {
		assert.True(t, a.AvailableIndoor)
		assert.True(t, a.AvailableOutdoor)
	}
}

func TestAvailability_BookingTakesOneEnvironment(t *testing.T) {
	svc, store := setup(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), nil)
	book(t, store, saturday, "19:00", domain.EnvironmentIndoor)

	m, err := svc.Availability(context.Background(), saturday)
	require.NoError(t, err)

	got := find(t, m, "19:00")
	assert.False(t, got.AvailableIndoor)
	assert.True(t, got.AvailableOutdoor)
	assert.True(t, find(t, m, "20:00").AvailableIndoor)
}

func TestAvailability_CancelledBookingFreesSlot(t *testing.T) {
	svc, store := setup(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), nil)
	b := book(t, store, saturday, "19:00", domain.EnvironmentIndoor)

	b.Status = domain.BookingCancelled
	require.NoError(t, store.Bookings().Update(context.Background(), b))

	m, err := svc.Availability(context.Background(), saturday)
	require.NoError(t, err)
	assert.True(t, find(t, m, "19:00").AvailableIndoor)
}

func TestAvailability_Blocks(t *testing.T) {
	svc, store := setup(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), nil)
	ctx := context.Background()
	outdoor := domain.EnvironmentOutdoor

	require.NoError(t, store.BlockedSlots().Create(ctx, &domain.BlockedSlot{Date: saturday, TimeSlot: "20:00"}))
	require.NoError(t, store.BlockedSlots().Create(ctx, &domain.BlockedSlot{Date: saturday, TimeSlot: "21:00", Environment: &outdoor}))

	m, err := svc.Availability(ctx, saturday)
	require.NoError(t, err)

	both := find(t, m, "20:00")
	assert.False(t, both.AvailableIndoor)
	assert.False(t, both.AvailableOutdoor)

	one := find(t, m, "21:00")
	assert.True(t, one.AvailableIndoor)
	assert.False(t, one.AvailableOutdoor)
}

func TestAvailability_TodayDropsPassedHours(t *testing.T) {
	svc, _ := setup(t, time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC), nil)

	m, err := svc.Availability(context.Background(), saturday)
	require.NoError(t, err)

	var labels []string
	for _, a := range m {
		labels = append(labels, a.Time)
	}
	assert.Equal(t, []string{"19:00", "20:00", "21:00", "22:00", "23:00", "00:00"}, labels)
}

func TestAvailability_MidnightSurvivesLateEvening(t *testing.T) {
	svc, _ := setup(t, time.Date(2025, 6, 14, 23, 10, 0, 0, time.UTC), nil)

	m, err := svc.Availability(context.Background(), saturday)
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "00:00", m[0].Time)
}

func TestAvailability_RejectsPastAndZeroDates(t *testing.T) {
	svc, _ := setup(t, time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC), nil)

	_, err := svc.Availability(context.Background(), time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrPastDate)

	_, err = svc.Availability(context.Background(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestAvailability_CacheHoldsFullDay(t *testing.T) {
	cache := newFakeCache()
	clk := clock.NewFixed(time.Date(2025, 6, 14, 12, 30, 0, 0, time.UTC))
	svc := New(memory.NewStore(clk.Now), cache, clk, Config{})
	ctx := context.Background()

	m, err := svc.Availability(ctx, saturday)
	require.NoError(t, err)
	assert.Len(t, m, 12)
	assert.Len(t, cache.stored["2025-06-14"], 14)

	clk.Set(time.Date(2025, 6, 14, 20, 5, 0, 0, time.UTC))
	m, err = svc.Availability(ctx, saturday)
	require.NoError(t, err)
	assert.Len(t, m, 4)
	assert.Equal(t, 1, cache.loads)

	svc.Invalidate(ctx, saturday)
	assert.Equal(t, []string{"2025-06-14"}, cache.invalidated)
}

func TestResolve_ExcludesBooking(t *testing.T) {
	svc, store := setup(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), nil)
	b := book(t, store, saturday, "19:00", domain.EnvironmentIndoor)

	m, err := svc.Resolve(context.Background(), store, saturday, b.ID)
	require.NoError(t, err)
	assert.True(t, find(t, m, "19:00").AvailableIndoor)

	m, err = svc.Resolve(context.Background(), store, saturday, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, find(t, m, "19:00").AvailableIndoor)
}

func TestCheckDate_TodayIsAllowed(t *testing.T) {
	svc, _ := setup(t, time.Date(2025, 6, 14, 23, 59, 0, 0, time.UTC), nil)

	assert.NoError(t, svc.CheckDate(saturday))
	assert.True(t, svc.IsToday(saturday))
	assert.False(t, svc.IsToday(monday))
}
