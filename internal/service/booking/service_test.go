package booking

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/repository/memory"
	"github.com/kirinyoku/tablego/internal/service/availability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saturday = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	changes []events.Change
}

func (r *recorder) Publish(_ context.Context, c events.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

type fixture struct {
	svc   *Service
	store *memory.Store
	clk   *clock.Fixed
	pub   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFixed(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore(clk.Now)
	pub := &recorder{}
	avail := availability.New(store, nil, clk, availability.Config{})
	return &fixture{
		svc:   New(store, avail, pub, clk),
		store: store,
		clk:   clk,
		pub:   pub,
	}
}

func input(slot string, env domain.Environment) CreateInput {
	return CreateInput{
		Customer:    domain.Customer{Name: "Ana Souza", Email: "ana@example.com", Phone: "+5511999990000"},
		Date:        saturday,
		TimeSlot:    slot,
		Environment: env,
		Guests:      4,
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, "19:00", b.TimeSlot)

	require.Len(t, f.pub.changes, 1)
	assert.Equal(t, events.AvailabilityChanged, f.pub.changes[0].Kind)
	assert.Equal(t, "2025-06-14", f.pub.changes[0].Date)
}

func TestCreate_SameSlotOtherEnvironment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("19:00", domain.EnvironmentOutdoor))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreate_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), input("20:00", domain.EnvironmentOutdoor))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	active, err := f.store.Bookings().ListActiveByDate(context.Background(), saturday)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   error
	}{
		{"past date", func(in *CreateInput) { in.Date = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) }, domain.ErrPastDate},
		{"zero date", func(in *CreateInput) { in.Date = time.Time{} }, domain.ErrInvalidDate},
		{"weekday midnight", func(in *CreateInput) {
			in.Date = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
			in.TimeSlot = "00:00"
		}, domain.ErrInvalidSlot},
		{"half hour", func(in *CreateInput) { in.TimeSlot = "19:30" }, domain.ErrInvalidSlot},
		{"no name", func(in *CreateInput) { in.Customer.Name = "" }, domain.ErrInvalidInput},
		{"no phone", func(in *CreateInput) { in.Customer.Phone = "" }, domain.ErrInvalidInput},
		{"bad environment", func(in *CreateInput) { in.Environment = "ROOFTOP" }, domain.ErrInvalidInput},
		{"no guests", func(in *CreateInput) { in.Guests = 0 }, domain.ErrInvalidInput},
		{"too many guests", func(in *CreateInput) { in.Guests = MaxGuests + 1 }, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := input("19:00", domain.EnvironmentIndoor)
			tt.mutate(&in)

			_, err := f.svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_PassedHourToday(t *testing.T) {
	f := newFixture(t)
	f.clk.Set(time.Date(2025, 6, 14, 19, 15, 0, 0, time.UTC))

	_, err := f.svc.Create(context.Background(), input("19:00", domain.EnvironmentIndoor))
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)

	_, err = f.svc.Create(context.Background(), input("00:00", domain.EnvironmentIndoor))
	assert.NoError(t, err)
}

func TestCreate_BlockedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.BlockedSlots().Create(ctx, &domain.BlockedSlot{Date: saturday, TimeSlot: "21:00"}))

	_, err := f.svc.Create(ctx, input("21:00", domain.EnvironmentOutdoor))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateStatus_CancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	cancelled, err := f.svc.UpdateStatus(ctx, first.ID, domain.BookingCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	_, err = f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	// the slot went to someone else
	_, err = f.svc.UpdateStatus(ctx, first.ID, domain.BookingConfirmed)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
}

func TestUpdateStatus_ReconfirmBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCancelled)
	require.NoError(t, err)

	indoor := domain.EnvironmentIndoor
	require.NoError(t, f.store.BlockedSlots().Create(ctx, &domain.BlockedSlot{
		Date: saturday, TimeSlot: "19:00", Environment: &indoor,
	}))

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateStatus_ReconfirmFreeSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCancelled)
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, uuid.New(), domain.BookingCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, "DONE")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdate_MoveIntoTakenSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, input("20:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	slot := "19:00"
	_, err = f.svc.Update(ctx, other.ID, Patch{TimeSlot: &slot})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "20:00", got.TimeSlot)
}

func TestUpdate_MoveAndEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	sunday := saturday.AddDate(0, 0, 1)
	env := domain.EnvironmentOutdoor
	guests := 6
	notes := "birthday"

	got, err := f.svc.Update(ctx, b.ID, Patch{
		Date:         &sunday,
		Environment:  &env,
		Guests:       &guests,
		Observations: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", got.Date.Format(domain.DateLayout))
	assert.Equal(t, domain.EnvironmentOutdoor, got.Environment)
	assert.Equal(t, 6, got.Guests)
	assert.Equal(t, "birthday", got.Observations)

	// the old cell is free again
	_, err = f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	assert.NoError(t, err)

	var dates []string
	for _, c := range f.pub.changes {
		dates = append(dates, c.Date)
	}
	assert.Contains(t, dates, "2025-06-15")
}

func TestUpdate_KeepSlotDoesNotConflictWithItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	name := "Ana S."
	slot := "19:00"
	got, err := f.svc.Update(ctx, b.ID, Patch{Name: &name, TimeSlot: &slot})
	require.NoError(t, err)
	assert.Equal(t, "Ana S.", got.Customer.Name)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	zero := 0
	_, err = f.svc.Update(ctx, b.ID, Patch{Guests: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	past := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Update(ctx, b.ID, Patch{Date: &past})
	assert.ErrorIs(t, err, domain.ErrPastDate)

	_, err = f.svc.Update(ctx, uuid.New(), Patch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, b.ID))

	_, err = f.svc.Get(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Remove(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("21:00", domain.EnvironmentIndoor))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, input("19:00", domain.EnvironmentOutdoor))
	require.NoError(t, err)

	all, err := f.svc.List(ctx, repository.BookingFilter{Date: &saturday})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "19:00", all[0].TimeSlot)

	indoor, err := f.svc.List(ctx, repository.BookingFilter{Environment: domain.EnvironmentIndoor})
	require.NoError(t, err)
	assert.Len(t, indoor, 1)

	_, err = f.svc.List(ctx, repository.BookingFilter{Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)

	pdf, err := f.svc.Sheet(ctx, saturday)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = f.svc.Sheet(ctx, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestUpdate_CancelledBookingCannotLeaveCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("19:00", domain.EnvironmentIndoor))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCancelled)
	require.NoError(t, err)

	friday := saturday.AddDate(0, 0, -1)
	tests := []struct {
		name  string
		patch Patch
	}{
		{"outside hours", Patch{TimeSlot: ptr("03:00")}},
		{"weekday midnight", Patch{Date: &friday, TimeSlot: ptr("00:00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, b.ID, tt.patch)
			assert.ErrorIs(t, err, domain.ErrInvalidSlot)
		})
	}

	got, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "19:00", got.TimeSlot)
	assert.True(t, got.Date.Equal(saturday))

	moved, err := f.svc.Update(ctx, b.ID, Patch{TimeSlot: ptr("00:00")})
	require.NoError(t, err)
	assert.Equal(t, "00:00", moved.TimeSlot)
}

func TestUpdateStatus_ReconfirmRejectsSlotOutsideCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	friday := saturday.AddDate(0, 0, -1)
	for _, bad := range []struct {
		date time.Time
		slot string
	}{
		{saturday, "03:00"},
		{friday, "00:00"},
	} {
		b := &domain.Booking{
			Customer:    domain.Customer{Name: "Ana Souza", Phone: "+5511999990000"},
			Date:        bad.date,
			TimeSlot:    bad.slot,
			Environment: domain.EnvironmentOutdoor,
			Guests:      2,
			Status:      domain.BookingCancelled,
		}
		require.NoError(t, f.store.Bookings().Create(ctx, b))

		_, err := f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed)
		assert.ErrorIs(t, err, domain.ErrInvalidSlot, bad.slot)

		got, err := f.svc.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingCancelled, got.Status)
	}
}

func ptr[T any](v T) *T { return &v }
