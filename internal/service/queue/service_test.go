package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc *Service
	clk *clock.Fixed
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clk := clock.NewFixed(time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC))
	store := memory.NewStore(clk.Now)
	return &fixture{svc: New(store, clk, events.Nop{}, cfg), clk: clk}
}

// join advances the clock first so entries get distinct creation times.
func (f *fixture) join(t *testing.T, phone string) *domain.QueuePosition {
	t.Helper()
	f.clk.Advance(time.Second)
	v, err := f.svc.Join(context.Background(), JoinInput{Name: "Party " + phone, Phone: phone, PartySize: 2})
	require.NoError(t, err)
	return v
}

func TestNewCode(t *testing.T) {
	for range 100 {
		code := NewCode()
		require.Len(t, code, 6)
		for i, r := range code {
			if i < 3 {
				assert.Contains(t, codeLetters, string(r))
			} else {
				assert.Contains(t, codeDigits, string(r))
			}
		}
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "O")
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("  abc123 "))
}

func TestJoin_FirstIsNext(t *testing.T) {
	f := newFixture(t, Config{})

	v := f.join(t, "+5511900000001")

	assert.Equal(t, 1, v.Position)
	assert.Equal(t, 0, v.PeopleAhead)
	assert.Zero(t, v.EstimatedWait)
	assert.Equal(t, "You are next in line.", v.Message)
	assert.Equal(t, domain.QueueWaiting, v.Entry.Status)
	assert.Equal(t, "2025-06-14", v.Entry.ServiceDate.Format(domain.DateLayout))
	assert.Len(t, v.Entry.Code, 6)
}

func TestJoin_PositionAndWait(t *testing.T) {
	f := newFixture(t, Config{WaitPerParty: 15 * time.Minute})

	f.join(t, "1")
	f.join(t, "2")
	v := f.join(t, "3")

	assert.Equal(t, 3, v.Position)
	assert.Equal(t, 2, v.PeopleAhead)
	assert.Equal(t, 30*time.Minute, v.EstimatedWait)
	assert.Equal(t, "You are number 3 in line.", v.Message)
}

func TestJoin_RejoinReturnsExistingPlace(t *testing.T) {
	f := newFixture(t, Config{})

	f.join(t, "1")
	first := f.join(t, "2")

	f.clk.Advance(time.Second)
	_, err := f.svc.Join(context.Background(), JoinInput{Name: "Again", Phone: "2", PartySize: 3})
	require.ErrorIs(t, err, domain.ErrConflict)

	var conflict domain.QueueConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.Entry.Code, conflict.Code)
	assert.Equal(t, 2, conflict.Position)
	assert.Equal(t, 1, conflict.PeopleAhead)
}

func TestJoin_RejoinAfterLeaving(t *testing.T) {
	f := newFixture(t, Config{})

	v := f.join(t, "1")
	_, err := f.svc.Cancel(context.Background(), v.Entry.ID)
	require.NoError(t, err)

	again := f.join(t, "1")
	assert.NotEqual(t, v.Entry.Code, again.Entry.Code)
	assert.Equal(t, 1, again.Position)
}

func TestJoin_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   JoinInput
	}{
		{"no name", JoinInput{Phone: "1", PartySize: 2}},
		{"no phone", JoinInput{Name: "A", PartySize: 2}},
		{"empty party", JoinInput{Name: "A", Phone: "1", PartySize: 0}},
		{"huge party", JoinInput{Name: "A", Phone: "1", PartySize: MaxPartySize + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			_, err := f.svc.Join(context.Background(), tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestJoin_ThousandUniqueCodes(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	seen := make(map[string]struct{}, 1000)
	for i := range 1000 {
		f.clk.Advance(time.Millisecond)
		v, err := f.svc.Join(ctx, JoinInput{Name: "P", Phone: fmt.Sprintf("+55119%08d", i), PartySize: 2})
		require.NoError(t, err)

		_, dup := seen[v.Entry.Code]
		require.False(t, dup, "duplicate code %s", v.Entry.Code)
		seen[v.Entry.Code] = struct{}{}
	}

	assert.Len(t, seen, 1000)
}

func TestJoin_RetriesCodeCollisions(t *testing.T) {
	codes := []string{"AAA111", "AAA111", "AAA111", "BBB222"}
	next := 0
	f := newFixture(t, Config{NewCode: func() string {
		c := codes[next%len(codes)]
		next++
		return c
	}})

	first := f.join(t, "1")
	assert.Equal(t, "AAA111", first.Entry.Code)

	second := f.join(t, "2")
	assert.Equal(t, "BBB222", second.Entry.Code)
}

func TestJoin_CodeGenerationExhausted(t *testing.T) {
	calls := 0
	f := newFixture(t, Config{NewCode: func() string {
		calls++
		return "ZZZ999"
	}})

	f.join(t, "1")
	calls = 0

	_, err := f.svc.Join(context.Background(), JoinInput{Name: "B", Phone: "2", PartySize: 2})
	assert.ErrorIs(t, err, domain.ErrCodeGeneration)
	assert.Equal(t, maxCodeAttempts, calls)
}

func TestLookupByCode(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.join(t, "1")
	v := f.join(t, "2")

	got, err := f.svc.LookupByCode(ctx, strings.ToLower(v.Entry.Code))
	require.NoError(t, err)
	assert.Equal(t, v.Entry.ID, got.Entry.ID)
	assert.Equal(t, 2, got.Position)

	_, err = f.svc.LookupByCode(ctx, "NOP000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLookupByCode_PositionMovesUp(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first := f.join(t, "1")
	second := f.join(t, "2")

	_, err := f.svc.Call(ctx, first.Entry.ID)
	require.NoError(t, err)

	got, err := f.svc.LookupByCode(ctx, second.Entry.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, "You are next in line.", got.Message)

	called, err := f.svc.LookupByCode(ctx, first.Entry.Code)
	require.NoError(t, err)
	assert.Zero(t, called.Position)
	assert.Equal(t, domain.QueueCalled, called.Entry.Status)
	assert.NotEmpty(t, called.Message)
}

func TestTransitions(t *testing.T) {
	type op func(s *Service, ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)

	call := (*Service).Call
	seat := (*Service).Seat
	noShow := (*Service).MarkNoShow
	cancel := (*Service).Cancel

	// setup drives a fresh WAITING entry into the starting state
	starts := map[domain.QueueStatus][]op{
		domain.QueueWaiting:   nil,
		domain.QueueCalled:    {call},
		domain.QueueSeated:    {call, seat},
		domain.QueueNoShow:    {call, noShow},
		domain.QueueCancelled: {cancel},
	}

	tests := []struct {
		name string
		op   op
		to   domain.QueueStatus
		ok   map[domain.QueueStatus]bool
	}{
		{"call", call, domain.QueueCalled, map[domain.QueueStatus]bool{domain.QueueWaiting: true}},
		{"seat", seat, domain.QueueSeated, map[domain.QueueStatus]bool{domain.QueueCalled: true}},
		{"no show", noShow, domain.QueueNoShow, map[domain.QueueStatus]bool{domain.QueueCalled: true}},
		{"cancel", cancel, domain.QueueCancelled, map[domain.QueueStatus]bool{domain.QueueWaiting: true, domain.QueueCalled: true}},
	}

	for _, tt := range tests {
		for from, path := range starts {
			t.Run(tt.name+" from "+string(from), func(t *testing.T) {
				f := newFixture(t, Config{})
				ctx := context.Background()

				v := f.join(t, "1")
				for _, step := range path {
					_, err := step(f.svc, ctx, v.Entry.ID)
					require.NoError(t, err)
				}

				got, err := tt.op(f.svc, ctx, v.Entry.ID)
				if !tt.ok[from] {
					var te domain.InvalidTransitionError
					require.True(t, errors.As(err, &te))
					assert.Equal(t, from, te.From)
					assert.Equal(t, tt.to, te.To)
					return
				}

				require.NoError(t, err)
				assert.Equal(t, tt.to, got.Status)
			})
		}
	}
}

func TestTransitions_Timestamps(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	v := f.join(t, "1")

	f.clk.Advance(5 * time.Minute)
	called, err := f.svc.Call(ctx, v.Entry.ID)
	require.NoError(t, err)
	require.NotNil(t, called.CalledAt)
	assert.Equal(t, f.clk.Now(), *called.CalledAt)

	f.clk.Advance(2 * time.Minute)
	seated, err := f.svc.Seat(ctx, v.Entry.ID)
	require.NoError(t, err)
	require.NotNil(t, seated.SeatedAt)
	assert.Equal(t, f.clk.Now(), *seated.SeatedAt)
	assert.NotNil(t, seated.CalledAt)
}

func TestTransitions_ExpiredIsTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	v := f.join(t, "1")
	_, err := f.svc.ClearQueue(ctx)
	require.NoError(t, err)

	_, err = f.svc.Call(ctx, v.Entry.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAutoExpire(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	waiting := f.join(t, "1")
	called := f.join(t, "2")
	seated := f.join(t, "3")
	cancelled := f.join(t, "5")
	noShow := f.join(t, "6")
	_, err := f.svc.Call(ctx, called.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Call(ctx, seated.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Seat(ctx, seated.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, cancelled.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Call(ctx, noShow.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkNoShow(ctx, noShow.Entry.ID)
	require.NoError(t, err)

	// next day
	f.clk.Set(time.Date(2025, 6, 15, 0, 0, 1, 0, time.UTC))
	today := f.join(t, "4")

	n, err := f.svc.AutoExpire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for id, want := range map[uuid.UUID]domain.QueueStatus{
		waiting.Entry.ID:   domain.QueueExpired,
		called.Entry.ID:    domain.QueueExpired,
		seated.Entry.ID:    domain.QueueSeated,
		cancelled.Entry.ID: domain.QueueCancelled,
		noShow.Entry.ID:    domain.QueueNoShow,
		today.Entry.ID:     domain.QueueWaiting,
	} {
		got, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Entry.Status)
	}

	n, err = f.svc.AutoExpire(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClearQueue(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.join(t, "1")
	f.join(t, "2")
	called := f.join(t, "3")
	seated := f.join(t, "4")
	_, err := f.svc.Call(ctx, called.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Call(ctx, seated.Entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Seat(ctx, seated.Entry.ID)
	require.NoError(t, err)

	n, err := f.svc.ClearQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	waiting, err := f.svc.ListToday(ctx, domain.QueueWaiting, domain.QueueCalled)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestListTodayAndStats(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	a := f.join(t, "1")
	f.join(t, "2")
	c := f.join(t, "3")
	_, err := f.svc.Call(ctx, a.Entry.ID)
	require.NoError(t, err)

	all, err := f.svc.ListToday(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.QueueCalled, all[0].Entry.Status)
	assert.Zero(t, all[0].Position)
	assert.Equal(t, 1, all[1].Position)
	assert.Equal(t, 2, all[2].Position)

	waiting, err := f.svc.ListToday(ctx, domain.QueueWaiting)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, c.Entry.ID, waiting[1].Entry.ID)
	assert.Equal(t, 2, waiting[1].Position)

	_, err = f.svc.ListToday(ctx, "LOST")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByStatus[domain.QueueWaiting])
	assert.Equal(t, 1, st.ByStatus[domain.QueueCalled])
}
