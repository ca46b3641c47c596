package slots

import (
	"testing"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		count int
		last  string
	}{
		{"monday", "2025-06-16", 13, "23:00"},
		{"friday", "2025-06-13", 13, "23:00"},
		{"saturday", "2025-06-14", 14, Midnight},
		{"sunday", "2025-06-15", 14, Midnight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := Labels(day(t, tt.date))
			require.NoError(t, err)

			assert.Len(t, labels, tt.count)
			assert.Equal(t, "11:00", labels[0])
			assert.Equal(t, tt.last, labels[len(labels)-1])
		})
	}
}

func TestLabels_ZeroDate(t *testing.T) {
	_, err := Labels(time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestHour(t *testing.T) {
	tests := []struct {
		label string
		want  int
		ok    bool
	}{
		{"11:00", 11, true},
		{"23:00", 23, true},
		{"00:00", 24, true},
		{"11:30", 0, false},
		{"7:00", 0, false},
		{"25:00", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			h, err := Hour(tt.label)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrInvalidSlot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestContains(t *testing.T) {
	sat := day(t, "2025-06-14")
	mon := day(t, "2025-06-16")

	assert.True(t, Contains(sat, "00:00"))
	assert.False(t, Contains(mon, "00:00"))
	assert.True(t, Contains(mon, "19:00"))
	assert.False(t, Contains(mon, "10:00"))
	assert.False(t, Contains(time.Time{}, "19:00"))
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	d, err := ParseDate(" 2025-06-14 ", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, d.Location())
	assert.Equal(t, 0, d.Hour())
	assert.Equal(t, "2025-06-14", Key(d))

	_, err = ParseDate("14/06/2025", loc)
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	scanned := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

	got := InLocation(scanned, loc)
	assert.Equal(t, "2025-06-14", Key(got))
	assert.Equal(t, loc, got.Location())
}
