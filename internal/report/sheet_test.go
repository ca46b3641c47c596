package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingSheet(t *testing.T) {
	date := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	bookings := []domain.Booking{
		{
			Customer:     domain.Customer{Name: "João Ávila", Phone: "+5511999990000"},
			TimeSlot:     "19:00",
			Environment:  domain.EnvironmentIndoor,
			Guests:       4,
			Observations: "window table, celebrating an anniversary with family",
		},
		{
			Customer:    domain.Customer{Name: "Ana", Phone: "+5511999990001"},
			TimeSlot:    "00:00",
			Environment: domain.EnvironmentOutdoor,
			Guests:      2,
		},
	}

	pdf, err := BookingSheet(date, bookings, date.Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	empty, err := BookingSheet(date, nil, date)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF")))
}

func TestQueueQR(t *testing.T) {
	png, err := QueueQR("http://localhost:8080/queue/ABC123", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, 30, len([]rune(truncate("ççççççççççççççççççççççççççççççççççççç", 30))))
}
