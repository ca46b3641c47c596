package redis

import (
	"fmt"
	"time"

	"github.com/kirinyoku/tablego/internal/slots"
)

const ns = "tablego:v1"

func KeyAvailability(date time.Time) string {
	return fmt.Sprintf("%s:availability:%s", ns, slots.Key(date))
}

// KeyAvailabilityVersion counts invalidations of a date's matrix.
func KeyAvailabilityVersion(date time.Time) string {
	return fmt.Sprintf("%s:availability:%s:ver", ns, slots.Key(date))
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemBooking(idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%s", ns, idemKey)
}

func ChannelChanges() string {
	return ns + ":changes"
}
