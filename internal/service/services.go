package service

import (
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/service/availability"
	"github.com/kirinyoku/tablego/internal/service/blocks"
	"github.com/kirinyoku/tablego/internal/service/booking"
	"github.com/kirinyoku/tablego/internal/service/queue"
)

type Services struct {
	Availability *availability.Service
	Booking      *booking.Service
	Blocks       *blocks.Service
	Queue        *queue.Service
	Clock        clock.Clock
}

type Config struct {
	Availability availability.Config
	Queue        queue.Config
}

// NewServices wires the domain services over one store. cache may be nil,
// in which case availability is always computed from storage.
func NewServices(
	store repository.Store,
	cache availability.Cache,
	pub events.Publisher,
	clk clock.Clock,
	cfg Config,
) *Services {
	avail := availability.New(store, cache, clk, cfg.Availability)

	return &Services{
		Availability: avail,
		Booking:      booking.New(store, avail, pub, clk),
		Blocks:       blocks.New(store, avail, pub),
		Queue:        queue.New(store, clk, pub, cfg.Queue),
		Clock:        clk,
	}
}
