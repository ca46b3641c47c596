package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/auth"
	"github.com/kirinyoku/tablego/internal/live"
	"github.com/kirinyoku/tablego/internal/ratelimit"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/slots"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// IdempotencyStore replays the first response of a keyed POST.
type IdempotencyStore interface {
	// Begin claims key. started is false when another request owns it; the
	// payload is then set only if that request already finished.
	Begin(ctx context.Context, key string, lockTTL time.Duration) (payload string, started bool, err error)
	Finish(ctx context.Context, key, payload string) error
	Abort(ctx context.Context, key string) error
}

// Deps are the router's collaborators. Everything except Services and
// Logger is optional; a nil value switches the feature off.
type Deps struct {
	Services      *service.Services
	Idempotency   IdempotencyStore
	Limiter       ratelimit.Limiter
	Hub           *live.Hub
	Verifier      *auth.Verifier
	PublicBaseURL string
	Logger        *slog.Logger
}

func NewRouter(d Deps, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(d.Logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/availability", handleGetAvailability(d.Services))
	r.POST("/bookings",
		RateLimit(d.Limiter, "bookings", d.Logger),
		handleCreateBooking(d.Services, d.Idempotency),
	)

	r.POST("/queue",
		RateLimit(d.Limiter, "queue", d.Logger),
		handleJoinQueue(d.Services),
	)
	r.GET("/queue/:code", handleLookupQueue(d.Services))
	r.GET("/queue/:code/qr", handleQueueQR(d.Services, d.PublicBaseURL))
	r.GET("/queue/:code/live", handleQueueLive(d.Services, d.Hub))

	// Admin API
	admin := r.Group("/admin", AdminAuth(d.Verifier))
	{
		admin.GET("/bookings", handleListBookings(d.Services))
		admin.GET("/bookings/sheet", handleBookingSheet(d.Services))
		admin.GET("/bookings/:id", handleGetBooking(d.Services))
		admin.PATCH("/bookings/:id", handleUpdateBooking(d.Services))
		admin.PATCH("/bookings/:id/status", handleUpdateBookingStatus(d.Services))
		admin.DELETE("/bookings/:id", handleRemoveBooking(d.Services))

		admin.GET("/blocks", handleListBlocks(d.Services))
		admin.GET("/blocks/day/:date", handleBlocksByDate(d.Services))
		admin.POST("/blocks", handleCreateBlock(d.Services))
		admin.POST("/blocks/day", handleBlockDay(d.Services))
		admin.DELETE("/blocks/day/:date", handleUnblockDay(d.Services))
		admin.DELETE("/blocks/:id", handleRemoveBlock(d.Services))

		admin.GET("/queue", handleListQueue(d.Services))
		admin.GET("/queue/stats", handleQueueStats(d.Services))
		admin.POST("/queue/clear", handleClearQueue(d.Services))
		admin.GET("/queue/:id", handleGetQueueEntry(d.Services))
		admin.POST("/queue/:id/call", handleQueueTransition(d.Services.Queue.Call))
		admin.POST("/queue/:id/seat", handleQueueTransition(d.Services.Queue.Seat))
		admin.POST("/queue/:id/no-show", handleQueueTransition(d.Services.Queue.MarkNoShow))
		admin.POST("/queue/:id/cancel", handleQueueTransition(d.Services.Queue.Cancel))
	}

	return r
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate reads a YYYY-MM-DD value as a day of the restaurant's zone.
func parseDate(c *gin.Context, svcs *service.Services, raw, field string) (time.Time, bool) {
	if raw == "" {
		badRequest(c, field+" is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	d, err := slots.ParseDate(raw, svcs.Clock.Location())
	if err != nil {
		badRequest(c, "invalid "+field+" (YYYY-MM-DD)")
		return time.Time{}, false
	}
	return d, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
