package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/live"
	"github.com/kirinyoku/tablego/internal/report"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/booking"
	"github.com/kirinyoku/tablego/internal/service/queue"
	"github.com/kirinyoku/tablego/internal/slots"
)

const idemLockTTL = 60 * time.Second

// @Summary  Remaining slots of a day
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Success  200  {object}  AvailabilityResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := parseDate(c, svcs, c.Query("date"), "date")
		if !ok {
			return
		}

		m, err := svcs.Availability.Availability(c.Request.Context(), date)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, AvailabilityResponse{
			Date:  slots.Key(date),
			Slots: m,
		}, "public, max-age=15")
	}
}

// @Summary  Create booking (idempotent)
// @Param    req  body  CreateBookingRequest  true  "payload"
// @Param    Idempotency-Key  header  string  false  "replay key"
// @Success  201  {object}  domain.Booking
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "slot already reserved or blocked / idem in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		date, ok := parseDate(c, svcs, req.Date, "date")
		if !ok {
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(idemKey)

			payload, started, err := idem.Begin(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !started {
				if payload != "" {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		b, err := svcs.Booking.Create(ctx, booking.CreateInput{
			Customer: domain.Customer{
				Name:  req.Name,
				Email: req.Email,
				Phone: req.Phone,
			},
			Date:         date,
			TimeSlot:     req.TimeSlot,
			Environment:  domain.Environment(req.Environment),
			Guests:       req.Guests,
			Observations: req.Observations,
		})
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Abort(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			payload, _ := json.Marshal(b)
			_ = idem.Finish(ctx, idemStorageKey, string(payload))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, b)
	}
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

// @Summary  Join today's queue
// @Param    req  body  JoinQueueRequest  true  "payload"
// @Success  201  {object}  QueueStatusResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  QueueConflictResponse  "already waiting today"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Failure  503  {object}  ErrorResponse  "no free code"
// @Router   /queue [post]
func handleJoinQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JoinQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		v, err := svcs.Queue.Join(c.Request.Context(), queue.JoinInput{
			Name:      strings.TrimSpace(req.Name),
			Phone:     strings.TrimSpace(req.Phone),
			PartySize: req.PartySize,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, ToQueueStatus(*v))
	}
}

// @Summary  Queue status by code
// @Param    code  path  string  true  "6-character code, any case"
// @Success  200  {object}  QueueStatusResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /queue/{code} [get]
func handleLookupQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svcs.Queue.LookupByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, ToQueueStatus(*v))
	}
}

// @Summary  QR code linking to the status page
// @Param    code  path  string  true  "queue code"
// @Produce  png
// @Success  200  {file}  binary
// @Failure  404  {object}  ErrorResponse
// @Router   /queue/{code}/qr [get]
func handleQueueQR(svcs *service.Services, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svcs.Queue.LookupByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}

		png, err := report.QueueQR(strings.TrimRight(baseURL, "/")+"/queue/"+v.Entry.Code, 256)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, "image/png", png)
	}
}

// @Summary  Live queue status (websocket)
// @Param    code  path  string  true  "queue code"
// @Success  101
// @Failure  404  {object}  ErrorResponse
// @Router   /queue/{code}/live [get]
func handleQueueLive(svcs *service.Services, hub *live.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hub == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "live updates disabled"})
			return
		}

		v, err := svcs.Queue.LookupByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}

		hub.Serve(c.Writer, c.Request, v.Entry.Code)
	}
}
