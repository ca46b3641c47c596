package httpgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/blocks"
	"github.com/kirinyoku/tablego/internal/service/booking"
	"github.com/kirinyoku/tablego/internal/slots"
)

// --- Bookings ---

// @Summary  List bookings
// @Param    date         query  string  false  "YYYY-MM-DD"
// @Param    status       query  string  false  "PENDING | CONFIRMED | CANCELLED"
// @Param    environment  query  string  false  "INDOOR | OUTDOOR"
// @Param    limit        query  int     false  "page size"
// @Param    offset       query  int     false  "offset"
// @Success  200  {array}   domain.Booking
// @Security BearerAuth
// @Router   /admin/bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := repository.BookingFilter{
			Status:      domain.BookingStatus(c.Query("status")),
			Environment: domain.Environment(c.Query("environment")),
			Limit:       parseIntDefault(c.Query("limit"), 100),
			Offset:      parseIntDefault(c.Query("offset"), 0),
		}
		if raw := c.Query("date"); raw != "" {
			d, ok := parseDate(c, svcs, raw, "date")
			if !ok {
				return
			}
			f.Date = &d
		}

		out, err := svcs.Booking.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		if out == nil {
			out = []domain.Booking{}
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Printable day sheet
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Produce  application/pdf
// @Success  200  {file}  binary
// @Security BearerAuth
// @Router   /admin/bookings/sheet [get]
func handleBookingSheet(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := parseDate(c, svcs, c.Query("date"), "date")
		if !ok {
			return
		}

		pdf, err := svcs.Booking.Sheet(c.Request.Context(), date)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="bookings-`+slots.Key(date)+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  domain.Booking
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Update booking fields
// @Param    id   path  string                true  "Booking ID (uuid)"
// @Param    req  body  UpdateBookingRequest  true  "fields to change"
// @Success  200  {object}  domain.Booking
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/bookings/{id} [patch]
func handleUpdateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		p := booking.Patch{
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			TimeSlot:     req.TimeSlot,
			Environment:  envPtr(req.Environment),
			Guests:       req.Guests,
			Observations: req.Observations,
		}
		if req.Date != nil {
			d, ok := parseDate(c, svcs, *req.Date, "date")
			if !ok {
				return
			}
			p.Date = &d
		}

		b, err := svcs.Booking.Update(c.Request.Context(), id, p)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Change booking status
// @Param    id   path  string                      true  "Booking ID (uuid)"
// @Param    req  body  UpdateBookingStatusRequest  true  "new status"
// @Success  200  {object}  domain.Booking
// @Failure  409  {object}  ErrorResponse  "slot taken meanwhile"
// @Security BearerAuth
// @Router   /admin/bookings/{id}/status [patch]
func handleUpdateBookingStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.UpdateStatus(c.Request.Context(), id, domain.BookingStatus(req.Status))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Delete booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/bookings/{id} [delete]
func handleRemoveBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if err := svcs.Booking.Remove(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// --- Blocked slots ---

// @Summary  List blocks
// @Param    from         query  string  false  "YYYY-MM-DD"
// @Param    to           query  string  false  "YYYY-MM-DD"
// @Param    environment  query  string  false  "INDOOR | OUTDOOR"
// @Success  200  {array}   domain.BlockedSlot
// @Security BearerAuth
// @Router   /admin/blocks [get]
func handleListBlocks(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f repository.BlockedSlotFilter
		if raw := c.Query("from"); raw != "" {
			d, ok := parseDate(c, svcs, raw, "from")
			if !ok {
				return
			}
			f.From = &d
		}
		if raw := c.Query("to"); raw != "" {
			d, ok := parseDate(c, svcs, raw, "to")
			if !ok {
				return
			}
			f.To = &d
		}
		if raw := c.Query("environment"); raw != "" {
			f.Environment = envPtr(&raw)
		}

		out, err := svcs.Blocks.FindAll(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		if out == nil {
			out = []domain.BlockedSlot{}
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Blocks of one day
// @Param    date  path  string  true  "YYYY-MM-DD"
// @Success  200  {array}   domain.BlockedSlot
// @Security BearerAuth
// @Router   /admin/blocks/day/{date} [get]
func handleBlocksByDate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := parseDate(c, svcs, c.Param("date"), "date")
		if !ok {
			return
		}

		out, err := svcs.Blocks.FindByDate(c.Request.Context(), date)
		if err != nil {
			respondErr(c, err)
			return
		}
		if out == nil {
			out = []domain.BlockedSlot{}
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Block one slot
// @Param    req  body  CreateBlockRequest  true  "payload; omit environment to block both"
// @Success  201  {object}  domain.BlockedSlot
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "already blocked"
// @Security BearerAuth
// @Router   /admin/blocks [post]
func handleCreateBlock(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBlockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		date, ok := parseDate(c, svcs, req.Date, "date")
		if !ok {
			return
		}

		b, err := svcs.Blocks.CreateBlock(c.Request.Context(), blocks.CreateInput{
			Date:        date,
			TimeSlot:    req.TimeSlot,
			Environment: envPtr(req.Environment),
			Reason:      req.Reason,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  Block a whole day
// @Param    req  body  DayBlockRequest  true  "payload"
// @Success  201  {object}  DayBlockResponse
// @Security BearerAuth
// @Router   /admin/blocks/day [post]
func handleBlockDay(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DayBlockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		date, ok := parseDate(c, svcs, req.Date, "date")
		if !ok {
			return
		}

		created, err := svcs.Blocks.BlockEntireDay(c.Request.Context(), date, envPtr(req.Environment), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		if created == nil {
			created = []domain.BlockedSlot{}
		}

		c.JSON(http.StatusCreated, DayBlockResponse{Created: created, Count: len(created)})
	}
}

// @Summary  Remove every block of a day
// @Param    date         path   string  true   "YYYY-MM-DD"
// @Param    environment  query  string  false  "INDOOR | OUTDOOR"
// @Success  200  {object}  CountResponse
// @Security BearerAuth
// @Router   /admin/blocks/day/{date} [delete]
func handleUnblockDay(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := parseDate(c, svcs, c.Param("date"), "date")
		if !ok {
			return
		}

		var env *domain.Environment
		if raw := c.Query("environment"); raw != "" {
			env = envPtr(&raw)
		}

		n, err := svcs.Blocks.UnblockEntireDay(c.Request.Context(), date, env)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, CountResponse{Count: n})
	}
}

// @Summary  Delete block
// @Param    id  path  string  true  "Block ID (uuid)"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/blocks/{id} [delete]
func handleRemoveBlock(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if err := svcs.Blocks.Remove(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// --- Queue ---

// @Summary  Today's queue
// @Param    status  query  []string  false  "repeatable status filter"  collectionFormat(multi)
// @Success  200  {array}   QueueStatusResponse
// @Security BearerAuth
// @Router   /admin/queue [get]
func handleListQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []domain.QueueStatus
		for _, s := range c.QueryArray("status") {
			statuses = append(statuses, domain.QueueStatus(s))
		}

		views, err := svcs.Queue.ListToday(c.Request.Context(), statuses...)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]QueueStatusResponse, 0, len(views))
		for _, v := range views {
			out = append(out, ToQueueStatus(v))
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Today's queue counters
// @Success  200  {object}  queue.Stats
// @Security BearerAuth
// @Router   /admin/queue/stats [get]
func handleQueueStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svcs.Queue.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, st)
	}
}

// @Summary  Expire every waiting or called entry of today
// @Success  200  {object}  CountResponse
// @Security BearerAuth
// @Router   /admin/queue/clear [post]
func handleClearQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Queue.ClearQueue(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, CountResponse{Count: n})
	}
}

// @Summary  Get queue entry
// @Param    id  path  string  true  "Entry ID (uuid)"
// @Success  200  {object}  QueueStatusResponse
// @Failure  404  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /admin/queue/{id} [get]
func handleGetQueueEntry(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		v, err := svcs.Queue.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ToQueueStatus(*v))
	}
}

type queueTransition func(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)

// handleQueueTransition serves call, seat, no-show and cancel.
//
// @Summary  Move a queue entry
// @Param    id  path  string  true  "Entry ID (uuid)"
// @Success  200  {object}  domain.QueueEntry
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "transition not allowed"
// @Security BearerAuth
// @Router   /admin/queue/{id}/call [post]
// @Router   /admin/queue/{id}/seat [post]
// @Router   /admin/queue/{id}/no-show [post]
// @Router   /admin/queue/{id}/cancel [post]
func handleQueueTransition(move queueTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		e, err := move(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, e)
	}
}
