package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tablego/internal/domain"
)

// writeJSONWithCache writes v with a weak ETag of its body. A matching
// If-None-Match gets 304 without a body.
func writeJSONWithCache(c *gin.Context, status int, v any, cacheControl string) {
	b, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	sum := sha256.Sum256(b)
	tag := `W/"` + hex.EncodeToString(sum[:16]) + `"`

	c.Header("ETag", tag)
	if cacheControl != "" {
		c.Header("Cache-Control", cacheControl)
	}

	if c.GetHeader("If-None-Match") == tag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(status, "application/json; charset=utf-8", b)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// respondErr maps domain errors to statuses. Messages come from the typed
// domain error, never from the wrapped operation chain.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var qc domain.QueueConflictError
	if errors.As(err, &qc) {
		c.JSON(http.StatusConflict, QueueConflictResponse{
			Error:       "already in queue",
			Code:        qc.Code,
			Position:    qc.Position,
			PeopleAhead: qc.PeopleAhead,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrPastDate),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidSlot),
		errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrCodeGeneration):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "queue is busy, try again"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func publicMessage(err error) string {
	var (
		past     domain.PastDateError
		slot     domain.InvalidSlotError
		invalid  domain.ValidationError
		notFound domain.NotFoundError
		conflict domain.ConflictError
		trans    domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &past):
		return past.Error()
	case errors.As(err, &slot):
		return slot.Error()
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.As(err, &trans):
		return trans.Error()
	case errors.Is(err, domain.ErrInvalidDate):
		return domain.ErrInvalidDate.Error()
	}

	return "request failed"
}
