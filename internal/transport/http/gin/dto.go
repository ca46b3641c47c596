package httpgin

import (
	"github.com/kirinyoku/tablego/internal/domain"
)

type CreateBookingRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"omitempty,email"`
	Phone        string `json:"phone" binding:"required"`
	Date         string `json:"date" binding:"required"`
	TimeSlot     string `json:"time_slot" binding:"required"`
	Environment  string `json:"environment" binding:"required,oneof=INDOOR OUTDOOR"`
	Guests       int    `json:"guests" binding:"required,min=1,max=20"`
	Observations string `json:"observations" binding:"max=500"`
}

type UpdateBookingRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,min=1"`
	Date         *string `json:"date"`
	TimeSlot     *string `json:"time_slot"`
	Environment  *string `json:"environment" binding:"omitempty,oneof=INDOOR OUTDOOR"`
	Guests       *int    `json:"guests" binding:"omitempty,min=1,max=20"`
	Observations *string `json:"observations" binding:"omitempty,max=500"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING CONFIRMED CANCELLED"`
}

type CreateBlockRequest struct {
	Date        string  `json:"date" binding:"required"`
	TimeSlot    string  `json:"time_slot" binding:"required"`
	Environment *string `json:"environment" binding:"omitempty,oneof=INDOOR OUTDOOR"`
	Reason      string  `json:"reason" binding:"max=200"`
}

type DayBlockRequest struct {
	Date        string  `json:"date" binding:"required"`
	Environment *string `json:"environment" binding:"omitempty,oneof=INDOOR OUTDOOR"`
	Reason      string  `json:"reason" binding:"max=200"`
}

type JoinQueueRequest struct {
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	PartySize int    `json:"party_size" binding:"required,min=1,max=20"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AvailabilityResponse struct {
	Date  string                    `json:"date"`
	Slots []domain.SlotAvailability `json:"slots"`
}

type DayBlockResponse struct {
	Created []domain.BlockedSlot `json:"created"`
	Count   int                  `json:"count"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type QueueStatusResponse struct {
	ID                   string             `json:"id"`
	Code                 string             `json:"code"`
	Name                 string             `json:"name"`
	PartySize            int                `json:"party_size"`
	Status               domain.QueueStatus `json:"status"`
	Position             int                `json:"position"`
	PeopleAhead          int                `json:"people_ahead"`
	EstimatedWaitMinutes int                `json:"estimated_wait_minutes"`
	Message              string             `json:"message"`
	CreatedAt            string             `json:"created_at"`
}

// QueueConflictResponse is the 409 body of a re-join. It tells the guest
// where they already stand.
type QueueConflictResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Position    int    `json:"position"`
	PeopleAhead int    `json:"people_ahead"`
}

// ToQueueStatus is the wire shape of a queue entry, shared with the live feed.
func ToQueueStatus(v domain.QueuePosition) QueueStatusResponse {
	return QueueStatusResponse{
		ID:                   v.Entry.ID.String(),
		Code:                 v.Entry.Code,
		Name:                 v.Entry.Name,
		PartySize:            v.Entry.PartySize,
		Status:               v.Entry.Status,
		Position:             v.Position,
		PeopleAhead:          v.PeopleAhead,
		EstimatedWaitMinutes: int(v.EstimatedWait.Minutes()),
		Message:              v.Message,
		CreatedAt:            v.Entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func envPtr(s *string) *domain.Environment {
	if s == nil || *s == "" {
		return nil
	}
	e := domain.Environment(*s)
	return &e
}
