package domain

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

type Environment string

const (
	EnvironmentIndoor  Environment = "INDOOR"
	EnvironmentOutdoor Environment = "OUTDOOR"
)

func (e Environment) Valid() bool {
	return e == EnvironmentIndoor || e == EnvironmentOutdoor
}

type BookingStatus string

const (
	// BookingPending is reserved by the schema; the create path never writes it.
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies its slot.
func (s BookingStatus) Active() bool {
	return s != BookingCancelled
}

type QueueStatus string

const (
	QueueWaiting   QueueStatus = "WAITING"
	QueueCalled    QueueStatus = "CALLED"
	QueueSeated    QueueStatus = "SEATED"
	QueueCancelled QueueStatus = "CANCELLED"
	QueueNoShow    QueueStatus = "NO_SHOW"
	QueueExpired   QueueStatus = "EXPIRED"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueWaiting, QueueCalled, QueueSeated, QueueCancelled, QueueNoShow, QueueExpired:
		return true
	}
	return false
}

func (s QueueStatus) Terminal() bool {
	return s != QueueWaiting && s != QueueCalled
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Booking struct {
	ID           uuid.UUID     `json:"id"`
	Customer     Customer      `json:"customer"`
	Date         time.Time     `json:"date"`
	TimeSlot     string        `json:"time_slot"`
	Environment  Environment   `json:"environment"`
	Guests       int           `json:"guests"`
	Observations string        `json:"observations,omitempty"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// BlockedSlot marks a slot unavailable. A nil Environment blocks both areas.
type BlockedSlot struct {
	ID          uuid.UUID    `json:"id"`
	Date        time.Time    `json:"date"`
	TimeSlot    string       `json:"time_slot"`
	Environment *Environment `json:"environment"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Covers reports whether the block makes env unavailable.
func (b BlockedSlot) Covers(env Environment) bool {
	return b.Environment == nil || *b.Environment == env
}

type QueueEntry struct {
	ID          uuid.UUID   `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	PartySize   int         `json:"party_size"`
	Status      QueueStatus `json:"status"`
	ServiceDate time.Time   `json:"service_date"`
	CalledAt    *time.Time  `json:"called_at,omitempty"`
	SeatedAt    *time.Time  `json:"seated_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Before reports whether e precedes other in queue order.
func (e QueueEntry) Before(other QueueEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID.String() < other.ID.String()
}

type SlotAvailability struct {
	Time             string `json:"time"`
	AvailableIndoor  bool   `json:"available_indoor"`
	AvailableOutdoor bool   `json:"available_outdoor"`
}

func (s SlotAvailability) Available(env Environment) bool {
	if env == EnvironmentIndoor {
		return s.AvailableIndoor
	}
	return s.AvailableOutdoor
}

// QueuePosition is a derived view of an entry; it is never stored.
type QueuePosition struct {
	Entry         QueueEntry    `json:"entry"`
	Position      int           `json:"position"`
	PeopleAhead   int           `json:"people_ahead"`
	EstimatedWait time.Duration `json:"estimated_wait"`
	Message       string        `json:"message"`
}
