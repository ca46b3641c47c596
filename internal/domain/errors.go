package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPastDate          = errors.New("date is in the past")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidSlot       = errors.New("invalid time slot")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCodeGeneration    = errors.New("could not generate a unique queue code")
)

type PastDateError struct {
	Date string
}

func (e PastDateError) Error() string {
	return fmt.Sprintf("date %s is in the past", e.Date)
}

func (e PastDateError) Unwrap() error { return ErrPastDate }

type InvalidSlotError struct {
	Date     string
	TimeSlot string
}

func (e InvalidSlotError) Error() string {
	return fmt.Sprintf("time slot %s is not bookable on %s", e.TimeSlot, e.Date)
}

func (e InvalidSlotError) Unwrap() error { return ErrInvalidSlot }

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string {
	if e.Msg == "" {
		return "conflict"
	}
	return e.Msg
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// QueueConflictError signals a re-join: the phone already holds a waiting
// entry today. It carries enough to show the caller their current place.
type QueueConflictError struct {
	Code        string
	Position    int
	PeopleAhead int
}

func (e QueueConflictError) Error() string {
	return fmt.Sprintf("already in queue with code %s at position %d", e.Code, e.Position)
}

func (e QueueConflictError) Unwrap() error { return ErrConflict }

type InvalidTransitionError struct {
	From QueueStatus
	To   QueueStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move queue entry from %s to %s", e.From, e.To)
}

func (e InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
