package domain

import "time"

type HoldType string

const (
	HoldSoft HoldType = "soft"
	HoldFirm HoldType = "firm"
)

func (h HoldType) Valid() bool {
	return h == HoldSoft || h == HoldFirm
}

type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusReleased  ReservationStatus = "released"
	StatusExpired   ReservationStatus = "expired"
	StatusRejected  ReservationStatus = "rejected"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Reservation is a claim on slots of one episode's inventory. Soft holds
// carry a deadline; firm holds require approval before they can be
// confirmed and do not expire.
type Reservation struct {
	ID           string
	EpisodeID    string
	Counts       SlotCounts
	HoldType     HoldType
	Status       ReservationStatus
	Approval     ApprovalStatus
	ExpiresAt    *time.Time
	OrderID      string
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiredBy reports whether the reservation is an active hold whose
// deadline has elapsed. Such a hold is treated as expired on the very next
// read, before any background sweep runs.
func (r Reservation) ExpiredBy(now time.Time) bool {
	return r.Status == StatusReserved && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Terminal reports whether the reservation can no longer transition.
// Confirmed is deliberately not terminal: a confirmed booking can still be
// released (cancellation).
func (r Reservation) Terminal() bool {
	switch r.Status {
	case StatusReleased, StatusExpired, StatusRejected:
		return true
	}
	return false
}
