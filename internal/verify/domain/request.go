package domain

import "time"

// Status is the lifecycle state of a verification request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusAlreadyUsed Status = "already_used"
)

// Statuses lists every status, initial first.
var Statuses = []Status{StatusPending, StatusValid, StatusInvalid, StatusAlreadyUsed}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusValid || s == StatusInvalid || s == StatusAlreadyUsed
}

// ParseOutcome accepts only the terminal statuses an operator may pick.
func ParseOutcome(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsTerminal()
}

// Payload is the claim as submitted. Immutable after creation.
type Payload struct {
	Name   string
	Email  string
	Phone  string
	Code   string
	Amount float64
}

type VerificationRequest struct {
	ID          string
	OwnerUserID string // empty when submitted anonymously

	// SubmitterIsRegistered is true when the submitter was signed in with an
	// account whose email was verified at submit time. A signed-in caller with
	// an unverified email owns the request but is not registered. Fixed at
	// creation and never recomputed.
	SubmitterIsRegistered bool

	Payload   Payload
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time // only moves on a status transition
}

// HasOwner reports whether the request was submitted by a known user.
func (r VerificationRequest) HasOwner() bool { return r.OwnerUserID != "" }
