package membership

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a member has no membership on file.
var ErrNotFound = errors.New("membership: not found")

// Membership is the current plan period of a member. Renewal inserts a fresh
// row; attendance days stay attached to the row they were recorded under, so
// a renewal starts with an empty log.
type Membership struct {
	ID        string
	MemberID  string
	PlanLabel string
	Start     time.Time
	End       time.Time
	Quota     int
	Unlimited bool
	CreatedAt time.Time

	// AttendanceDays are the admitted days of this membership, in insertion
	// order, one entry per calendar date.
	AttendanceDays []time.Time
}

// HasDates reports whether the plan period is usable. Memberships created by
// older imports can be missing one or both boundaries.
func (m *Membership) HasDates() bool {
	return !m.Start.IsZero() && !m.End.IsZero()
}

// LedgerEntry is one immutable admitted check-in. Rows are only ever appended.
type LedgerEntry struct {
	ID         string
	MemberID   string
	OccurredAt time.Time
	Day        time.Time
	CreatedAt  time.Time
}
