package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gympass/internal/cycle"
	"gympass/internal/membership"
	"gympass/internal/queue"
	"gympass/internal/token"
)

// MembershipStore loads the record the decision runs against.
type MembershipStore interface {
	GetByMemberID(ctx context.Context, memberID string) (membership.Membership, error)
}

// Recorder persists an admitted check-in: attendance day plus ledger entry,
// both or neither.
type Recorder interface {
	Record(ctx context.Context, m membership.Membership, now time.Time) (membership.LedgerEntry, error)
}

// Event is published after an admitted check-in for the reconciliation worker.
type Event struct {
	MemberID     string `json:"member_id"`
	MembershipID string `json:"membership_id"`
	LedgerID     string `json:"ledger_id"`
	Day          string `json:"day"`
}

// EventType tags check-in messages on the queue.
const EventType = "checkin.admitted"

// DayFormat is the wire form of calendar dates in queue events.
const DayFormat = "2006-01-02"

// Service runs the eligibility decision and records admissions.
type Service struct {
	members  MembershipStore
	recorder Recorder
	queue    queue.Queue
	metrics  *Metrics
}

// NewService wires the decider. queue and metrics may be nil.
func NewService(members MembershipStore, recorder Recorder, q queue.Queue, m *Metrics) *Service {
	return &Service{members: members, recorder: recorder, queue: q, metrics: m}
}

// Decide runs the admission checks for one check-in attempt and, on admit,
// records it. rawToken may be nil when the member checks in without a QR code.
// The returned error is reserved for faults loading the membership; every
// business outcome, including persistence failure of the record itself, is a
// Decision.
func (s *Service) Decide(ctx context.Context, memberID string, rawToken []byte, now time.Time) (Decision, error) {
	started := time.Now()
	d, err := s.decide(ctx, memberID, rawToken, now)
	if err == nil {
		s.metrics.RecordDecision(d, time.Since(started))
	}
	return d, err
}

func (s *Service) decide(ctx context.Context, memberID string, rawToken []byte, now time.Time) (Decision, error) {
	m, err := s.members.GetByMemberID(ctx, memberID)
	if err != nil {
		return Decision{}, err
	}

	if !m.HasDates() {
		return deny(ReasonIncompletePlan), nil
	}
	today := cycle.Day(now)
	if today.Before(cycle.Day(m.Start)) {
		return deny(ReasonNotStarted), nil
	}
	if today.After(cycle.Day(m.End)) {
		return deny(ReasonExpiredPlan), nil
	}

	if rawToken != nil {
		if reason, ok := validateToken(rawToken, memberID, m.PlanLabel, now); !ok {
			return deny(reason), nil
		}
	}

	for _, d := range m.AttendanceDays {
		if cycle.SameDay(d, now) {
			return deny(ReasonAlreadyCheckedIn), nil
		}
	}

	c := cycle.Current(m.Start, now)
	remaining := cycle.RemainingBusinessDays(c.End, now)
	used := len(cycle.FilterByPeriod(m.AttendanceDays, c.Start, c.End))

	var details *QuotaDetails
	if m.Unlimited {
		if remaining <= 0 {
			return deny(ReasonCycleEnded), nil
		}
	} else {
		effective := cycle.EffectiveQuota(m.Quota, remaining)
		details = &QuotaDetails{
			Effective: effective,
			Nominal:   m.Quota,
			Remaining: remaining,
			Used:      used,
		}
		if used >= effective {
			return Decision{Reason: ReasonQuotaExceeded, Quota: details}, nil
		}
	}

	entry, err := s.recorder.Record(ctx, m, now)
	if err != nil {
		if errors.Is(err, ErrDuplicateDay) {
			// Lost the race against a concurrent check-in for the same member.
			return deny(ReasonAlreadyCheckedIn), nil
		}
		log.Printf("checkin: record failed for %s: %v", memberID, err)
		return deny(ReasonPersistenceError), nil
	}

	s.publish(ctx, m, entry)
	return admit(details), nil
}

// validateToken maps credential failures onto the decision reason codes.
func validateToken(raw []byte, memberID, planLabel string, now time.Time) (ReasonCode, bool) {
	switch err := token.Validate(raw, memberID, planLabel, now); {
	case err == nil:
		return "", true
	case errors.Is(err, token.ErrExpired):
		return ReasonExpiredToken, false
	case errors.Is(err, token.ErrStale):
		return ReasonStaleToken, false
	case errors.Is(err, token.ErrSubjectMismatch):
		return ReasonSubjectMismatch, false
	default:
		return ReasonMalformedToken, false
	}
}

// publish hands the admitted event to the reconciliation worker. Best effort:
// the check-in stands even if the queue is down.
func (s *Service) publish(ctx context.Context, m membership.Membership, entry membership.LedgerEntry) {
	if s.queue == nil {
		return
	}
	body, err := json.Marshal(Event{
		MemberID:     m.MemberID,
		MembershipID: m.ID,
		LedgerID:     entry.ID,
		Day:          entry.Day.Format(DayFormat),
	})
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, queue.Message{Type: EventType, Body: body}); err != nil {
		log.Printf("checkin: queue publish failed: %v", err)
	}
}

// Summary is the reporting view of a membership: where the current cycle
// stands and how many classes are still available.
type Summary struct {
	MemberID    string    `json:"member_id"`
	PlanLabel   string    `json:"plan_label"`
	Cycle       CycleView `json:"cycle"`
	Unlimited   bool      `json:"unlimited"`
	Quota       int       `json:"quota"`
	Effective   int       `json:"effective"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining_business_days"`
	ClassesLeft int       `json:"classes_left"`
}

// CycleView is the JSON shape of a billing cycle.
type CycleView struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Ordinal int    `json:"ordinal"`
}

// Summarize computes the reporting figures for a member as of now.
func (s *Service) Summarize(ctx context.Context, memberID string, now time.Time) (Summary, error) {
	m, err := s.members.GetByMemberID(ctx, memberID)
	if err != nil {
		return Summary{}, err
	}
	if !m.HasDates() {
		return Summary{}, errors.New("checkin: membership has no plan dates")
	}

	c := cycle.Current(m.Start, now)
	remaining := cycle.RemainingBusinessDays(c.End, now)
	used := len(cycle.FilterByPeriod(m.AttendanceDays, c.Start, c.End))

	sum := Summary{
		MemberID:  m.MemberID,
		PlanLabel: m.PlanLabel,
		Cycle: CycleView{
			Start:   c.Start.Format(DayFormat),
			End:     c.End.Format(DayFormat),
			Ordinal: c.Ordinal,
		},
		Unlimited: m.Unlimited,
		Quota:     m.Quota,
		Used:      used,
		Remaining: remaining,
	}
	if m.Unlimited {
		sum.ClassesLeft = remaining
	} else {
		sum.Effective = cycle.EffectiveQuota(m.Quota, remaining)
		if left := sum.Effective - used; left > 0 {
			sum.ClassesLeft = left
		}
	}
	return sum, nil
}
