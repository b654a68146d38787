// Package checkin decides whether a member may be admitted today and records
// admitted check-ins. Rejections are data, not errors: callers branch on the
// returned Decision, and only internal faults surface as Go errors.
package checkin

// ReasonCode classifies why a check-in was denied. The set is closed; every
// deny path maps to exactly one code.
type ReasonCode string

const (
	ReasonIncompletePlan   ReasonCode = "INCOMPLETE_PLAN"
	ReasonNotStarted       ReasonCode = "NOT_STARTED"
	ReasonExpiredPlan      ReasonCode = "EXPIRED_PLAN"
	ReasonMalformedToken   ReasonCode = "MALFORMED_TOKEN"
	ReasonExpiredToken     ReasonCode = "EXPIRED_TOKEN"
	ReasonStaleToken       ReasonCode = "STALE_TOKEN"
	ReasonSubjectMismatch  ReasonCode = "SUBJECT_MISMATCH"
	ReasonAlreadyCheckedIn ReasonCode = "ALREADY_CHECKED_IN_TODAY"
	ReasonCycleEnded       ReasonCode = "CYCLE_ENDED"
	ReasonQuotaExceeded    ReasonCode = "QUOTA_EXCEEDED"
	ReasonPersistenceError ReasonCode = "PERSISTENCE_ERROR"
)

// QuotaDetails carries the numbers behind a quota decision, for user-facing
// messaging ("6 of 2 effective classes used").
type QuotaDetails struct {
	Effective int `json:"effective"`
	Nominal   int `json:"nominal"`
	Remaining int `json:"remaining"`
	Used      int `json:"used"`
}

// Decision is the outcome of one check-in attempt.
type Decision struct {
	Admitted bool          `json:"admitted"`
	Reason   ReasonCode    `json:"reason,omitempty"`
	Quota    *QuotaDetails `json:"quota,omitempty"`
}

func admit(q *QuotaDetails) Decision {
	return Decision{Admitted: true, Quota: q}
}

func deny(reason ReasonCode) Decision {
	return Decision{Reason: reason}
}
