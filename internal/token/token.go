// Package token issues and validates admission tokens, the short-lived QR
// payloads members present at the front desk. A token only corroborates the
// member id supplied alongside it; it is never the sole proof of identity.
package token

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FreshnessWindow is how long after issuance a token is still considered
// fresh. Tokens issued in the future are tolerated (issuing-device clock skew)
// and only checked against expiry.
const FreshnessWindow = 5 * time.Minute

// DefaultTTL is the expiry horizon stamped on newly issued tokens.
const DefaultTTL = 5 * time.Minute

// Validation failures, in the order the checks run.
var (
	ErrMalformed       = errors.New("token: malformed payload")
	ErrExpired         = errors.New("token: expired")
	ErrStale           = errors.New("token: stale")
	ErrSubjectMismatch = errors.New("token: subject mismatch")
)

// Token is the QR payload. Instants are Unix milliseconds, which is what the
// issuing devices emit.
type Token struct {
	SubjectID string `json:"subject_id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Nonce     string `json:"nonce"`
	PlanLabel string `json:"plan_label,omitempty"`
}

// Issuer mints admission tokens.
type Issuer struct {
	ttl time.Duration
}

// NewIssuer creates an issuer with the given token lifetime.
func NewIssuer(ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{ttl: ttl}
}

// Issue mints a token for subjectID, valid from now for the issuer's TTL.
func (i *Issuer) Issue(subjectID, planLabel string, now time.Time) Token {
	return Token{
		SubjectID: subjectID,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(i.ttl).UnixMilli(),
		Nonce:     uuid.NewString(),
		PlanLabel: planLabel,
	}
}

// Validate runs the admission checks against a raw payload, short-circuiting
// on the first failure: shape, expiry, staleness, then subject match. A
// plan-label mismatch is advisory only and is logged, never rejected.
func Validate(raw []byte, presentedID, currentPlan string, now time.Time) error {
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return ErrMalformed
	}
	if tok.SubjectID == "" || tok.IssuedAt == 0 || tok.ExpiresAt == 0 {
		return ErrMalformed
	}

	nowMs := now.UnixMilli()
	if nowMs > tok.ExpiresAt {
		return ErrExpired
	}
	if tok.IssuedAt <= nowMs && nowMs-tok.IssuedAt > FreshnessWindow.Milliseconds() {
		return ErrStale
	}

	if NormalizeSubject(tok.SubjectID) != NormalizeSubject(presentedID) {
		return ErrSubjectMismatch
	}

	if tok.PlanLabel != "" && currentPlan != "" && tok.PlanLabel != currentPlan {
		log.Printf("token: plan label %q differs from current plan %q for subject %s",
			tok.PlanLabel, currentPlan, presentedID)
	}
	return nil
}

// NormalizeSubject strips everything but letters and digits and uppercases,
// so "12.345.678-9" and "123456789" identify the same member.
func NormalizeSubject(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
