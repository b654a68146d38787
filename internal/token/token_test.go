package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.January, 29, 10, 0, 0, 0, time.UTC)

func payload(t *testing.T, tok Token) []byte {
	t.Helper()
	raw, err := json.Marshal(tok)
	require.NoError(t, err)
	return raw
}

func TestIssueRoundTrip(t *testing.T) {
	iss := NewIssuer(0) // falls back to DefaultTTL
	tok := iss.Issue("123456789", "8-classes", now)

	assert.Equal(t, now.UnixMilli(), tok.IssuedAt)
	assert.Equal(t, now.Add(DefaultTTL).UnixMilli(), tok.ExpiresAt)
	assert.NotEmpty(t, tok.Nonce)

	require.NoError(t, Validate(payload(t, tok), "123456789", "8-classes", now))
}

func TestValidateOrderAndReasons(t *testing.T) {
	fresh := Token{
		SubjectID: "123456789",
		IssuedAt:  now.Add(-time.Minute).UnixMilli(),
		ExpiresAt: now.Add(time.Minute).UnixMilli(),
		Nonce:     "n",
	}

	cases := []struct {
		name    string
		raw     []byte
		subject string
		wantErr error
	}{
		{"not json", []byte("not-json{"), "123456789", ErrMalformed},
		{"missing subject", payload(t, Token{IssuedAt: 1, ExpiresAt: 2}), "123456789", ErrMalformed},
		{"missing instants", []byte(`{"subject_id":"123456789"}`), "123456789", ErrMalformed},
		{
			name: "expired",
			raw: payload(t, Token{
				SubjectID: "123456789",
				IssuedAt:  now.Add(-2 * time.Minute).UnixMilli(),
				ExpiresAt: now.Add(-time.Second).UnixMilli(),
			}),
			subject: "123456789",
			wantErr: ErrExpired,
		},
		{
			// Expiry is checked before staleness.
			name: "expired and stale reports expired",
			raw: payload(t, Token{
				SubjectID: "123456789",
				IssuedAt:  now.Add(-10 * time.Minute).UnixMilli(),
				ExpiresAt: now.Add(-time.Second).UnixMilli(),
			}),
			subject: "123456789",
			wantErr: ErrExpired,
		},
		{
			name: "stale but unexpired",
			raw: payload(t, Token{
				SubjectID: "123456789",
				IssuedAt:  now.Add(-6 * time.Minute).UnixMilli(),
				ExpiresAt: now.Add(time.Minute).UnixMilli(),
			}),
			subject: "123456789",
			wantErr: ErrStale,
		},
		{"subject mismatch", payload(t, fresh), "987654321", ErrSubjectMismatch},
		{"accepted", payload(t, fresh), "123456789", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.raw, tc.subject, "", now)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

// A token stamped ahead of the server clock is not stale; the issuing device's
// clock may run fast. Expiry still applies.
func TestValidateToleratesFutureIssuedAt(t *testing.T) {
	tok := Token{
		SubjectID: "123456789",
		IssuedAt:  now.Add(2 * time.Minute).UnixMilli(),
		ExpiresAt: now.Add(7 * time.Minute).UnixMilli(),
	}
	assert.NoError(t, Validate(payload(t, tok), "123456789", "", now))
}

func TestValidatePlanLabelIsAdvisory(t *testing.T) {
	tok := Token{
		SubjectID: "123456789",
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(time.Minute).UnixMilli(),
		PlanLabel: "old-plan",
	}
	assert.NoError(t, Validate(payload(t, tok), "123456789", "new-plan", now))
}

func TestNormalizeSubject(t *testing.T) {
	cases := []struct{ in, want string }{
		{"12.345.678-9", "123456789"},
		{"123456789", "123456789"},
		{"ab-12_cd", "AB12CD"},
		{" 9.876.543-k ", "9876543K"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeSubject(tc.in), tc.in)
	}
}

func TestSubjectMatchAfterNormalization(t *testing.T) {
	tok := Token{
		SubjectID: "12.345.678-9",
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(time.Minute).UnixMilli(),
	}
	assert.NoError(t, Validate(payload(t, tok), "123456789", "", now))
}
