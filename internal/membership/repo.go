package membership

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists members and memberships in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Issue creates a membership for a member, registering the member on first
// contact. Used both for first sign-up and for renewals: the new row replaces
// the old one as "current" and starts with an empty attendance log.
func (r *Repository) Issue(ctx context.Context, memberID, name, planLabel string, start, end time.Time, quota int, unlimited bool) (Membership, error) {
	if memberID == "" {
		return Membership{}, errors.New("member id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, member_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), members.name)
	`, uuid.NewString(), memberID, name)
	if err != nil {
		return Membership{}, err
	}

	m := Membership{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		PlanLabel: planLabel,
		Start:     start,
		End:       end,
		Quota:     quota,
		Unlimited: unlimited,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO memberships (id, member_id, plan_label, starts_on, ends_on, quota, unlimited)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, m.ID, m.MemberID, m.PlanLabel, m.Start, m.End, m.Quota, m.Unlimited)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return Membership{}, err
	}
	return m, nil
}

// GetByMemberID returns the member's current membership with its attendance
// days loaded, or ErrNotFound.
func (r *Repository) GetByMemberID(ctx context.Context, memberID string) (Membership, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, member_id, plan_label, starts_on, ends_on, quota, unlimited, created_at
		FROM memberships
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, memberID)

	var m Membership
	var start, end sql.NullTime
	if err := row.Scan(&m.ID, &m.MemberID, &m.PlanLabel, &start, &end, &m.Quota, &m.Unlimited, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	if start.Valid {
		m.Start = start.Time
	}
	if end.Valid {
		m.End = end.Time
	}

	days, err := r.attendanceDays(ctx, m.ID)
	if err != nil {
		return Membership{}, err
	}
	m.AttendanceDays = days
	return m, nil
}

func (r *Repository) attendanceDays(ctx context.Context, membershipID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day FROM attendance_days
		WHERE membership_id = $1
		ORDER BY created_at
	`, membershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d.UTC())
	}
	return days, rows.Err()
}

// LedgerBetween returns a member's ledger entries with days in [from, to],
// oldest first. Used by reporting and by the reconciliation worker.
func (r *Repository) LedgerBetween(ctx context.Context, memberID string, from, to time.Time) ([]LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, member_id, occurred_at, day, created_at
		FROM ledger_entries
		WHERE member_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY occurred_at
	`, memberID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.MemberID, &e.OccurredAt, &e.Day, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Day = e.Day.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
