package checkin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"gympass/internal/cycle"
	"gympass/internal/membership"
)

// ErrDuplicateDay is returned when the member already has an admission
// recorded for the day. The unique constraint on (membership_id, day) turns
// the concurrent double check-in race into this detectable conflict.
var ErrDuplicateDay = errors.New("checkin: day already recorded")

// Repository performs the attendance dual write and its reconciliation reads.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record appends today to the membership's attendance log and inserts the
// matching ledger entry in a single transaction. Either both rows land or
// neither does; a duplicate day surfaces as ErrDuplicateDay.
func (r *Repository) Record(ctx context.Context, m membership.Membership, now time.Time) (membership.LedgerEntry, error) {
	day := cycle.Day(now)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return membership.LedgerEntry{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_days (membership_id, day)
		VALUES ($1, $2)
	`, m.ID, day); err != nil {
		if isUniqueViolation(err) {
			return membership.LedgerEntry{}, ErrDuplicateDay
		}
		return membership.LedgerEntry{}, err
	}

	entry := membership.LedgerEntry{
		ID:         uuid.NewString(),
		MemberID:   m.MemberID,
		OccurredAt: now.UTC(),
		Day:        day,
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (id, member_id, occurred_at, day)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, entry.ID, entry.MemberID, entry.OccurredAt, entry.Day)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return membership.LedgerEntry{}, ErrDuplicateDay
		}
		return membership.LedgerEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return membership.LedgerEntry{}, err
	}
	return entry, nil
}

// Reconcile verifies the dual-write invariant for one (member, day) pair and
// repairs a missing ledger row. The repair is idempotent: re-running it for a
// consistent pair changes nothing.
func (r *Repository) Reconcile(ctx context.Context, memberID, membershipID string, day time.Time) (repaired bool, err error) {
	day = cycle.Day(day)

	var logged, ledgered int
	if err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM attendance_days WHERE membership_id = $1 AND day = $2
	`, membershipID, day).Scan(&logged); err != nil {
		return false, err
	}
	if err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM ledger_entries WHERE member_id = $1 AND day = $2
	`, memberID, day).Scan(&ledgered); err != nil {
		return false, err
	}
	if logged == ledgered {
		return false, nil
	}
	if logged < ledgered {
		// The ledger is append-only; an orphaned ledger row is reported, never
		// deleted here.
		return false, errors.New("checkin: ledger entry without attendance day")
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, member_id, occurred_at, day)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, day) DO NOTHING
	`, uuid.NewString(), memberID, day, day)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
