package seatmap

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers treated as transient contention.  Only
// these are retried; anything else surfaces to the caller unchanged.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// transientRetryDelay is the backoff applied before the single retry of
// a transiently failed seat transition.
const transientRetryDelay = 50 * time.Millisecond

// MySQL is a SeatMap backed by the show_seats table.  Every state
// transition is a single conditional UPDATE whose affected-row count is
// compared against the requested seat count, so the check and the set
// are one atomic statement at the storage layer and no row is ever left
// partially transitioned.
type MySQL struct {
	db *sql.DB
}

// NewMySQL returns a SeatMap bound to the provided database.
func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

// InitShow inserts a FREE show_seats row for every seat label of a
// newly created show.  It is called once by the catalog at show
// creation time; the seat map never adds rows afterwards.
func (m *MySQL) InitShow(ctx context.Context, showID uint64, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO show_seats (show_id, seat_label, status) VALUES `
	args := make([]interface{}, 0, len(seatIDs)*3)
	for i, id := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, 'FREE')"
		args = append(args, showID, id)
	}
	_, err := m.db.ExecContext(ctx, query, args...)
	return err
}

// TryHold implements SeatMap.  The FREE -> HELD transition is one
// conditional UPDATE inside a transaction; when fewer rows change than
// seats were requested the transaction is rolled back and the seats
// that were not FREE are reported in a *ConflictError.
func (m *MySQL) TryHold(ctx context.Context, showID uint64, seatIDs []string, reservationID string, deadline time.Time) error {
	return withTransientRetry(func() error {
		return m.tryHoldOnce(ctx, showID, seatIDs, reservationID, deadline)
	})
}

func (m *MySQL) tryHoldOnce(ctx context.Context, showID uint64, seatIDs []string, reservationID string, deadline time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	placeholders, args := seatArgs(seatIDs, reservationID, deadline.UTC().Format("2006-01-02 15:04:05"), showID)
	query := `UPDATE show_seats
	          SET status = 'HELD', reservation_id = ?, hold_deadline = ?
	          WHERE show_id = ? AND status = 'FREE' AND seat_label IN (` + placeholders + `)`
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		// Race lost: collect the seats that were not FREE for the error
		// payload, then undo via rollback.
		conflicts, cErr := m.conflictingSeats(ctx, tx, showID, seatIDs)
		if cErr != nil {
			return cErr
		}
		return &ConflictError{Seats: conflicts}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// conflictingSeats returns the requested seat labels whose row is not
// FREE, sorted by label.
func (m *MySQL) conflictingSeats(ctx context.Context, tx *sql.Tx, showID uint64, seatIDs []string) ([]string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	query := `SELECT seat_label FROM show_seats
	          WHERE show_id = ? AND status <> 'FREE' AND seat_label IN (` + placeholders + `)
	          ORDER BY seat_label`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var conflicts []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, label)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// Commit implements SeatMap.  HELD -> BOOKED for every seat owned by
// the reservation.  Zero affected rows is only an error when the
// reservation has no BOOKED seats either; seats already BOOKED by this
// reservation mean an earlier commit landed and the retry succeeds.
func (m *MySQL) Commit(ctx context.Context, showID uint64, reservationID string) error {
	return withTransientRetry(func() error {
		const q = `UPDATE show_seats
		           SET status = 'BOOKED', hold_deadline = NULL
		           WHERE show_id = ? AND reservation_id = ? AND status = 'HELD'`
		res, err := m.db.ExecContext(ctx, q, showID, reservationID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			const sel = `SELECT COUNT(*) FROM show_seats
			             WHERE show_id = ? AND reservation_id = ? AND status = 'BOOKED'`
			var booked int
			if err := m.db.QueryRowContext(ctx, sel, showID, reservationID).Scan(&booked); err != nil {
				return err
			}
			if booked == 0 {
				return ErrNoHeldSeats
			}
		}
		return nil
	})
}

// Release implements SeatMap.  The status predicate makes the update a
// no-op for seats already FREE or BOOKED, which gives the idempotency
// the contract requires.
func (m *MySQL) Release(ctx context.Context, showID uint64, reservationID string) error {
	return withTransientRetry(func() error {
		const q = `UPDATE show_seats
		           SET status = 'FREE', reservation_id = NULL, hold_deadline = NULL
		           WHERE show_id = ? AND reservation_id = ? AND status = 'HELD'`
		_, err := m.db.ExecContext(ctx, q, showID, reservationID)
		return err
	})
}

// Occupied implements SeatMap.
func (m *MySQL) Occupied(ctx context.Context, showID uint64) ([]string, error) {
	const q = `SELECT seat_label FROM show_seats
	           WHERE show_id = ? AND status <> 'FREE'
	           ORDER BY seat_label`
	rows, err := m.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out = append(out, label)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// seatArgs builds the IN placeholder list and argument slice for the
// TryHold update.
func seatArgs(seatIDs []string, reservationID, deadline string, showID uint64) (string, []interface{}) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
	args := make([]interface{}, 0, len(seatIDs)+3)
	args = append(args, reservationID, deadline, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	return placeholders, args
}

// withTransientRetry runs op and retries it exactly once after a short
// delay when the failure is a known-transient MySQL contention error.
func withTransientRetry(op func() error) error {
	err := op()
	if err == nil || !isTransient(err) {
		return err
	}
	time.Sleep(transientRetryDelay)
	return op()
}

// isTransient reports whether err is a MySQL lock-wait timeout or
// deadlock, the only failures worth a retry.
func isTransient(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlErrLockWaitTimeout || myErr.Number == mysqlErrDeadlock
}
