package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/movietix/seat-reservation/internal/model"
)

const dbTimeFormat = "2006-01-02 15:04:05"

// MySQL is a Ledger backed by the reservations and reservation_seats
// tables.  The (status, deadline) index on reservations keeps the
// expiry sweep a single range scan.
type MySQL struct {
	db *sql.DB
}

// NewMySQL returns a Ledger bound to the provided database.
func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

// Put implements Ledger.  The reservation row is upserted; seat rows
// are written only once since the seat set of a reservation never
// changes after the hold.
func (l *MySQL) Put(ctx context.Context, r *model.Reservation) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO reservations (id, show_id, user_id, status, amount_cents, created_at, deadline)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE status = VALUES(status)`
	_, err = tx.ExecContext(ctx, q,
		r.ID, r.ShowID, r.UserID, string(r.Status), r.AmountCents,
		r.CreatedAt.UTC().Format(dbTimeFormat), r.Deadline.UTC().Format(dbTimeFormat),
	)
	if err != nil {
		return err
	}
	if len(r.SeatIDs) > 0 {
		query := `INSERT IGNORE INTO reservation_seats (reservation_id, position, seat_label) VALUES `
		args := make([]interface{}, 0, len(r.SeatIDs)*3)
		for i, seat := range r.SeatIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, r.ID, i, seat)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get implements Ledger.
func (l *MySQL) Get(ctx context.Context, id string) (*model.Reservation, error) {
	const q = `SELECT id, show_id, user_id, status, amount_cents, created_at, deadline
	           FROM reservations WHERE id = ?`
	r, err := l.scanOne(l.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	seats, err := l.seatsFor(ctx, []string{r.ID})
	if err != nil {
		return nil, err
	}
	r.SeatIDs = seats[r.ID]
	return r, nil
}

// ListPendingBefore implements Ledger.
func (l *MySQL) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*model.Reservation, error) {
	const q = `SELECT id, show_id, user_id, status, amount_cents, created_at, deadline
	           FROM reservations
	           WHERE status = 'PENDING' AND deadline <= ?
	           ORDER BY deadline ASC, id ASC`
	return l.list(ctx, q, deadline.UTC().Format(dbTimeFormat))
}

// ListByUser implements Ledger.
func (l *MySQL) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	const q = `SELECT id, show_id, user_id, status, amount_cents, created_at, deadline
	           FROM reservations
	           WHERE user_id = ?
	           ORDER BY created_at DESC, id ASC`
	return l.list(ctx, q, userID)
}

func (l *MySQL) list(ctx context.Context, query string, arg interface{}) ([]*model.Reservation, error) {
	rows, err := l.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*model.Reservation, 0)
	ids := make([]string, 0)
	for rows.Next() {
		r, err := l.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}
	seats, err := l.seatsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range result {
		r.SeatIDs = seats[r.ID]
	}
	return result, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (l *MySQL) scanOne(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var status string
	var createdAt, deadline time.Time
	if err := row.Scan(&r.ID, &r.ShowID, &r.UserID, &status, &r.AmountCents, &createdAt, &deadline); err != nil {
		return nil, err
	}
	r.Status = model.ReservationStatus(status)
	r.CreatedAt = createdAt.UTC()
	r.Deadline = deadline.UTC()
	return &r, nil
}

// seatsFor loads the ordered seat labels of the given reservations in
// one query and returns them keyed by reservation ID.
func (l *MySQL) seatsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT reservation_id, seat_label FROM reservation_seats
	          WHERE reservation_id IN (` + placeholders + `)
	          ORDER BY reservation_id, position`
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string, len(ids))
	for rows.Next() {
		var resID, seat string
		if err := rows.Scan(&resID, &seat); err != nil {
			return nil, err
		}
		out[resID] = append(out[resID], seat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
