package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/movietix/seat-reservation/internal/model"
)

const dbTimeFormat = "2006-01-02 15:04:05"

// MySQL is a Catalog backed by the shows table.
type MySQL struct {
	db *sql.DB
}

// NewMySQL returns a Catalog bound to the provided database.
func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

// Create inserts a new show and populates the generated ID and
// creation timestamp on the passed struct.
func (c *MySQL) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (title, starts_at, seat_rows, seat_cols, price_cents)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := c.db.ExecContext(ctx, q,
		s.Title, s.StartsAt.UTC().Format(dbTimeFormat), s.SeatRows, s.SeatCols, s.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back the row to pick up the DB-assigned creation timestamp.
	const sel = `SELECT created_at FROM shows WHERE id = ?`
	var created time.Time
	if err := c.db.QueryRowContext(ctx, sel, s.ID).Scan(&created); err != nil {
		return err
	}
	s.CreatedAt = created.UTC()
	return nil
}

// Get implements Catalog.
func (c *MySQL) Get(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT id, title, starts_at, seat_rows, seat_cols, price_cents, created_at
	           FROM shows WHERE id = ?`
	s, err := scanShow(c.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return s, nil
}

// List implements Catalog.
func (c *MySQL) List(ctx context.Context) ([]model.Show, error) {
	const q = `SELECT id, title, starts_at, seat_rows, seat_cols, price_cents, created_at
	           FROM shows ORDER BY starts_at ASC, id ASC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Show, 0)
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShow(row rowScanner) (*model.Show, error) {
	var s model.Show
	var startsAt, createdAt time.Time
	if err := row.Scan(&s.ID, &s.Title, &startsAt, &s.SeatRows, &s.SeatCols, &s.PriceCents, &createdAt); err != nil {
		return nil, err
	}
	s.StartsAt = startsAt.UTC()
	s.CreatedAt = createdAt.UTC()
	return &s, nil
}
