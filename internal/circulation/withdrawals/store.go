package withdrawals

import (
	"context"
	"database/sql"
	"errors"

	"LIBRA-backend/internal/platform/db"
)

type Withdrawal struct {
	ID            string
	BookID        string
	Quantity      int
	Reason        sql.NullString
	ProcessedByID sql.NullString
	WithdrawnAt   sql.NullTime
}

type stock struct {
	libraryID string
	total     int
	available int
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

// LockBook: SELECT ... FOR UPDATE
func (s *Store) LockBook(ctx context.Context, tx db.DBTX, bookID string) (stock, error) {
	const q = `SELECT library_id, total_copies, available_copies FROM books WHERE book_id = ? FOR UPDATE`
	var st stock
	if err := tx.QueryRowContext(ctx, q, bookID).Scan(&st.libraryID, &st.total, &st.available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stock{}, ErrNotFound("book not found")
		}
		return stock{}, err
	}
	return st, nil
}

// RemoveCopies は貸出可能な冊数から qty 冊を蔵書ごと減らす。
func (s *Store) RemoveCopies(ctx context.Context, tx db.DBTX, bookID string, qty int) error {
	const q = `
	UPDATE books
	SET total_copies = total_copies - ?, available_copies = available_copies - ?
	WHERE book_id = ? AND available_copies >= ?`
	res, err := tx.ExecContext(ctx, q, qty, qty, bookID, qty)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return ErrConflict("not enough available copies")
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, tx db.DBTX, w Withdrawal) error {
	const q = `
	INSERT INTO withdrawals
	(withdrawal_id, book_id, quantity, reason, processed_by, withdrawn_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, w.ID, w.BookID, w.Quantity, w.Reason, w.ProcessedByID, w.WithdrawnAt)
	return err
}

func (s *Store) BookLibrary(ctx context.Context, bookID string) (string, error) {
	var lib string
	err := s.db.QueryRowContext(ctx, `SELECT library_id FROM books WHERE book_id = ?`, bookID).Scan(&lib)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound("book not found")
	}
	return lib, err
}

func (s *Store) ListByBook(ctx context.Context, bookID string, p Page) ([]Withdrawal, int64, error) {
	const q = `
	SELECT withdrawal_id, book_id, quantity, reason, processed_by, withdrawn_at
	FROM withdrawals WHERE book_id = ?
	ORDER BY withdrawn_at DESC, withdrawal_id DESC
	LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, bookID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.BookID, &w.Quantity, &w.Reason, &w.ProcessedByID, &w.WithdrawnAt); err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM withdrawals WHERE book_id = ?`, bookID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
