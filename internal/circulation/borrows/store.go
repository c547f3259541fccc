package borrows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"LIBRA-backend/internal/platform/db"
)

// Store は MySQL 上の Repository 実装。
type Store struct {
	db     *sql.DB
	policy db.RetryPolicy
}

func NewStore(conn *sql.DB, policy db.RetryPolicy) *Store {
	return &Store{db: conn, policy: policy}
}

// WithinTx はデッドロック/ロック待ちタイムアウト時に Tx 全体をやり直す。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.RunInTxWithRetry(ctx, s.db, nil, s.policy, func(ctx context.Context, q db.DBTX) error {
		return fn(ctx, &sqlTx{q: q})
	})
}

type sqlTx struct{ q db.DBTX }

func (t *sqlTx) LockBook(ctx context.Context, bookID string) (BookStock, error) {
	const q = `SELECT book_id, library_id, total_copies, available_copies FROM books WHERE book_id = ? FOR UPDATE`
	var b BookStock
	if err := t.q.QueryRowContext(ctx, q, bookID).Scan(&b.ID, &b.LibraryID, &b.Total, &b.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BookStock{}, ErrNotFound("book not found")
		}
		return BookStock{}, err
	}
	return b, nil
}

func (t *sqlTx) HasOpenBorrow(ctx context.Context, studentID, bookID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM borrows WHERE student_id = ? AND book_id = ? AND returned_at IS NULL)`
	var exists bool
	if err := t.q.QueryRowContext(ctx, q, studentID, bookID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (t *sqlTx) InsertBorrow(ctx context.Context, b Borrow) error {
	const q = `
	INSERT INTO borrows
	(borrow_id, student_id, book_id, borrowed_at, due_at)
	VALUES
	(?, ?, ?, ?, ?)`
	_, err := t.q.ExecContext(ctx, q, b.ID, b.StudentID, b.BookID, b.BorrowedAt, b.DueAt)
	switch {
	case err == nil:
		return nil
	case db.IsDuplicateKey(err):
		// uq_borrows_open: 同じ (student, book) の未返却が既にある
		return ErrConflict("book already borrowed and not yet returned")
	case db.IsForeignKeyViolation(err):
		return ErrNotFound("student profile not found")
	}
	return err
}

const borrowCols = `borrow_id, student_id, book_id, borrowed_at, due_at, returned_at`

func (t *sqlTx) FindBorrow(ctx context.Context, borrowID string) (Borrow, error) {
	return t.getBorrow(ctx, `SELECT `+borrowCols+` FROM borrows WHERE borrow_id = ?`, borrowID)
}

func (t *sqlTx) LockBorrow(ctx context.Context, borrowID string) (Borrow, error) {
	return t.getBorrow(ctx, `SELECT `+borrowCols+` FROM borrows WHERE borrow_id = ? FOR UPDATE`, borrowID)
}

func (t *sqlTx) getBorrow(ctx context.Context, q, borrowID string) (Borrow, error) {
	var (
		b        Borrow
		returned sql.NullTime
	)
	err := t.q.QueryRowContext(ctx, q, borrowID).Scan(&b.ID, &b.StudentID, &b.BookID, &b.BorrowedAt, &b.DueAt, &returned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Borrow{}, ErrNotFound("borrow record not found")
		}
		return Borrow{}, err
	}
	if returned.Valid {
		at := returned.Time
		b.ReturnedAt = &at
	}
	return b, nil
}

func (t *sqlTx) MarkReturned(ctx context.Context, borrowID string, at time.Time) error {
	const q = `UPDATE borrows SET returned_at = ? WHERE borrow_id = ? AND returned_at IS NULL`
	res, err := t.q.ExecContext(ctx, q, at, borrowID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff != 1 {
		return ErrConflict("book has already been returned")
	}
	return nil
}

func (t *sqlTx) AdjustAvailable(ctx context.Context, bookID string, delta int) error {
	const q = `
	UPDATE books
	SET available_copies = available_copies + ?
	WHERE book_id = ?
	AND available_copies + ? BETWEEN 0 AND total_copies`
	res, err := t.q.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff != 1 {
		return fmt.Errorf("available_copies out of range: book=%s delta=%d", bookID, delta)
	}
	return nil
}

const viewSelect = `
	SELECT
	b.borrow_id, b.student_id, b.book_id, b.borrowed_at, b.due_at, b.returned_at,
	COALESCE(s.name, ''), bk.title, bk.author, bk.library_id
	FROM borrows b
	JOIN books bk ON bk.book_id = b.book_id
	LEFT JOIN students s ON s.student_id = b.student_id`

type rowScanner interface{ Scan(dest ...any) error }

func scanView(r rowScanner) (BorrowView, error) {
	var (
		v        BorrowView
		returned sql.NullTime
	)
	if err := r.Scan(
		&v.ID, &v.StudentID, &v.BookID, &v.BorrowedAt, &v.DueAt, &returned,
		&v.StudentName, &v.BookTitle, &v.BookAuthor, &v.BookLibraryID,
	); err != nil {
		return BorrowView{}, err
	}
	if returned.Valid {
		at := returned.Time
		v.ReturnedAt = &at
	}
	return v, nil
}

func (t *sqlTx) GetView(ctx context.Context, borrowID string) (BorrowView, error) {
	v, err := scanView(t.q.QueryRowContext(ctx, viewSelect+` WHERE b.borrow_id = ?`, borrowID))
	if errors.Is(err, sql.ErrNoRows) {
		return BorrowView{}, ErrNotFound("borrow record not found")
	}
	return v, err
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]BorrowView, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.StudentID != "" {
		where.WriteString(` AND b.student_id = ?`)
		args = append(args, f.StudentID)
	}
	if f.LibraryID != "" {
		where.WriteString(` AND bk.library_id = ?`)
		args = append(args, f.LibraryID)
	}
	if f.OnlyOpen {
		where.WriteString(` AND b.returned_at IS NULL`)
	}

	q := viewSelect + where.String() + ` ORDER BY b.borrowed_at DESC, b.borrow_id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []BorrowView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	cq := `SELECT COUNT(*) FROM borrows b JOIN books bk ON bk.book_id = b.book_id` + where.String()
	var total int64
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
