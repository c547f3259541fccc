package students

import (
	"context"
	"database/sql"
	"strings"

	"LIBRA-backend/internal/platform/db"
)

type Store struct{}

func (Store) Insert(ctx context.Context, q db.DBTX, s *Student) error {
	const stmt = `
INSERT INTO students (student_id, name, phone, library_id, fees_due, fee_due_on, created_at)
VALUES (?, ?, ?, ?, 0, NULL, ?)`
	_, err := q.ExecContext(ctx, stmt, s.ID, s.Name, s.Phone, s.LibraryID, s.CreatedAt)
	return err
}

const selectStudent = `
SELECT student_id, name, phone, library_id, fees_due, fee_due_on, created_at
FROM students`

type rowScanner interface{ Scan(dest ...any) error }

func scanStudent(r rowScanner) (*Student, error) {
	var (
		s   Student
		due sql.NullTime
	)
	if err := r.Scan(&s.ID, &s.Name, &s.Phone, &s.LibraryID, &s.FeesDue, &due, &s.CreatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		s.FeeDueOn = &due.Time
	}
	return &s, nil
}

func (Store) Get(ctx context.Context, q db.DBTX, id string) (*Student, error) {
	return scanStudent(q.QueryRowContext(ctx, selectStudent+` WHERE student_id = ?`, id))
}

func (Store) List(ctx context.Context, q db.DBTX, libraryID string, p Page) ([]Student, int64, error) {
	var (
		where []string
		args  []any
	)
	if libraryID != "" {
		where = append(where, "library_id = ?")
		args = append(args, libraryID)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.QueryContext(ctx, selectStudent+cond+` ORDER BY name, student_id LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Student, 0, p.Limit)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (Store) UpdateFees(ctx context.Context, q db.DBTX, id string, due bool, on *string) error {
	const stmt = `UPDATE students SET fees_due = ?, fee_due_on = ? WHERE student_id = ?`
	var onArg any
	if on != nil {
		onArg = *on
	}
	_, err := q.ExecContext(ctx, stmt, due, onArg, id)
	return err
}
