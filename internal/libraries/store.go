package libraries

import (
	"context"
	"database/sql"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const selectLibrary = `
	SELECT l.library_id, l.name, l.address,
	(SELECT COUNT(*) FROM books b WHERE b.library_id = l.library_id),
	(SELECT COUNT(*) FROM students s WHERE s.library_id = l.library_id),
	l.created_at
	FROM libraries l`

type rowScanner interface{ Scan(dest ...any) error }

func scanLibrary(r rowScanner) (*Library, error) {
	var (
		l    Library
		addr sql.NullString
	)
	if err := r.Scan(&l.ID, &l.Name, &addr, &l.BookCount, &l.StudentCount, &l.CreatedAt); err != nil {
		return nil, err
	}
	if addr.Valid {
		l.Address = &addr.String
	}
	return &l, nil
}

// GET /libraries（libraryID が空なら全件）
func (s *Store) List(ctx context.Context, libraryID string) ([]Library, error) {
	q := selectLibrary
	var args []any
	if libraryID != "" {
		q += ` WHERE l.library_id = ?`
		args = append(args, libraryID)
	}
	q += ` ORDER BY l.name, l.library_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]Library, 0, 8)
	for rows.Next() {
		l, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Library, error) {
	return scanLibrary(s.db.QueryRowContext(ctx, selectLibrary+` WHERE l.library_id = ?`, id))
}

func (s *Store) Create(ctx context.Context, id, name string, address *string) error {
	const q = `INSERT INTO libraries (library_id, name, address) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, id, name, address)
	return err
}

func (s *Store) Update(ctx context.Context, id, name string, address *string) (int64, error) {
	const q = `UPDATE libraries SET name = ?, address = ? WHERE library_id = ?`
	res, err := s.db.ExecContext(ctx, q, name, address, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
