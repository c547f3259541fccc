package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"LIBRA-backend/internal/platform/db"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const bookCols = `book_id, title, author, library_id, total_copies, available_copies, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanBook(r rowScanner) (BookResponse, error) {
	var b BookResponse
	err := r.Scan(&b.ID, &b.Title, &b.Author, &b.LibraryID, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) Insert(ctx context.Context, id string, in CreateBookRequest) error {
	const q = `
	INSERT INTO books
	(book_id, title, author, search_key, library_id, total_copies, available_copies)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	// 新規登録時は全冊が貸出可能
	_, err := s.db.ExecContext(ctx, q, id, in.Title, in.Author, SearchKey(in.Title, in.Author), in.LibraryID, in.TotalCopies, in.TotalCopies)
	return err
}

func (s *Store) Get(ctx context.Context, q db.DBTX, id string) (BookResponse, error) {
	b, err := scanBook(q.QueryRowContext(ctx, `SELECT `+bookCols+` FROM books WHERE book_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return BookResponse{}, ErrNotFound("book not found")
	}
	return b, err
}

// Lock は在庫行を排他ロックして読む（Tx 内で使う）
func (s *Store) Lock(ctx context.Context, tx db.DBTX, id string) (BookResponse, error) {
	b, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookCols+` FROM books WHERE book_id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return BookResponse{}, ErrNotFound("book not found")
	}
	return b, err
}

// Update はロック済みの行を書き換える。在庫は呼び出し側で計算済みの値を入れる。
func (s *Store) Update(ctx context.Context, tx db.DBTX, b BookResponse) error {
	const q = `
	UPDATE books
	SET title = ?, author = ?, search_key = ?, total_copies = ?, available_copies = ?
	WHERE book_id = ?`
	// 行はロック済みで存在する。値が同じだと MySQL は affected rows を 0 で返すので見ない
	_, err := tx.ExecContext(ctx, q, b.Title, b.Author, SearchKey(b.Title, b.Author), b.TotalCopies, b.AvailableCopies, b.ID)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, id)
	if err != nil {
		if db.IsReferenced(err) {
			return ErrConflict("book has borrow or withdrawal history")
		}
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound("book not found")
	}
	return nil
}

func (s *Store) List(ctx context.Context, sq SearchQuery, p Page) ([]BookResponse, int64, error) {
	var where strings.Builder
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if sq.LibraryID != "" {
		where.WriteString(` AND library_id = ?`)
		args = append(args, sq.LibraryID)
	}
	if strings.TrimSpace(sq.Q) != "" {
		where.WriteString(` AND search_key LIKE ?`)
		args = append(args, likePattern(sq.Q))
	}

	q := fmt.Sprintf(`SELECT %s FROM books%s ORDER BY title ASC, book_id ASC LIMIT ? OFFSET ?`, bookCols, where.String())
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []BookResponse{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
