// Package reminders は会費の期日・延滞図書のリマインダー送信を扱う。
// DB は読み取りのみで、貸出・返却の処理とは順序依存を持たない。
package reminders

import (
	"context"
	"database/sql"
	"time"

	"LIBRA-backend/internal/platform/db"
)

// Recipient はリマインダーの送信先（生徒）。
type Recipient struct {
	StudentID string
	Name      string
	Phone     string
	LibraryID string
}

type FeeDue struct {
	Recipient
	DueOn time.Time
}

type Overdue struct {
	Recipient
	Titles []string
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// FindStudentsWithDue は会費未納かつ期日が day の生徒を返す。libraryID が空なら全館。
func (s *Store) FindStudentsWithDue(ctx context.Context, day time.Time, libraryID string) ([]FeeDue, error) {
	q := `
SELECT student_id, name, phone, library_id, fee_due_on
FROM students
WHERE fees_due = 1 AND fee_due_on = ?`
	args := []any{day.Format("2006-01-02")}
	if libraryID != "" {
		q += ` AND library_id = ?`
		args = append(args, libraryID)
	}
	q += ` ORDER BY student_id`

	var out []FeeDue
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var f FeeDue
			if err := rows.Scan(&f.StudentID, &f.Name, &f.Phone, &f.LibraryID, &f.DueOn); err != nil {
				return err
			}
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

// FindStudentsWithOverdueBooks は now 時点で期限切れの未返却貸出を持つ生徒と書名一覧を返す。
func (s *Store) FindStudentsWithOverdueBooks(ctx context.Context, now time.Time, libraryID string) ([]Overdue, error) {
	q := `
SELECT s.student_id, s.name, s.phone, s.library_id, bk.title
FROM borrows br
JOIN students s ON s.student_id = br.student_id
JOIN books bk ON bk.book_id = br.book_id
WHERE br.returned_at IS NULL AND br.due_at < ?`
	args := []any{now}
	if libraryID != "" {
		q += ` AND s.library_id = ?`
		args = append(args, libraryID)
	}
	q += ` ORDER BY s.student_id, br.due_at`

	var out []Overdue
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r     Recipient
				title string
			)
			if err := rows.Scan(&r.StudentID, &r.Name, &r.Phone, &r.LibraryID, &title); err != nil {
				return err
			}
			// student_id 順なので直前と同じなら書名を追加
			if n := len(out); n > 0 && out[n-1].StudentID == r.StudentID {
				out[n-1].Titles = append(out[n-1].Titles, title)
				continue
			}
			out = append(out, Overdue{Recipient: r, Titles: []string{title}})
		}
		return rows.Err()
	})
	return out, err
}
