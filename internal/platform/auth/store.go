package auth

import (
	"context"
	"database/sql"
	"errors"

	"LIBRA-backend/internal/platform/db"
)

type Account struct {
	ID           string
	PasswordHash string
	Role         Role
	LibraryID    string
	IsDisabled   bool
}

func (a *Account) Principal() Principal {
	return Principal{UserID: a.ID, Role: a.Role, LibraryID: a.LibraryID}
}

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) (int64, error)
}

// Store は *sql.DB / *sql.Tx どちらでも動く（students の登録Txから使う）。
type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	const q = `
SELECT account_id, password_hash, role, library_id, is_disabled
FROM accounts
WHERE account_id = ?
LIMIT 1
`
	var a Account
	var libraryID sql.NullString
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.PasswordHash,
		&a.Role,
		&libraryID,
		&a.IsDisabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.LibraryID = libraryID.String
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO accounts (account_id, password_hash, role, library_id, is_disabled, created_at)
VALUES (?, ?, ?, ?, 0, NOW(6))
`
	var libraryID any
	if a.LibraryID != "" {
		libraryID = a.LibraryID
	}
	_, err := s.db.ExecContext(ctx, q, a.ID, a.PasswordHash, string(a.Role), libraryID)
	if db.IsDuplicateKey(err) {
		return ErrAlreadyExists
	}
	if db.IsForeignKeyViolation(err) {
		return ErrInvalidAccount
	}
	return err
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	const q = `DELETE FROM accounts WHERE account_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if db.IsReferenced(err) {
		return 0, ErrReferenced
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
