package withdrawals

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/db"
)

var (
	t0    = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	owner = auth.Principal{UserID: "o1", Role: auth.RoleLibraryOwner, LibraryID: "L1"}
)

type stubClock struct{}

func (stubClock) Now() time.Time { return t0 }

type stubID struct{}

func (stubID) NewULID(time.Time) string { return "WD1" }

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	svc := NewService(conn, db.RetryPolicy{MaxAttempts: 1})
	svc.clock = stubClock{}
	svc.id = stubID{}
	return svc, mock
}

func stockRow(lib string, total, avail int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"library_id", "total_copies", "available_copies"}).AddRow(lib, total, avail)
}

func TestCreate_RemovesIdleCopies(t *testing.T) {
	svc, mock := newMockService(t)
	reason := "water damage"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM books WHERE book_id = ? FOR UPDATE`)).
		WithArgs("B1").
		WillReturnRows(stockRow("L1", 5, 3))
	mock.ExpectExec(regexp.QuoteMeta(`SET total_copies = total_copies - ?, available_copies = available_copies - ?`)).
		WithArgs(2, 2, "B1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO withdrawals`)).
		WithArgs("WD1", "B1", 2, reason, "o1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Create(context.Background(), owner, "B1", CreateWithdrawalRequest{Quantity: 2, Reason: &reason})

	require.NoError(t, err)
	assert.Equal(t, "WD1", res.ID)
	assert.Equal(t, 2, res.Quantity)
	require.NotNil(t, res.ProcessedByID)
	assert.Equal(t, "o1", *res.ProcessedByID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		p      auth.Principal
		qty    int
		lib    string
		avail  int
		want   Code
		locked bool
	}{
		{"zero quantity", owner, 0, "L1", 3, CodeInvalidArgument, false},
		{"more than available", owner, 4, "L1", 3, CodeConflict, true},
		{"other library", owner, 1, "L2", 3, CodeForbidden, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newMockService(t)
			if tt.locked {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WillReturnRows(stockRow(tt.lib, 5, tt.avail))
				mock.ExpectRollback()
			}

			_, err := svc.Create(context.Background(), tt.p, "B1", CreateWithdrawalRequest{Quantity: tt.qty})

			var api *APIError
			require.ErrorAs(t, err, &api)
			assert.Equal(t, tt.want, api.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestList_ByBook(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT library_id FROM books WHERE book_id = ?`)).
		WithArgs("B1").
		WillReturnRows(sqlmock.NewRows([]string{"library_id"}).AddRow("L1"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM withdrawals WHERE book_id = ?`)).
		WithArgs("B1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"withdrawal_id", "book_id", "quantity", "reason", "processed_by", "withdrawn_at"}).
			AddRow("WD1", "B1", 1, nil, "o1", t0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM withdrawals WHERE book_id = ?`)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	res, err := svc.List(context.Background(), owner, "B1", Page{})

	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].Reason)
	assert.Equal(t, t0, res.Items[0].WithdrawnAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
