package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/metrics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStore_FindStudentsWithDue(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE fees_due = 1 AND fee_due_on = ? AND library_id = ?`)).
		WithArgs("2026-03-03", "L1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "name", "phone", "library_id", "fee_due_on"}).
			AddRow("s1", "Asha", "+91", "L1", day))
	mock.ExpectCommit()

	got, err := NewStore(conn).FindStudentsWithDue(context.Background(), day, "L1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Asha", got[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_OverdueTitlesGroupedPerStudent(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`br.returned_at IS NULL AND br.due_at < ?`)).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "name", "phone", "library_id", "title"}).
			AddRow("s1", "Asha", "+91", "L1", "Dune").
			AddRow("s1", "Asha", "+91", "L1", "Emma").
			AddRow("s2", "Ravi", "+92", "L1", "Ulysses"))
	mock.ExpectCommit()

	got, err := NewStore(conn).FindStudentsWithOverdueBooks(context.Background(), now, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Dune", "Emma"}, got[0].Titles)
	assert.Equal(t, []string{"Ulysses"}, got[1].Titles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryErrorRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`br.returned_at IS NULL`)).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err = NewStore(conn).FindStudentsWithOverdueBooks(context.Background(), time.Now(), "L1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAiSensySender(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"success", http.StatusOK, `{"status":"success"}`, false},
		{"api reports failure", http.StatusOK, `{"status":"failure"}`, true},
		{"http error", http.StatusUnauthorized, `{"message":"bad key"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Message
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer k3y", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			s := NewAiSensySender(srv.URL, "k3y", srv.Client())
			err := s.Send(context.Background(), Message{
				CampaignName: "Fee Reminder", Destination: "+91", UserName: "Asha", TemplateParams: []string{"2026-03-03"},
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "Fee Reminder", got.CampaignName)
			assert.Equal(t, []string{"2026-03-03"}, got.TemplateParams)
		})
	}
}

type fakeFinder struct {
	dueDay     time.Time
	dues       []FeeDue
	overdue    []Overdue
	overdueErr error
}

func (f *fakeFinder) FindStudentsWithDue(_ context.Context, day time.Time, _ string) ([]FeeDue, error) {
	f.dueDay = day
	return f.dues, nil
}

func (f *fakeFinder) FindStudentsWithOverdueBooks(context.Context, time.Time, string) ([]Overdue, error) {
	return f.overdue, f.overdueErr
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	if s.fail[m.Destination] {
		return errors.New("boom")
	}
	return nil
}

func TestDispatcher_Run(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	finder := &fakeFinder{
		dues: []FeeDue{
			{Recipient: Recipient{StudentID: "s1", Name: "Asha", Phone: "p1"}, DueOn: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
			{Recipient: Recipient{StudentID: "s2", Name: "Ravi", Phone: "p2"}, DueOn: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		},
		overdue: []Overdue{
			{Recipient: Recipient{StudentID: "s3", Name: "Meera", Phone: "p3"}, Titles: []string{"Dune", "Emma"}},
		},
	}
	sender := &recordingSender{fail: map[string]bool{"p2": true}}
	rec := &countingRecorder{counts: map[string]int{}}

	d := NewDispatcher(finder, sender, rec, quiet, Options{
		FeeDueInDays: 2, FeeCampaign: "Fee Reminder", OverdueCampaign: "Book Return Reminder", Location: ist,
	})
	// UTC 20:00 はインドでは翌日 01:30
	d.now = func() time.Time { return time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC) }

	res, err := d.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, Result{FeeReminders: 1, OverdueReminders: 1, Failed: 1}, res)
	assert.Equal(t, "2026-03-03", finder.dueDay.Format("2006-01-02"))
	require.Len(t, sender.sent, 3)
	assert.Equal(t, []string{"Dune, Emma"}, sender.sent[2].TemplateParams)
	assert.Equal(t, "Book Return Reminder", sender.sent[2].CampaignName)
	assert.Equal(t, map[string]int{"fee/ok": 1, "fee/error": 1, "overdue/ok": 1}, rec.counts)
}

type countingRecorder struct {
	metrics.Nop
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordReminder(kind, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind+"/"+result]++
}

func TestDispatcher_Location(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	assert.Equal(t, time.UTC, NewDispatcher(&fakeFinder{}, &recordingSender{}, nil, quiet, Options{}).Location())
	assert.Equal(t, ist, NewDispatcher(&fakeFinder{}, &recordingSender{}, nil, quiet, Options{Location: ist}).Location())
}

func TestDispatcher_QueryErrorIsReturned(t *testing.T) {
	finder := &fakeFinder{overdueErr: errors.New("db down")}
	d := NewDispatcher(finder, &recordingSender{}, nil, quiet, Options{FeeDueInDays: 2})
	_, err := d.Run(context.Background(), "")
	assert.Error(t, err)
}

func TestScheduler_NextRun(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	s := NewScheduler(nil, quiet, 10, 0, ist)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before today's slot", time.Date(2026, 3, 1, 9, 59, 0, 0, ist), time.Date(2026, 3, 1, 10, 0, 0, 0, ist)},
		{"exactly at slot", time.Date(2026, 3, 1, 10, 0, 0, 0, ist), time.Date(2026, 3, 2, 10, 0, 0, 0, ist)},
		{"after slot", time.Date(2026, 3, 1, 18, 0, 0, 0, ist), time.Date(2026, 3, 2, 10, 0, 0, 0, ist)},
		{"utc input", time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 10, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(s.nextRun(tt.now)), "got %v", s.nextRun(tt.now))
		})
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	s := NewScheduler(nil, quiet, 10, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestHandler_OwnerScopedToOwnLibrary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotLibrary string
	finder := &scopeFinder{seen: &gotLibrary}
	d := NewDispatcher(finder, &recordingSender{}, nil, quiet, Options{})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.WithPrincipal(c, auth.Principal{UserID: "o", Role: auth.RoleLibraryOwner, LibraryID: "L1"})
		c.Next()
	})
	RegisterRoutes(r, d)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reminders/send", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"feeReminders":0,"overdueReminders":0,"failed":0}`, w.Body.String())
	assert.Equal(t, "L1", gotLibrary)
}

type scopeFinder struct{ seen *string }

func (f *scopeFinder) FindStudentsWithDue(_ context.Context, _ time.Time, lib string) ([]FeeDue, error) {
	*f.seen = lib
	return nil, nil
}

func (f *scopeFinder) FindStudentsWithOverdueBooks(context.Context, time.Time, string) ([]Overdue, error) {
	return nil, nil
}
