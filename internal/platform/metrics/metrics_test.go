package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBorrow("ok")
	c.RecordBorrow("ok")
	c.RecordBorrow("unavailable")
	c.RecordReturn("conflict")
	c.RecordTxRetry()
	c.RecordReminder("fee", "sent")

	if got := testutil.ToFloat64(c.borrows.WithLabelValues("ok")); got != 2 {
		t.Errorf("borrow ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.borrows.WithLabelValues("unavailable")); got != 1 {
		t.Errorf("borrow unavailable = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.returns.WithLabelValues("conflict")); got != 1 {
		t.Errorf("return conflict = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.txRetries); got != 1 {
		t.Errorf("tx retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.reminders.WithLabelValues("fee", "sent")); got != 1 {
		t.Errorf("reminders = %v, want 1", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordBorrow("ok")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `libra_borrow_total{result="ok"} 1`) {
		t.Errorf("metrics output missing borrow counter:\n%s", body)
	}
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordBorrow("ok")
	r.RecordReminder("overdue", "failed")
}
