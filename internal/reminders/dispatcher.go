package reminders

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"LIBRA-backend/internal/platform/metrics"
)

const (
	kindFee     = "fee"
	kindOverdue = "overdue"
)

type Finder interface {
	FindStudentsWithDue(ctx context.Context, day time.Time, libraryID string) ([]FeeDue, error)
	FindStudentsWithOverdueBooks(ctx context.Context, now time.Time, libraryID string) ([]Overdue, error)
}

type Options struct {
	FeeDueInDays    int
	FeeCampaign     string
	OverdueCampaign string
	Location        *time.Location
}

// Result は1回の送信処理の集計。
type Result struct {
	FeeReminders     int `json:"feeReminders"`
	OverdueReminders int `json:"overdueReminders"`
	Failed           int `json:"failed"`
}

type Dispatcher struct {
	finder  Finder
	sender  Sender
	metrics metrics.Recorder
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

func NewDispatcher(finder Finder, sender Sender, rec metrics.Recorder, logger *slog.Logger, opts Options) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Dispatcher{finder: finder, sender: sender, metrics: rec, logger: logger, opts: opts, now: time.Now}
}

// Location は日付計算に使うタイムゾーン。
func (d *Dispatcher) Location() *time.Location { return d.opts.Location }

// Run は会費・延滞の両方を送る。個々の送信失敗は数えるだけで処理は止めない。
// 検索自体の失敗だけをエラーとして返す。
func (d *Dispatcher) Run(ctx context.Context, libraryID string) (Result, error) {
	var res Result
	now := d.now().In(d.opts.Location)

	y, m, day := now.Date()
	target := time.Date(y, m, day+d.opts.FeeDueInDays, 0, 0, 0, 0, d.opts.Location)
	dues, err := d.finder.FindStudentsWithDue(ctx, target, libraryID)
	if err != nil {
		return res, err
	}
	for _, s := range dues {
		msg := Message{
			CampaignName:   d.opts.FeeCampaign,
			Destination:    s.Phone,
			UserName:       s.Name,
			TemplateParams: []string{s.DueOn.Format("2006-01-02")},
		}
		if d.send(ctx, kindFee, s.StudentID, msg) {
			res.FeeReminders++
		} else {
			res.Failed++
		}
	}

	overdue, err := d.finder.FindStudentsWithOverdueBooks(ctx, now, libraryID)
	if err != nil {
		return res, err
	}
	for _, s := range overdue {
		msg := Message{
			CampaignName:   d.opts.OverdueCampaign,
			Destination:    s.Phone,
			UserName:       s.Name,
			TemplateParams: []string{strings.Join(s.Titles, ", ")},
		}
		if d.send(ctx, kindOverdue, s.StudentID, msg) {
			res.OverdueReminders++
		} else {
			res.Failed++
		}
	}

	d.logger.InfoContext(ctx, "reminder run finished",
		slog.String("library_id", libraryID),
		slog.Int("fee", res.FeeReminders),
		slog.Int("overdue", res.OverdueReminders),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, kind, studentID string, m Message) bool {
	if err := d.sender.Send(ctx, m); err != nil {
		d.metrics.RecordReminder(kind, "error")
		d.logger.WarnContext(ctx, "reminder send failed",
			slog.String("kind", kind),
			slog.String("student_id", studentID),
			slog.String("error", err.Error()),
		)
		return false
	}
	d.metrics.RecordReminder(kind, "ok")
	return true
}
