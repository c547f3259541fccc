package reminders

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler は毎日決まった現地時刻に Dispatcher を全館分実行する。
type Scheduler struct {
	dispatcher   *Dispatcher
	logger       *slog.Logger
	hour, minute int
	loc          *time.Location
}

func NewScheduler(d *Dispatcher, logger *slog.Logger, hour, minute int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{dispatcher: d, logger: logger, hour: hour, minute: minute, loc: loc}
}

// Start は ctx がキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("reminder scheduler started",
		slog.Int("hour", s.hour),
		slog.Int("minute", s.minute),
		slog.String("timezone", s.loc.String()),
	)
	for {
		next := s.nextRun(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("reminder scheduler stopped")
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	if _, err := s.dispatcher.Run(ctx, ""); err != nil {
		s.logger.Error("reminder run failed", slog.String("error", err.Error()))
	}
}

// nextRun は now より後で最初の hour:minute（s.loc 基準）。
func (s *Scheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(y, m, d+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}
