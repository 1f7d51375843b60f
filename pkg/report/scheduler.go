package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"p9e.in/genfuel/pkg/archive"
	"p9e.in/genfuel/utils"
)

// Frequency is how often the scheduler archives a report.
type Frequency string

const (
	Daily   Frequency = "daily"   // previous day, run every day
	Weekly  Frequency = "weekly"  // previous Monday to Sunday, run on Mondays
	Monthly Frequency = "monthly" // previous calendar month, run on the 1st
)

// ScheduleConfig describes a recurring archive run.
type ScheduleConfig struct {
	Frequency Frequency
	Time      string // HH:MM in the builder's location
	Format    Format
}

// Scheduler renders the report for the period that just closed and stores
// it in the archive.
type Scheduler struct {
	builder *Builder
	archive archive.Store
	cfg     ScheduleConfig
	at      time.Time // parsed cfg.Time
}

func NewScheduler(b *Builder, a archive.Store, cfg ScheduleConfig) (*Scheduler, error) {
	switch cfg.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return nil, fmt.Errorf("unknown schedule frequency %q", cfg.Frequency)
	}
	if a == nil {
		return nil, fmt.Errorf("scheduled reports need an archive")
	}
	if cfg.Time == "" {
		cfg.Time = "01:00"
	}
	at, err := time.Parse("15:04", cfg.Time)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", cfg.Time, err)
	}
	if cfg.Format == "" {
		cfg.Format = FormatCSV
	}
	return &Scheduler{builder: b, archive: a, cfg: cfg, at: at}, nil
}

// NextRun returns the first execution time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.In(s.builder.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.at.Hour(), s.at.Minute(), 0, 0, s.builder.loc)
	switch s.cfg.Frequency {
	case Daily:
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
	case Weekly:
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
	case Monthly:
		next = time.Date(now.Year(), now.Month(), 1, s.at.Hour(), s.at.Minute(), 0, 0, s.builder.loc)
		if !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
	}
	return next
}

// PeriodBefore is the closed period a run at t covers, bounds inclusive.
func (s *Scheduler) PeriodBefore(t time.Time) *utils.DateRange {
	t = t.In(s.builder.loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.builder.loc)
	var start time.Time
	switch s.cfg.Frequency {
	case Weekly:
		start = end.AddDate(0, 0, -7)
	case Monthly:
		end = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.builder.loc)
		start = end.AddDate(0, -1, 0)
	default:
		start = end.AddDate(0, 0, -1)
	}
	return &utils.DateRange{Start: start, End: end.Add(-time.Nanosecond)}
}

// RunOnce archives the period that closed before t.
func (s *Scheduler) RunOnce(ctx context.Context, t time.Time) (archive.Object, error) {
	rng := s.PeriodBefore(t)
	rep, err := s.builder.Build(ctx, rng)
	if err != nil {
		return archive.Object{}, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, rep, s.cfg.Format); err != nil {
		return archive.Object{}, fmt.Errorf("render scheduled report: %w", err)
	}
	obj, err := s.archive.Put(ctx, Filename(rep, s.cfg.Format, t), s.cfg.Format.ContentType(), buf.Bytes())
	if err != nil {
		return archive.Object{}, fmt.Errorf("archive scheduled report: %w", err)
	}
	return obj, nil
}

// Run sleeps until each NextRun and archives, until ctx is cancelled.
// A failed run is logged and retried at the next slot.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.NextRun(s.builder.now())
		slog.Info("next scheduled report", "frequency", s.cfg.Frequency, "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		obj, err := s.RunOnce(ctx, next)
		if err != nil {
			slog.Error("scheduled report failed", "frequency", s.cfg.Frequency, "error", err)
			continue
		}
		slog.Info("scheduled report archived", "name", obj.Name, "size", obj.Size)
	}
}
