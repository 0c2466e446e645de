/*
scheduler.go - Automated installment reminder sweep

PURPOSE:
  Periodically finds installments that are overdue or due soon and sends
  the client a reminder through a notify.Notifier.

DESIGN:
  - Runs on a cron schedule (robfig/cron, standard 5-field spec)
  - Overdue: every not fully paid installment due before today
  - Due soon: unpaid installments due within LeadDays (0 disables)
  - A reminder is recorded in the ReminderLog BEFORE it is sent, so each
    installment gets at most one reminder of each kind per day even when a
    manual run overlaps the scheduled one. A send that fails is not retried
    that day.

CONFIGURATION:
  - Spec: cron expression (default: "0 9 * * *", 09:00 daily)
  - LeadDays: due-soon window in days (default: 3)

USAGE:
  scheduler := NewOverdueScheduler(svc, store, notifier, logger)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunReminders endpoint (manual sweep)
  - notify/email.go: Notifier implementations
*/
package api

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/notify"
	"go.uber.org/zap"
)

const (
	DefaultReminderSpec     = "0 9 * * *"
	DefaultReminderLeadDays = 3
)

// ReminderRun summarizes one sweep.
type ReminderRun struct {
	Day     billing.Date
	Sent    int
	Skipped int // already reminded today
	Failed  int
}

// OverdueScheduler sends installment reminders on a schedule.
type OverdueScheduler struct {
	Service   *billing.Service
	Reminders billing.ReminderLog
	Notifier  notify.Notifier
	Spec      string
	LeadDays  int
	Logger    *zap.Logger

	mu    sync.Mutex // guards cron
	cron  *cron.Cron
	runMu sync.Mutex // one sweep at a time
}

// NewOverdueScheduler creates a scheduler with the default spec and lead days.
func NewOverdueScheduler(svc *billing.Service, reminders billing.ReminderLog, notifier notify.Notifier, logger *zap.Logger) *OverdueScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueScheduler{
		Service:   svc,
		Reminders: reminders,
		Notifier:  notifier,
		Spec:      DefaultReminderSpec,
		LeadDays:  DefaultReminderLeadDays,
		Logger:    logger,
	}
}

// Start schedules the sweep. Calling Start on a running scheduler is a no-op.
func (s *OverdueScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	l := cronLogger{s.Logger.Sugar()}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(s.Spec, s.runScheduled); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.Spec, err)
	}
	c.Start()
	s.cron = c

	s.Logger.Info("reminder scheduler started",
		zap.String("spec", s.Spec),
		zap.Int("lead_days", s.LeadDays))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Logger.Info("reminder scheduler stopped")
}

func (s *OverdueScheduler) runScheduled() {
	if _, err := s.RunNow(context.Background()); err != nil {
		s.Logger.Error("scheduled reminder sweep failed", zap.Error(err))
	}
}

// RunNow sweeps once. Individual send failures are counted, not returned.
func (s *OverdueScheduler) RunNow(ctx context.Context) (ReminderRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := ReminderRun{Day: s.Service.Clock.Today()}

	groups, err := s.Service.Overdue(ctx)
	if err != nil {
		return run, fmt.Errorf("failed to find overdue installments: %w", err)
	}
	for _, g := range groups {
		for _, item := range g.Installments {
			s.remind(ctx, &run, notify.Reminder{
				Kind:        billing.ReminderOverdue,
				Invoice:     g.Invoice,
				Allocation:  item.Allocation,
				DaysOverdue: item.DaysOverdue,
				Severity:    item.Severity,
			})
		}
	}

	if s.LeadDays > 0 {
		dueSoon, err := s.Service.DueSoon(ctx, s.LeadDays)
		if err != nil {
			return run, fmt.Errorf("failed to find upcoming installments: %w", err)
		}

		ids := make([]billing.InvoiceID, 0, len(dueSoon))
		for id := range dueSoon {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			inv, err := s.Service.Store.GetInvoice(ctx, id)
			if err != nil {
				return run, fmt.Errorf("failed to load invoice %s: %w", id, err)
			}
			for _, a := range dueSoon[id] {
				s.remind(ctx, &run, notify.Reminder{Kind: billing.ReminderDueSoon, Invoice: inv, Allocation: a})
			}
		}
	}

	s.Logger.Info("reminder sweep finished",
		zap.String("day", run.Day.String()),
		zap.Int("sent", run.Sent),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed))
	return run, nil
}

func (s *OverdueScheduler) remind(ctx context.Context, run *ReminderRun, r notify.Reminder) {
	inst := r.Allocation.Installment

	first, err := s.Reminders.MarkReminded(ctx, inst.ID, r.Kind, run.Day)
	if err != nil {
		run.Failed++
		s.Logger.Error("failed to record reminder",
			zap.String("installment_id", string(inst.ID)),
			zap.Error(err))
		return
	}
	if !first {
		run.Skipped++
		return
	}

	if err := s.Notifier.SendReminder(ctx, r); err != nil {
		run.Failed++
		s.Logger.Warn("reminder not delivered",
			zap.String("invoice_id", string(r.Invoice.ID)),
			zap.String("installment_id", string(inst.ID)),
			zap.String("kind", string(r.Kind)),
			zap.Error(err))
		return
	}
	run.Sent++
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
