package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
	"github.com/warp/billing-engine/notify"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Reminder
	err  error
}

func (f *fakeNotifier) SendReminder(_ context.Context, r notify.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return f.err
}

// newSeededScheduler returns a scheduler over the demo data on 2025-03-01.
func newSeededScheduler(t *testing.T, notifier notify.Notifier) *OverdueScheduler {
	t.Helper()
	mem := store.NewMemory()
	svc := billing.NewService(mem, billing.FixedClock(apiNow), zap.NewNop())

	demo := NewDemoLoader(svc, zap.NewNop())
	_, err := demo.Load(context.Background())
	require.NoError(t, err)

	s := NewOverdueScheduler(svc, mem, notifier, zap.NewNop())
	s.LeadDays = 10
	return s
}

func TestOverdueScheduler_RunNow(t *testing.T) {
	// GIVEN: two overdue installments and one due in 10 days
	notifier := &fakeNotifier{}
	s := newSeededScheduler(t, notifier)

	// WHEN: sweeping
	run, err := s.RunNow(context.Background())

	// THEN: three reminders go out, overdue first
	require.NoError(t, err)
	assert.Equal(t, ReminderRun{Day: billing.NewDate(2025, 3, 1), Sent: 3}, run)

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, billing.ReminderOverdue, notifier.sent[0].Kind)
	assert.Equal(t, 20, notifier.sent[0].DaysOverdue)
	assert.Equal(t, billing.SeverityMedium, notifier.sent[0].Severity)
	assert.Equal(t, billing.ReminderOverdue, notifier.sent[1].Kind)
	assert.Equal(t, 5, notifier.sent[1].DaysOverdue)
	assert.Equal(t, billing.ReminderDueSoon, notifier.sent[2].Kind)
	assert.Equal(t, "vikram@example.com", notifier.sent[2].Invoice.ClientEmail)
}

func TestOverdueScheduler_OncePerDay(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newSeededScheduler(t, notifier)
	_, err := s.RunNow(context.Background())
	require.NoError(t, err)

	// WHEN: sweeping again the same day
	run, err := s.RunNow(context.Background())

	// THEN: everything is skipped
	require.NoError(t, err)
	assert.Equal(t, 0, run.Sent)
	assert.Equal(t, 3, run.Skipped)
	assert.Len(t, notifier.sent, 3)
}

func TestOverdueScheduler_LeadDaysZeroSkipsDueSoon(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newSeededScheduler(t, notifier)
	s.LeadDays = 0

	run, err := s.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, run.Sent)
	for _, r := range notifier.sent {
		assert.Equal(t, billing.ReminderOverdue, r.Kind)
	}
}

func TestOverdueScheduler_FailedSendIsNotRetriedSameDay(t *testing.T) {
	// GIVEN: a notifier that cannot deliver
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	s := newSeededScheduler(t, notifier)

	// WHEN: sweeping twice
	first, err := s.RunNow(context.Background())
	require.NoError(t, err)
	second, err := s.RunNow(context.Background())
	require.NoError(t, err)

	// THEN: failures are counted once and then skipped
	assert.Equal(t, 3, first.Failed)
	assert.Equal(t, 0, first.Sent)
	assert.Equal(t, 3, second.Skipped)
	assert.Len(t, notifier.sent, 3)
}

func TestOverdueScheduler_StartStop(t *testing.T) {
	s := newSeededScheduler(t, &fakeNotifier{})

	s.Spec = "not a cron spec"
	assert.Error(t, s.Start())

	s.Spec = DefaultReminderSpec
	require.NoError(t, s.Start())
	require.NoError(t, s.Start()) // already running
	s.Stop()
	s.Stop() // already stopped
}

func TestRunReminders_Endpoint(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/demo/seed", nil).StatusCode)

	notifier := &fakeNotifier{}
	ts.handler.Reminders = NewOverdueScheduler(ts.service, ts.store, notifier, zap.NewNop())

	resp := ts.do(http.MethodPost, "/api/admin/reminders/run", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decodeBody[ReminderRunDTO](t, resp)
	assert.Equal(t, "2025-03-01", run.Day)
	// default lead of 3 days leaves out the installment due in 10
	assert.Equal(t, 2, run.Sent)
	assert.Len(t, notifier.sent, 2)
}
