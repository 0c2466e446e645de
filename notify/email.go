/*
Package notify delivers installment reminders to clients.

PURPOSE:
  The reminder sweep (api.OverdueScheduler) decides WHICH installments need
  a reminder; a Notifier decides HOW the client hears about it.

IMPLEMENTATIONS:
  - EmailNotifier: plain-text email over SMTP
  - LogNotifier:   writes the reminder to the log (email disabled, dev)

SEE ALSO:
  - api/scheduler.go: Builds reminders from billing.Service
  - config/config.go: EmailConfig
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/config"
	"go.uber.org/zap"
)

// ErrNoRecipient is returned when the invoice has no client email address.
var ErrNoRecipient = errors.New("invoice has no client email")

// Reminder is one installment a client should be told about.
type Reminder struct {
	Kind        billing.ReminderKind
	Invoice     billing.Invoice
	Allocation  billing.InstallmentAllocation
	DaysOverdue int              // overdue only
	Severity    billing.Severity // overdue only
}

// Notifier sends reminders.
type Notifier interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// =============================================================================
// EMAIL NOTIFIER
// =============================================================================

// EmailNotifier sends reminders as plain-text email.
type EmailNotifier struct {
	cfg         config.EmailConfig
	companyName string
	logger      *zap.Logger

	// send delivers a built message. Replaced in tests.
	send func(e *email.Email) error
}

// NewEmailNotifier creates an SMTP-backed notifier.
func NewEmailNotifier(cfg config.EmailConfig, companyName string, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &EmailNotifier{cfg: cfg, companyName: companyName, logger: logger}
	n.send = n.sendSMTP
	return n
}

// SendReminder builds and sends the reminder email for r.
func (n *EmailNotifier) SendReminder(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := n.buildMessage(r)
	if err != nil {
		return err
	}

	if err := n.send(e); err != nil {
		n.logger.Error("failed to send reminder",
			zap.String("invoice_number", r.Invoice.InvoiceNumber),
			zap.String("installment_id", string(r.Allocation.Installment.ID)),
			zap.Error(err))
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	n.logger.Info("reminder sent",
		zap.String("to", r.Invoice.ClientEmail),
		zap.String("kind", string(r.Kind)),
		zap.String("invoice_number", r.Invoice.InvoiceNumber))
	return nil
}

func (n *EmailNotifier) buildMessage(r Reminder) (*email.Email, error) {
	to := strings.TrimSpace(r.Invoice.ClientEmail)
	if to == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipient, r.Invoice.ID)
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{to}
	if n.cfg.BCC != "" {
		e.Bcc = []string{n.cfg.BCC}
	}
	e.Subject = subject(r)
	e.Text = []byte(body(r, n.companyName))
	return e, nil
}

func (n *EmailNotifier) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

func subject(r Reminder) string {
	if r.Kind == billing.ReminderOverdue {
		return fmt.Sprintf("Overdue payment for invoice %s", r.Invoice.InvoiceNumber)
	}
	return fmt.Sprintf("Upcoming payment for invoice %s", r.Invoice.InvoiceNumber)
}

func body(r Reminder, companyName string) string {
	inst := r.Allocation.Installment
	name := r.Invoice.ClientName
	if name == "" {
		name = "Customer"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	if r.Kind == billing.ReminderOverdue {
		fmt.Fprintf(&b, "Installment %d of invoice %s, INR %s, was due on %s and is now %d day(s) overdue.\n",
			inst.Sequence, r.Invoice.InvoiceNumber, r.Allocation.Outstanding.Rounded(), inst.DueDate, r.DaysOverdue)
		b.WriteString("Please make the payment as soon as possible.\n")
	} else {
		fmt.Fprintf(&b, "This is a reminder that installment %d of invoice %s, INR %s, is due on %s.\n",
			inst.Sequence, r.Invoice.InvoiceNumber, r.Allocation.Outstanding.Rounded(), inst.DueDate)
	}
	if inst.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", inst.Description)
	}
	if r.Allocation.Paid.IsPositive() {
		fmt.Fprintf(&b, "Already received for this installment: INR %s\n", r.Allocation.Paid.Rounded())
	}
	fmt.Fprintf(&b, "\nBest regards,\n%s", companyName)
	return b.String()
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier logs reminders instead of sending them.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) SendReminder(_ context.Context, r Reminder) error {
	n.Logger.Info("reminder",
		zap.String("kind", string(r.Kind)),
		zap.String("invoice_number", r.Invoice.InvoiceNumber),
		zap.String("client_email", r.Invoice.ClientEmail),
		zap.Int("sequence", r.Allocation.Installment.Sequence),
		zap.String("due_date", r.Allocation.Installment.DueDate.String()),
		zap.String("outstanding", r.Allocation.Outstanding.String()),
		zap.Int("days_overdue", r.DaysOverdue))
	return nil
}
