/*
Package sqlite provides a SQLite-backed implementation of the billing store.

PURPOSE:
  Implements billing.Store and billing.ReminderLog using SQLite. The same
  schema maps onto PostgreSQL with minor dialect changes.

KEY TABLES:
  quotations:    Priced offers; accepted ones without an invoice are pending
  invoices:      One per quotation (UNIQUE quotation_id)
  installments:  Payment breakup rows, UNIQUE (invoice_id, sequence)
  payments:      Money received against an invoice (append-only)
  reminders:     One row per installment/kind/day already notified

MONEY:
  Amounts are stored as TEXT decimal strings, never REAL, so that the
  unrounded calculator output round-trips exactly.

ATOMIC BREAKUPS:
  SaveBreakup writes every installment inside one transaction. Either the
  whole schedule is stored or nothing is.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := billing.NewService(store, nil, logger)

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/billing-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ billing.Store       = (*Store)(nil)
	_ billing.ReminderLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quotations (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		client_name TEXT NOT NULL,
		client_email TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		subtotal TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		advance_amount TEXT NOT NULL,
		trip_title TEXT,
		city TEXT,
		booking_ref TEXT,
		detail_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quotations_status
		ON quotations(status);

	-- One invoice per quotation
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		quotation_id TEXT NOT NULL UNIQUE REFERENCES quotations(id),
		client_name TEXT,
		client_email TEXT,
		tcs_percent TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		tcs_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		advance_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Payment breakup rows, in submitted order
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		sequence INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(invoice_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_due_date
		ON installments(due_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount TEXT NOT NULL,
		method TEXT,
		reference TEXT,
		received_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_invoice
		ON payments(invoice_id);

	CREATE TABLE IF NOT EXISTS reminders (
		installment_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		day TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		PRIMARY KEY (installment_id, kind, day)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUOTATIONS
// =============================================================================

const quotationColumns = `id, request_id, client_name, client_email, status, subtotal, tax_amount,
	advance_amount, trip_title, city, booking_ref, detail_json, created_at`

// SaveQuotation inserts or replaces a quotation.
func (s *Store) SaveQuotation(ctx context.Context, q billing.Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO quotations (` + quotationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request_id = excluded.request_id,
			client_name = excluded.client_name,
			client_email = excluded.client_email,
			status = excluded.status,
			subtotal = excluded.subtotal,
			tax_amount = excluded.tax_amount,
			advance_amount = excluded.advance_amount,
			trip_title = excluded.trip_title,
			city = excluded.city,
			booking_ref = excluded.booking_ref,
			detail_json = excluded.detail_json
	`
	_, err := s.db.ExecContext(ctx, query,
		q.ID, q.RequestID, q.ClientName, q.ClientEmail, q.Status,
		q.Pricing.Subtotal.Value.String(),
		q.Pricing.TaxAmount.Value.String(),
		q.Pricing.AdvanceAmount.Value.String(),
		q.TripTitle, q.City, q.BookingRef, q.DetailJSON,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save quotation: %w", err)
	}
	return nil
}

// GetQuotation retrieves a quotation by ID.
func (s *Store) GetQuotation(ctx context.Context, id billing.QuotationID) (billing.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+quotationColumns+" FROM quotations WHERE id = ?", id)
	if err != nil {
		return billing.Quotation{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return billing.Quotation{}, err
		}
		return billing.Quotation{}, fmt.Errorf("%w: %s", billing.ErrQuotationNotFound, id)
	}
	return scanQuotation(rows)
}

// ListPendingInvoiceQuotations returns accepted quotations that have no invoice yet.
func (s *Store) ListPendingInvoiceQuotations(ctx context.Context) ([]billing.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + quotationColumns + ` FROM quotations q
		WHERE q.status = ?
		  AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.quotation_id = q.id)
		ORDER BY q.created_at
	`
	rows, err := s.db.QueryContext(ctx, query, billing.QuotationAccepted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuotation(rows *sql.Rows) (billing.Quotation, error) {
	var q billing.Quotation
	var requestID, clientEmail, tripTitle, city, bookingRef, detailJSON sql.NullString
	var subtotal, tax, advance, createdAt string

	err := rows.Scan(&q.ID, &requestID, &q.ClientName, &clientEmail, &q.Status,
		&subtotal, &tax, &advance, &tripTitle, &city, &bookingRef, &detailJSON, &createdAt)
	if err != nil {
		return q, err
	}

	q.RequestID = requestID.String
	q.ClientEmail = clientEmail.String
	q.TripTitle = tripTitle.String
	q.City = city.String
	q.BookingRef = bookingRef.String
	q.DetailJSON = detailJSON.String
	q.Pricing = billing.PricingSnapshot{
		Subtotal:      parseAmount(subtotal),
		TaxAmount:     parseAmount(tax),
		AdvanceAmount: parseAmount(advance),
	}
	q.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return q, nil
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, invoice_number, quotation_id, client_name, client_email, tcs_percent,
	subtotal, tax_amount, tcs_amount, total_amount, advance_amount, created_at`

// CreateInvoice inserts an invoice. A second invoice for a quotation is rejected.
func (s *Store) CreateInvoice(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO invoices (` + invoiceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.QuotationID, inv.ClientName, inv.ClientEmail,
		inv.SurchargePercent.String(),
		inv.Subtotal.Value.String(),
		inv.TaxAmount.Value.String(),
		inv.SurchargeAmount.Value.String(),
		inv.TotalAmount.Value.String(),
		inv.AdvanceAmount.Value.String(),
		inv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "quotation_id") {
			return fmt.Errorf("%w: %s", billing.ErrInvoiceExists, inv.QuotationID)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices, err := s.queryInvoices(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id)
	if err != nil {
		return billing.Invoice{}, err
	}
	if len(invoices) == 0 {
		return billing.Invoice{}, fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, id)
	}
	return invoices[0], nil
}

// ListInvoices returns all invoices, newest first.
func (s *Store) ListInvoices(ctx context.Context) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryInvoices(ctx, "SELECT "+invoiceColumns+" FROM invoices ORDER BY created_at DESC")
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		var inv billing.Invoice
		var clientName, clientEmail sql.NullString
		var percent, subtotal, tax, tcs, total, advance, createdAt string
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.QuotationID, &clientName, &clientEmail,
			&percent, &subtotal, &tax, &tcs, &total, &advance, &createdAt); err != nil {
			return nil, err
		}
		inv.ClientName = clientName.String
		inv.ClientEmail = clientEmail.String
		inv.SurchargePercent = billing.ParseDecimalOrZero(percent)
		inv.Subtotal = parseAmount(subtotal)
		inv.TaxAmount = parseAmount(tax)
		inv.SurchargeAmount = parseAmount(tcs)
		inv.TotalAmount = parseAmount(total)
		inv.AdvanceAmount = parseAmount(advance)
		inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYMENT BREAKUPS
// =============================================================================

// SaveBreakup writes every installment of an invoice in one transaction.
func (s *Store) SaveBreakup(ctx context.Context, invoiceID billing.InvoiceID, installments []billing.Installment) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices WHERE id = ?", invoiceID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, invoiceID)
		}

		var count int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM installments WHERE invoice_id = ?", invoiceID).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", billing.ErrBreakupExists, invoiceID)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for _, inst := range installments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO installments (id, invoice_id, sequence, amount, due_date, description, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				inst.ID, invoiceID, inst.Sequence, inst.Amount.Value.String(),
				inst.DueDate.String(), nullString(inst.Description), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert installment %d: %w", inst.Sequence, err)
			}
		}
		return nil
	})
}

// GetBreakup returns the installments of an invoice in submitted order.
func (s *Store) GetBreakup(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, sequence, amount, due_date, description
		FROM installments WHERE invoice_id = ? ORDER BY sequence`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Installment
	for rows.Next() {
		var inst billing.Installment
		var amount, due string
		var desc sql.NullString
		if err := rows.Scan(&inst.ID, &inst.InvoiceID, &inst.Sequence, &amount, &due, &desc); err != nil {
			return nil, err
		}
		inst.Amount = parseAmount(amount)
		inst.DueDate, err = billing.ParseDate(due)
		if err != nil {
			return nil, fmt.Errorf("installment %s: %w", inst.ID, err)
		}
		inst.Description = desc.String
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", billing.ErrBreakupNotFound, invoiceID)
	}
	return out, nil
}

// ListBreakupInvoices returns the IDs of invoices that have a breakup.
func (s *Store) ListBreakupInvoices(ctx context.Context) ([]billing.InvoiceID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT invoice_id FROM installments ORDER BY invoice_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.InvoiceID
	for rows.Next() {
		var id billing.InvoiceID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment appends a received payment.
func (s *Store) RecordPayment(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, reference, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.InvoiceID, p.Amount.Value.String(), nullString(p.Method), nullString(p.Reference),
		p.ReceivedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, p.InvoiceID)
		}
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// ListPayments returns the payments of an invoice, oldest first.
func (s *Store) ListPayments(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, method, reference, received_at
		FROM payments WHERE invoice_id = ? ORDER BY received_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Payment
	for rows.Next() {
		var p billing.Payment
		var amount, receivedAt string
		var method, reference sql.NullString
		if err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &method, &reference, &receivedAt); err != nil {
			return nil, err
		}
		p.Amount = parseAmount(amount)
		p.Method = method.String
		p.Reference = reference.String
		p.ReceivedAt, _ = time.Parse(time.RFC3339, receivedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// REMINDERS (billing.ReminderLog)
// =============================================================================

// MarkReminded records a reminder once per installment, kind and day.
func (s *Store) MarkReminded(ctx context.Context, installmentID billing.InstallmentID, kind billing.ReminderKind, day billing.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminders (installment_id, kind, day, sent_at)
		VALUES (?, ?, ?, ?)`,
		installmentID, kind, day.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// TRANSACTIONS & MAINTENANCE
// =============================================================================

// WithTx executes fn within a database transaction.
// If fn returns error, the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset deletes all data. Dev/demo only.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"reminders", "payments", "installments", "invoices", "quotations"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string) billing.Amount {
	return billing.NewAmountFromDecimal(billing.ParseDecimalOrZero(value))
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
