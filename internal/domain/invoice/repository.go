package invoice

import (
	"context"
	"time"

	"github.com/invopeak/fakturaserie/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Status transitions are conditional writes: the store commits the new
// status together with the external reference as one unit, or not at all.
type Repository interface {
	// Create persists a new invoice together with its lines
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by reference, lines included
	Get(ctx context.Context, reference string) (*Invoice, error)

	// GetByExternalOrderRef retrieves an invoice by its external order reference
	GetByExternalOrderRef(ctx context.Context, externalRef string) (*Invoice, error)

	// ListBySeries retrieves all invoices of a series ordered by scheduled send date
	ListBySeries(ctx context.Context, seriesReference string) ([]*Invoice, error)

	// ListDue retrieves DRAFT invoices whose scheduled send date has arrived,
	// oldest first, bounded by limit. credits selects reversal invoices
	// (credit_of set) instead of regular ones.
	ListDue(ctx context.Context, now time.Time, limit int, credits bool) ([]*Invoice, error)

	// MarkDispatched commits the transition out of DRAFT together with the
	// external reference. The write is conditional on the invoice still being
	// DRAFT; a failed condition surfaces as ErrInvalidOperation so concurrent
	// runs can never double-send.
	MarkDispatched(ctx context.Context, reference string, status types.InvoiceStatus, externalRef string, sentAt time.Time) error

	// UpdateStatus records a reported state change (SENT, PAID, FAILED). The
	// write only applies while the invoice is still in the from status, so a
	// concurrent update surfaces as ErrInvalidOperation instead of regressing
	// the state machine.
	UpdateStatus(ctx context.Context, reference string, from, to types.InvoiceStatus, paidAt *time.Time, errorMessage *string) error

	// CancelDraft marks a DRAFT invoice CANCELLED; conditional like MarkDispatched
	CancelDraft(ctx context.Context, reference string) error

	// RecordCreditRef links a generated credit reference to a dispatched
	// invoice; conditional on no credit reference being recorded yet
	RecordCreditRef(ctx context.Context, reference string, creditRef string) error
}
