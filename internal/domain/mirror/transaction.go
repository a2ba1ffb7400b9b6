package mirror

import (
	"time"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// Transaction is the persisted shadow of one marketplace order line. It is
// keyed by the remote transaction id and tied 1:1 to a shop invoice.
//
// Unlike Item.UpdatedAt, Transaction.UpdatedAt advances on every evaluation
// outcome (confirmed remote result, permanent skip, or caught error). Its
// purpose is "do not re-evaluate an unchanged invoice", not "remote state is
// definitely fresh". A nil UpdatedAt means the row has never been evaluated.
type Transaction struct {
	TransactionID string     `gorm:"primaryKey;size:64"`
	OrderID       string     `gorm:"size:64;not null;index"`
	InvoiceID     string     `gorm:"size:32;not null;uniqueIndex"`
	Paid          bool       `gorm:"not null;default:false"`
	Shipped       bool       `gorm:"not null;default:false"`
	Canceled      bool       `gorm:"not null;default:false"`
	Tracking      string     `gorm:"size:64"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (Transaction) TableName() string {
	return "mirror_transactions"
}

// NewTransaction creates the mirror row for an imported marketplace order
// line. createdAt is the order creation time on the marketplace, which
// bounds the remote cancellation window.
func NewTransaction(transactionID, orderID, invoiceID string, createdAt time.Time) (*Transaction, error) {
	if transactionID == "" || orderID == "" {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Transaction and order ID cannot be empty")
	}
	if invoiceID == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	return &Transaction{
		TransactionID: transactionID,
		OrderID:       orderID,
		InvoiceID:     invoiceID,
		CreatedAt:     createdAt,
	}, nil
}

// Touch records that a status dimension has been evaluated, regardless of
// the outcome.
func (t *Transaction) Touch(now time.Time) {
	t.UpdatedAt = &now
}

// MarkPaid records the payment fact.
func (t *Transaction) MarkPaid(now time.Time) {
	t.Paid = true
	t.Touch(now)
}

// MarkShipped records the shipment fact and the mirrored tracking number.
func (t *Transaction) MarkShipped(tracking string, now time.Time) {
	t.Shipped = true
	t.Tracking = tracking
	t.Touch(now)
}

// MarkCanceled records the cancellation fact.
func (t *Transaction) MarkCanceled(now time.Time) {
	t.Canceled = true
	t.Touch(now)
}

// WithinCancellationWindow returns true if the order is still young enough
// for a remote cancellation.
func (t *Transaction) WithinCancellationWindow(now time.Time, window time.Duration) bool {
	return now.Sub(t.CreatedAt) <= window
}
