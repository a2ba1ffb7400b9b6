package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// evaluationGuardExpr re-selects a transaction only if it was never
// evaluated or the invoice changed after the last evaluation. A failed
// remote call advances the evaluation timestamp, so persistent failures do
// not wedge the scans.
const evaluationGuardExpr = "(mirror_transactions.updated_at IS NULL OR source_invoices.updated_at > mirror_transactions.updated_at)"

// GormMirrorTransactionRepository implements mirror.TransactionRepository
// using GORM. The status scans join the shop's invoice ledger against the
// transaction mirror.
type GormMirrorTransactionRepository struct {
	db *gorm.DB
}

// NewGormMirrorTransactionRepository creates a new GormMirrorTransactionRepository
func NewGormMirrorTransactionRepository(db *gorm.DB) *GormMirrorTransactionRepository {
	return &GormMirrorTransactionRepository{db: db}
}

// FindByTransactionID finds a transaction mirror by marketplace transaction id
func (r *GormMirrorTransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*mirror.Transaction, error) {
	var tx mirror.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindByOrderID finds all transaction mirrors for a marketplace order
func (r *GormMirrorTransactionRepository) FindByOrderID(ctx context.Context, orderID string) ([]mirror.Transaction, error) {
	var txs []mirror.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("transaction_id ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByInvoiceID finds the transaction mirror tied to a shop invoice
func (r *GormMirrorTransactionRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*mirror.Transaction, error) {
	var tx mirror.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "invoice_id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// Save upserts a transaction mirror row
func (r *GormMirrorTransactionRepository) Save(ctx context.Context, tx *mirror.Transaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// ---------------------------------------------------------------------------
// Status scans
// ---------------------------------------------------------------------------

// FindUnpaid returns pairs whose invoice is paid but whose mirror is not
func (r *GormMirrorTransactionRepository) FindUnpaid(ctx context.Context, filter shared.Filter) ([]mirror.StatusPair, error) {
	query := r.joined(ctx).
		Where("source_invoices.paid_at IS NOT NULL").
		Where("NOT mirror_transactions.paid").
		Where(evaluationGuardExpr)
	return r.scanStatusPairs(ctx, query, filter)
}

// FindUnshipped returns pairs whose invoice is dispatched with tracking but
// whose mirror shipment state or tracking differs. A changed tracking
// number bypasses the evaluation guard so corrected labels go out.
func (r *GormMirrorTransactionRepository) FindUnshipped(ctx context.Context, filter shared.Filter) ([]mirror.StatusPair, error) {
	query := r.joined(ctx).
		Where("source_invoices.dispatched_at IS NOT NULL").
		Where("source_invoices.tracking <> ''").
		Where("(NOT mirror_transactions.shipped OR mirror_transactions.tracking <> source_invoices.tracking)").
		Where("(" + evaluationGuardExpr + " OR mirror_transactions.tracking <> source_invoices.tracking)")
	return r.scanStatusPairs(ctx, query, filter)
}

// FindUncanceled returns pairs whose invoice is closed but whose mirror is
// not canceled
func (r *GormMirrorTransactionRepository) FindUncanceled(ctx context.Context, filter shared.Filter) ([]mirror.StatusPair, error) {
	query := r.joined(ctx).
		Where("source_invoices.closed").
		Where("NOT mirror_transactions.canceled").
		Where(evaluationGuardExpr)
	return r.scanStatusPairs(ctx, query, filter)
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (r *GormMirrorTransactionRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&mirror.Transaction{}).
		Joins("INNER JOIN source_invoices ON source_invoices.id = mirror_transactions.invoice_id")
}

// scanStatusPairs runs the prepared join query, loads the invoice side in
// one batched read and assembles the pairs.
func (r *GormMirrorTransactionRepository) scanStatusPairs(ctx context.Context, query *gorm.DB, filter shared.Filter) ([]mirror.StatusPair, error) {
	var txs []mirror.Transaction
	err := query.
		Select("mirror_transactions.*").
		Order("mirror_transactions.created_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []mirror.StatusPair{}, nil
	}

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.InvoiceID
	}

	var invoices []catalog.SourceInvoice
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&invoices).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.SourceInvoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}

	pairs := make([]mirror.StatusPair, 0, len(txs))
	for _, tx := range txs {
		invoice, ok := byID[tx.InvoiceID]
		if !ok {
			continue
		}
		pairs = append(pairs, mirror.StatusPair{Invoice: invoice, Transaction: tx})
	}
	return pairs, nil
}

// Ensure GormMirrorTransactionRepository implements TransactionRepository
var _ mirror.TransactionRepository = (*GormMirrorTransactionRepository)(nil)
