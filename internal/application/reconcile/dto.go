package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
)

// Config carries the tunable behaviour of the sync services.
type Config struct {
	// Policy holds the drift thresholds and listing caps.
	Policy mirror.ScanPolicy
	// ShipmentFreshness bounds how old a dispatch date may be and still be
	// pushed to the marketplace.
	ShipmentFreshness time.Duration
	// CancellationWindow bounds remote cancellations, counted from order
	// creation on the marketplace.
	CancellationWindow time.Duration
	// BatchSize is the page size for the drift scans.
	BatchSize int
	// MigrationChunkSize is the number of legacy listings migrated per
	// remote call.
	MigrationChunkSize int
	// MigrationPause is the pause between migration chunks, respecting the
	// marketplace rate limits.
	MigrationPause time.Duration
	// MaxReportErrors caps the error details kept per run report.
	MaxReportErrors int
	// Currency is the offer currency.
	Currency string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Policy:             domain.DefaultScanPolicy(),
		ShipmentFreshness:  90 * 24 * time.Hour,
		CancellationWindow: 30 * 24 * time.Hour,
		BatchSize:          50,
		MigrationChunkSize: 5,
		MigrationPause:     2 * time.Second,
		MaxReportErrors:    10,
		Currency:           "EUR",
	}
}

// ItemError is one per-item failure kept in a run report.
type ItemError struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// RunReport is the outcome of one batch entry point: per-category counts
// and the first few error details. Per-item failures never abort a run;
// they are collected here instead.
type RunReport struct {
	RunID      uuid.UUID   `json:"run_id"`
	Operation  string      `json:"operation"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Processed  int         `json:"processed"`
	Succeeded  int         `json:"succeeded"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors,omitempty"`

	maxErrors int
}

func newRunReport(operation string, startedAt time.Time, maxErrors int) *RunReport {
	return &RunReport{
		RunID:     uuid.New(),
		Operation: operation,
		StartedAt: startedAt,
		maxErrors: maxErrors,
	}
}

func (r *RunReport) success() {
	r.Processed++
	r.Succeeded++
}

func (r *RunReport) skip() {
	r.Processed++
	r.Skipped++
}

func (r *RunReport) failure(id, operation string, err error) {
	r.Processed++
	r.Failed++
	if len(r.Errors) < r.maxErrors {
		r.Errors = append(r.Errors, ItemError{ID: id, Operation: operation, Message: err.Error()})
	}
}

func (r *RunReport) finish(at time.Time) *RunReport {
	r.FinishedAt = at
	return r
}

// Affected returns the number of items a run actually changed.
func (r *RunReport) Affected() int {
	return r.Succeeded
}
