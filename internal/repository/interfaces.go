package repository

import (
	"context"
	"errors"

	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// StagingRepository defines the interface for staging row operations.
// Staging is append-only: rows are never updated or deleted.
type StagingRepository interface {
	// InsertBatch writes all rows atomically; on error nothing is staged.
	InsertBatch(ctx context.Context, rows []domain.StagingRow) error
	ListBatch(ctx context.Context, batchID uuid.UUID) ([]domain.StagingRow, error)
}

// PromotionRepository persists the outcome of validating a staged batch.
type PromotionRepository interface {
	// Promote records validation errors and inserts clean rows into the
	// analytic store in one transaction. Rows whose hash already exists are
	// skipped by the store's uniqueness constraint and reported back.
	Promote(ctx context.Context, errs []domain.ValidationError, rows []domain.AnalyticRow) (domain.PromotionOutcome, error)
}

// SalesRepository reads the analytic store.
type SalesRepository interface {
	GetSaleByHash(ctx context.Context, hash string) (domain.AnalyticRow, error)
	CountSales(ctx context.Context) (int64, error)
}

// ValidationErrorRepository reads persisted validation errors.
type ValidationErrorRepository interface {
	ListValidationErrors(ctx context.Context, filter domain.ValidationErrorFilter) ([]domain.ValidationError, error)
	ValidationMessages(ctx context.Context) ([]string, error)
}

// ReportRepository runs the fixed aggregation queries behind the reports.
type ReportRepository interface {
	StoreQuality(ctx context.Context) ([]domain.StoreQualityStats, error)
	SupplierQuality(ctx context.Context) ([]domain.SupplierQualityStats, error)
	PromotionGroups(ctx context.Context, supplier string) ([]domain.PromoGroupStats, error)
	SegmentPrices(ctx context.Context, supplier string) ([]domain.SegmentPrice, error)
}

// Store bundles every repository behind one handle with a single owner.
type Store interface {
	StagingRepository
	PromotionRepository
	SalesRepository
	ValidationErrorRepository
	ReportRepository
	Close() error
}
