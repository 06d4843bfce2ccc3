package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/identity"
	"github.com/rpattn/retailanalytics/internal/metrics"
	"github.com/rpattn/retailanalytics/internal/repository"
	"github.com/rpattn/retailanalytics/internal/schema/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SuccessMessage is reported with every completed ingestion.
const SuccessMessage = "Successful ingestion"

var (
	// ErrMalformedInput is returned when input rows cannot be staged at all.
	// Nothing is written for the request.
	ErrMalformedInput = errors.New("malformed input")

	quotedFragment = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// Repositories groups the stores the pipeline writes to and reads from.
type Repositories struct {
	Staging   repository.StagingRepository
	Promotion repository.PromotionRepository
	Errors    repository.ValidationErrorRepository
}

// Service stages, validates and promotes sales transactions.
type Service struct {
	repos     Repositories
	validator *validator.Validator
	ids       *identity.Generator
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
	onIngest  []func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records ingestion counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithValidator replaces the default sales validator.
func WithValidator(v *validator.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithIdentity sets the source of row and batch identifiers.
func WithIdentity(ids *identity.Generator) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithClock sets the clock used for ingestion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// OnIngest registers a hook run after an ingestion persisted errors or sales.
func OnIngest(fn func()) Option {
	return func(s *Service) {
		if fn != nil {
			s.onIngest = append(s.onIngest, fn)
		}
	}
}

// NewService creates a new ingestion service.
func NewService(repos Repositories, opts ...Option) *Service {
	s := &Service{
		repos:  repos,
		ids:    identity.NewGenerator(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New(validator.WithClock(s.now), validator.WithIdentity(s.ids))
	}
	return s
}

// Ingest stages rows as one batch, validates the staged batch and promotes
// the clean rows. Staging is committed before validation starts and is kept
// even when a later step fails.
func (s *Service) Ingest(ctx context.Context, rows []map[string]any) (domain.IngestResult, error) {
	started := time.Now()
	result := domain.IngestResult{RowsReceived: len(rows)}

	if len(rows) == 0 {
		s.metrics.RecordIngestFailure("parse")
		return result, fmt.Errorf("%w: no rows to ingest", ErrMalformedInput)
	}

	batchID := s.ids.NewID()
	result.BatchID = batchID
	ingestedAt := s.now().UTC()

	staged := make([]domain.StagingRow, 0, len(rows))
	for i, raw := range rows {
		row, err := s.stagingRow(normalizeKeys(raw), batchID, ingestedAt)
		if err != nil {
			s.metrics.RecordIngestFailure("parse")
			return result, fmt.Errorf("%w: input row %d: %v", ErrMalformedInput, i+1, err)
		}
		staged = append(staged, row)
	}

	if err := s.repos.Staging.InsertBatch(ctx, staged); err != nil {
		s.metrics.RecordIngestFailure("stage")
		return result, fmt.Errorf("failed to stage batch: %w", err)
	}
	s.logger.Info("batch staged",
		zap.String("batch_id", batchID.String()),
		zap.Int("rows", len(staged)),
	)

	batch, err := s.repos.Staging.ListBatch(ctx, batchID)
	if err != nil {
		s.metrics.RecordIngestFailure("validate")
		return result, fmt.Errorf("failed to read staged batch: %w", err)
	}

	values := make([]map[string]any, len(batch))
	for i, row := range batch {
		values[i] = row.Values()
	}
	validation := s.validator.Validate(values)

	clean := make([]domain.AnalyticRow, 0, len(batch))
	for _, row := range batch {
		if validation.IsInvalid(row.ID) {
			continue
		}
		analytic, deriveErr := domain.NewAnalyticRow(row)
		if deriveErr != nil {
			s.metrics.RecordIngestFailure("promote")
			return result, fmt.Errorf("failed to derive pricing for row %s: %w", row.ID, deriveErr)
		}
		clean = append(clean, analytic)
	}
	s.logger.Info("batch validated",
		zap.String("batch_id", batchID.String()),
		zap.Int("clean", len(clean)),
		zap.Int("held", len(validation.InvalidRowIDs)),
		zap.Int("errors", len(validation.Errors)),
	)

	outcome, err := s.repos.Promotion.Promote(ctx, validation.Errors, clean)
	if err != nil {
		s.metrics.RecordIngestFailure("promote")
		return result, fmt.Errorf("failed to promote batch: %w", err)
	}

	result.RowsIngested = outcome.Promoted
	result.RowsForReview = len(validation.InvalidRowIDs)
	result.SkippedDuplicates = len(outcome.SkippedHashes)
	result.Message = SuccessMessage

	if len(outcome.SkippedHashes) > 0 {
		s.logger.Info("skipped rows already promoted",
			zap.String("batch_id", batchID.String()),
			zap.Strings("hashes", outcome.SkippedHashes),
		)
	}
	s.logger.Info("batch promoted",
		zap.String("batch_id", batchID.String()),
		zap.Int("promoted", outcome.Promoted),
		zap.Int("errors_recorded", outcome.ErrorsRecorded),
	)

	if outcome.Promoted > 0 || outcome.ErrorsRecorded > 0 {
		for _, fn := range s.onIngest {
			fn()
		}
	}

	s.metrics.RecordIngest(result.RowsReceived, result.RowsIngested, result.RowsForReview, result.SkippedDuplicates, time.Since(started))
	return result, nil
}

// ValidationErrors returns every recorded validation message in creation
// order, with quoted fragments rendered in brackets.
func (s *Service) ValidationErrors(ctx context.Context) ([]string, error) {
	messages, err := s.repos.Errors.ValidationMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read validation errors: %w", err)
	}

	out := make([]string, len(messages))
	for i, message := range messages {
		out[i] = quotedFragment.ReplaceAllString(message, "[$1]")
	}
	return out, nil
}

// ListValidationErrors returns structured validation error records.
func (s *Service) ListValidationErrors(ctx context.Context, filter domain.ValidationErrorFilter) ([]domain.ValidationError, error) {
	records, err := s.repos.Errors.ListValidationErrors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation errors: %w", err)
	}
	return records, nil
}

func (s *Service) stagingRow(raw map[string]any, batchID uuid.UUID, ingestedAt time.Time) (domain.StagingRow, error) {
	row := domain.StagingRow{
		ID:         s.ids.NewID(),
		BatchID:    batchID,
		IngestedAt: ingestedAt,
	}

	tuple := make([]any, len(domain.SalesColumns))
	for i, column := range domain.SalesColumns {
		tuple[i] = raw[column]
	}
	row.Hash = identity.Hash(tuple)

	texts := map[string]*string{
		domain.ColumnStoreName:     &row.StoreName,
		domain.ColumnItemCode:      &row.ItemCode,
		domain.ColumnItemBarcode:   &row.ItemBarcode,
		domain.ColumnSupplier:      &row.Supplier,
		domain.ColumnDescription:   &row.Description,
		domain.ColumnCategory:      &row.Category,
		domain.ColumnDepartment:    &row.Department,
		domain.ColumnSubDepartment: &row.SubDepartment,
		domain.ColumnSection:       &row.Section,
	}
	for column, target := range texts {
		*target = coerceText(raw[column])
	}

	var err error
	if row.Quantity, err = coerceInteger(raw[domain.ColumnQuantity]); err != nil {
		return row, fmt.Errorf("column %q: %w", domain.ColumnQuantity, err)
	}
	if row.TotalSales, err = coerceNumber(raw[domain.ColumnTotalSales]); err != nil {
		return row, fmt.Errorf("column %q: %w", domain.ColumnTotalSales, err)
	}
	if row.RRP, err = coerceNumber(raw[domain.ColumnRRP]); err != nil {
		return row, fmt.Errorf("column %q: %w", domain.ColumnRRP, err)
	}
	if row.DateOfSale, err = coerceDate(raw[domain.ColumnDateOfSale]); err != nil {
		return row, fmt.Errorf("column %q: %w", domain.ColumnDateOfSale, err)
	}

	return row, nil
}
