// Package duckdb implements the repository Store on an embedded DuckDB
// database. It shares the aggregation SQL with the Postgres store.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/repository"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ids are kept as VARCHAR so they scan straight into uuid.UUID.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS staging_sales (
		id VARCHAR PRIMARY KEY,
		batch_id VARCHAR NOT NULL,
		hash VARCHAR NOT NULL,
		store_name VARCHAR NOT NULL DEFAULT '',
		item_code VARCHAR NOT NULL DEFAULT '',
		item_barcode VARCHAR NOT NULL DEFAULT '',
		supplier VARCHAR NOT NULL DEFAULT '',
		description VARCHAR NOT NULL DEFAULT '',
		category VARCHAR NOT NULL DEFAULT '',
		department VARCHAR NOT NULL DEFAULT '',
		sub_department VARCHAR NOT NULL DEFAULT '',
		section VARCHAR NOT NULL DEFAULT '',
		quantity BIGINT,
		total_sales DOUBLE,
		rrp DOUBLE,
		date_of_sale DATE,
		ingested_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id VARCHAR PRIMARY KEY,
		hash VARCHAR NOT NULL UNIQUE,
		store_name VARCHAR NOT NULL,
		item_code VARCHAR NOT NULL,
		item_barcode VARCHAR NOT NULL,
		supplier VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		category VARCHAR NOT NULL,
		department VARCHAR NOT NULL,
		sub_department VARCHAR NOT NULL,
		section VARCHAR NOT NULL,
		quantity BIGINT NOT NULL,
		total_sales DOUBLE NOT NULL,
		rrp DOUBLE NOT NULL,
		sale_price DOUBLE NOT NULL,
		margin DOUBLE NOT NULL,
		date_of_sale DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS validation_errors (
		id VARCHAR PRIMARY KEY,
		row_id VARCHAR NOT NULL,
		hash VARCHAR NOT NULL,
		field_name VARCHAR NOT NULL,
		cell_value VARCHAR NOT NULL,
		message VARCHAR NOT NULL,
		note VARCHAR NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Store is a repository.Store backed by DuckDB. Writes are serialized so
// concurrent ingestions never race on the sales uniqueness constraint.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// Open opens (or creates) the DuckDB database at path and ensures the schema.
// An empty path opens a private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	for _, stmt := range schema {
		if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create DuckDB schema: %w", execErr)
		}
	}

	location := path
	if location == "" {
		location = ":memory:"
	}
	logger.Info("duckdb store opened", zap.String("path", location))

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertBatch(ctx context.Context, rows []domain.StagingRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertStagingSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare staging insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, execErr := stmt.ExecContext(ctx, stagingArgs(row)...); execErr != nil {
				return fmt.Errorf("failed to stage row %s: %w", row.ID, execErr)
			}
		}
		return nil
	})
}

func (s *Store) ListBatch(ctx context.Context, batchID uuid.UUID) ([]domain.StagingRow, error) {
	return query(ctx, s.db, "staged rows", repository.SelectStagingBatchSQL, []any{batchID.String()}, func(rows *sql.Rows) (domain.StagingRow, error) {
		var row domain.StagingRow
		err := rows.Scan(repository.StagingScanTargets(&row)...)
		return row, err
	})
}

func (s *Store) Promote(ctx context.Context, errs []domain.ValidationError, rows []domain.AnalyticRow) (domain.PromotionOutcome, error) {
	outcome := domain.PromotionOutcome{SkippedHashes: []string{}}
	if len(errs) == 0 && len(rows) == 0 {
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range errs {
			if _, execErr := tx.ExecContext(ctx, repository.InsertValidationErrorSQL, validationErrorArgs(e)...); execErr != nil {
				return fmt.Errorf("failed to record validation error: %w", execErr)
			}
		}
		outcome.ErrorsRecorded = len(errs)

		for _, row := range rows {
			result, execErr := tx.ExecContext(ctx, repository.InsertSaleSQL, analyticArgs(row)...)
			if execErr != nil {
				return fmt.Errorf("failed to promote row %s: %w", row.ID, execErr)
			}
			affected, affErr := result.RowsAffected()
			if affErr != nil {
				return fmt.Errorf("failed to promote row %s: %w", row.ID, affErr)
			}
			if affected == 0 {
				outcome.SkippedHashes = append(outcome.SkippedHashes, row.Hash)
				continue
			}
			outcome.Promoted++
		}
		return nil
	})
	if err != nil {
		return domain.PromotionOutcome{SkippedHashes: []string{}}, err
	}

	return outcome, nil
}

func (s *Store) GetSaleByHash(ctx context.Context, hash string) (domain.AnalyticRow, error) {
	var row domain.AnalyticRow
	err := s.db.QueryRowContext(ctx, repository.SelectSaleByHashSQL, hash).Scan(repository.AnalyticScanTargets(&row)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, fmt.Errorf("sale %s: %w", hash, repository.ErrNotFound)
		}
		return row, fmt.Errorf("failed to get sale: %w", err)
	}
	return row, nil
}

func (s *Store) CountSales(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, repository.CountSalesSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return count, nil
}

func (s *Store) ListValidationErrors(ctx context.Context, filter domain.ValidationErrorFilter) ([]domain.ValidationError, error) {
	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
	args := []any{limit, offset}
	if filter.RowID != nil {
		args = append([]any{filter.RowID.String()}, args...)
	}

	return query(ctx, s.db, "validation errors", repository.ListValidationErrorsSQL(filter.RowID != nil), args, func(rows *sql.Rows) (domain.ValidationError, error) {
		var record domain.ValidationError
		err := rows.Scan(repository.ValidationErrorScanTargets(&record)...)
		return record, err
	})
}

func (s *Store) ValidationMessages(ctx context.Context) ([]string, error) {
	return query(ctx, s.db, "validation messages", repository.SelectValidationMessagesSQL, nil, func(rows *sql.Rows) (string, error) {
		var message string
		err := rows.Scan(&message)
		return message, err
	})
}

func (s *Store) StoreQuality(ctx context.Context) ([]domain.StoreQualityStats, error) {
	return query(ctx, s.db, "store quality", repository.StoreQualitySQL, nil, func(rows *sql.Rows) (domain.StoreQualityStats, error) {
		var stats domain.StoreQualityStats
		err := rows.Scan(repository.StoreQualityScanTargets(&stats)...)
		return stats, err
	})
}

func (s *Store) SupplierQuality(ctx context.Context) ([]domain.SupplierQualityStats, error) {
	return query(ctx, s.db, "supplier quality", repository.SupplierQualitySQL, nil, func(rows *sql.Rows) (domain.SupplierQualityStats, error) {
		var stats domain.SupplierQualityStats
		err := rows.Scan(repository.SupplierQualityScanTargets(&stats)...)
		return stats, err
	})
}

func (s *Store) PromotionGroups(ctx context.Context, supplier string) ([]domain.PromoGroupStats, error) {
	return query(ctx, s.db, "promotion groups", repository.PromotionGroupsSQL, []any{supplier}, func(rows *sql.Rows) (domain.PromoGroupStats, error) {
		var stats domain.PromoGroupStats
		err := rows.Scan(repository.PromoGroupScanTargets(&stats)...)
		return stats, err
	})
}

func (s *Store) SegmentPrices(ctx context.Context, supplier string) ([]domain.SegmentPrice, error) {
	return query(ctx, s.db, "segment prices", repository.SegmentPricesSQL, []any{supplier}, func(rows *sql.Rows) (domain.SegmentPrice, error) {
		var price domain.SegmentPrice
		err := rows.Scan(repository.SegmentPriceScanTargets(&price)...)
		return price, err
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("duckdb rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func query[T any](ctx context.Context, db *sql.DB, name, stmt string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", name, scanErr)
		}
		out = append(out, item)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", name, rowsErr)
	}
	return out, nil
}

var insertStagingSQL = func() string {
	placeholders := make([]string, len(repository.StagingColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO staging_sales (%s) VALUES (%s)",
		strings.Join(repository.StagingColumns, ", "),
		strings.Join(placeholders, ", "),
	)
}()

func stagingArgs(row domain.StagingRow) []any {
	return []any{
		row.ID.String(), row.BatchID.String(), row.Hash,
		row.StoreName, row.ItemCode, row.ItemBarcode, row.Supplier, row.Description,
		row.Category, row.Department, row.SubDepartment, row.Section,
		nullable(row.Quantity), nullable(row.TotalSales), nullable(row.RRP), nullable(row.DateOfSale),
		row.IngestedAt.UTC(),
	}
}

func validationErrorArgs(e domain.ValidationError) []any {
	return []any{
		e.ID.String(), e.RowID.String(), e.Hash, e.FieldName,
		e.CellValue, e.Message, e.Note, e.CreatedAt.UTC(),
	}
}

func analyticArgs(row domain.AnalyticRow) []any {
	return []any{
		row.ID.String(), row.Hash, row.StoreName, row.ItemCode, row.ItemBarcode, row.Supplier, row.Description,
		row.Category, row.Department, row.SubDepartment, row.Section,
		row.Quantity, row.TotalSales, row.RRP, row.SalePrice, row.Margin, dateOnly(row.DateOfSale),
	}
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	if t, ok := any(*v).(time.Time); ok {
		return dateOnly(t)
	}
	return *v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
