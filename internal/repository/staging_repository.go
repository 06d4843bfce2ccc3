package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stagingRepository struct {
	conn *db.Connection
}

// NewStagingRepository wires a staging repository backed by pgxpool.
func NewStagingRepository(conn *db.Connection) StagingRepository {
	return &stagingRepository{conn: conn}
}

func (r *stagingRepository) InsertBatch(ctx context.Context, rows []domain.StagingRow) error {
	if r.conn == nil || r.conn.Pool == nil {
		return fmt.Errorf("staging repository not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"staging_sales"},
			StagingColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				return StagingValues(rows[i]), nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to stage rows: %w", err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("failed to stage rows: copied %d of %d", copied, len(rows))
		}
		return nil
	})
}

func (r *stagingRepository) ListBatch(ctx context.Context, batchID uuid.UUID) ([]domain.StagingRow, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return nil, fmt.Errorf("staging repository not initialized")
	}

	rows, err := r.conn.Pool.Query(ctx, SelectStagingBatchSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged rows: %w", err)
	}
	defer rows.Close()

	staged := []domain.StagingRow{}
	for rows.Next() {
		var row domain.StagingRow
		if scanErr := rows.Scan(StagingScanTargets(&row)...); scanErr != nil {
			return nil, fmt.Errorf("failed to scan staged row: %w", scanErr)
		}
		staged = append(staged, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate staged rows: %w", rowsErr)
	}

	return staged, nil
}

// StagingValues orders a row's values to match StagingColumns.
func StagingValues(row domain.StagingRow) []any {
	return []any{
		row.ID, row.BatchID, row.Hash,
		row.StoreName, row.ItemCode, row.ItemBarcode, row.Supplier, row.Description,
		row.Category, row.Department, row.SubDepartment, row.Section,
		row.Quantity, row.TotalSales, row.RRP, row.DateOfSale, row.IngestedAt,
	}
}

func StagingScanTargets(row *domain.StagingRow) []any {
	return []any{
		&row.ID, &row.BatchID, &row.Hash,
		&row.StoreName, &row.ItemCode, &row.ItemBarcode, &row.Supplier, &row.Description,
		&row.Category, &row.Department, &row.SubDepartment, &row.Section,
		&row.Quantity, &row.TotalSales, &row.RRP, &row.DateOfSale, &row.IngestedAt,
	}
}
