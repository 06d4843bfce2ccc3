package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/jackc/pgx/v5"
)

type promotionRepository struct {
	conn *db.Connection
}

// NewPromotionRepository wires a promotion repository backed by pgxpool.
func NewPromotionRepository(conn *db.Connection) PromotionRepository {
	return &promotionRepository{conn: conn}
}

func (r *promotionRepository) Promote(ctx context.Context, errs []domain.ValidationError, rows []domain.AnalyticRow) (domain.PromotionOutcome, error) {
	outcome := domain.PromotionOutcome{SkippedHashes: []string{}}
	if r.conn == nil || r.conn.Pool == nil {
		return outcome, fmt.Errorf("promotion repository not initialized")
	}
	if len(errs) == 0 && len(rows) == 0 {
		return outcome, nil
	}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range errs {
			batch.Queue(InsertValidationErrorSQL, ValidationErrorValues(e)...)
		}
		for _, row := range rows {
			batch.Queue(InsertSaleSQL, AnalyticValues(row)...)
		}

		results := tx.SendBatch(ctx, batch)
		for range errs {
			if _, execErr := results.Exec(); execErr != nil {
				_ = results.Close()
				return fmt.Errorf("failed to record validation error: %w", execErr)
			}
		}
		local := domain.PromotionOutcome{ErrorsRecorded: len(errs), SkippedHashes: []string{}}
		for _, row := range rows {
			tag, execErr := results.Exec()
			if execErr != nil {
				_ = results.Close()
				return fmt.Errorf("failed to promote row %s: %w", row.ID, execErr)
			}
			if tag.RowsAffected() == 0 {
				local.SkippedHashes = append(local.SkippedHashes, row.Hash)
				continue
			}
			local.Promoted++
		}
		if closeErr := results.Close(); closeErr != nil {
			return fmt.Errorf("failed to finish promotion batch: %w", closeErr)
		}
		outcome = local
		return nil
	})
	if err != nil {
		return domain.PromotionOutcome{SkippedHashes: []string{}}, err
	}

	return outcome, nil
}

func ValidationErrorValues(e domain.ValidationError) []any {
	return []any{e.ID, e.RowID, e.Hash, e.FieldName, e.CellValue, e.Message, e.Note, e.CreatedAt}
}

func AnalyticValues(row domain.AnalyticRow) []any {
	return []any{
		row.ID, row.Hash, row.StoreName, row.ItemCode, row.ItemBarcode, row.Supplier, row.Description,
		row.Category, row.Department, row.SubDepartment, row.Section,
		row.Quantity, row.TotalSales, row.RRP, row.SalePrice, row.Margin, row.DateOfSale,
	}
}
