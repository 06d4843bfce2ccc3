package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/jackc/pgx/v5"
)

type salesRepository struct {
	conn *db.Connection
}

// NewSalesRepository wires an analytic store reader backed by pgxpool.
func NewSalesRepository(conn *db.Connection) SalesRepository {
	return &salesRepository{conn: conn}
}

func (r *salesRepository) GetSaleByHash(ctx context.Context, hash string) (domain.AnalyticRow, error) {
	var row domain.AnalyticRow
	if r.conn == nil || r.conn.Pool == nil {
		return row, fmt.Errorf("sales repository not initialized")
	}

	err := r.conn.Pool.QueryRow(ctx, SelectSaleByHashSQL, hash).Scan(AnalyticScanTargets(&row)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return row, fmt.Errorf("sale %s: %w", hash, ErrNotFound)
		}
		return row, fmt.Errorf("failed to get sale: %w", err)
	}
	return row, nil
}

func (r *salesRepository) CountSales(ctx context.Context) (int64, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return 0, fmt.Errorf("sales repository not initialized")
	}

	var count int64
	if err := r.conn.Pool.QueryRow(ctx, CountSalesSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return count, nil
}

// AnalyticScanTargets matches the column order of SelectSaleByHashSQL.
func AnalyticScanTargets(row *domain.AnalyticRow) []any {
	return []any{
		&row.ID, &row.Hash, &row.StoreName, &row.ItemCode, &row.ItemBarcode, &row.Supplier, &row.Description,
		&row.Category, &row.Department, &row.SubDepartment, &row.Section,
		&row.Quantity, &row.TotalSales, &row.RRP, &row.SalePrice, &row.Margin, &row.DateOfSale,
	}
}
