package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/retailanalytics/internal/db"
	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/jackc/pgx/v5"
)

type reportRepository struct {
	conn *db.Connection
}

// NewReportRepository wires the report aggregation queries backed by pgxpool.
func NewReportRepository(conn *db.Connection) ReportRepository {
	return &reportRepository{conn: conn}
}

func (r *reportRepository) StoreQuality(ctx context.Context) ([]domain.StoreQualityStats, error) {
	return collect(ctx, r.conn, "store quality", StoreQualitySQL, nil, func(rows pgx.Rows) (domain.StoreQualityStats, error) {
		var stats domain.StoreQualityStats
		err := rows.Scan(StoreQualityScanTargets(&stats)...)
		return stats, err
	})
}

func (r *reportRepository) SupplierQuality(ctx context.Context) ([]domain.SupplierQualityStats, error) {
	return collect(ctx, r.conn, "supplier quality", SupplierQualitySQL, nil, func(rows pgx.Rows) (domain.SupplierQualityStats, error) {
		var stats domain.SupplierQualityStats
		err := rows.Scan(SupplierQualityScanTargets(&stats)...)
		return stats, err
	})
}

func (r *reportRepository) PromotionGroups(ctx context.Context, supplier string) ([]domain.PromoGroupStats, error) {
	return collect(ctx, r.conn, "promotion groups", PromotionGroupsSQL, []any{supplier}, func(rows pgx.Rows) (domain.PromoGroupStats, error) {
		var stats domain.PromoGroupStats
		err := rows.Scan(PromoGroupScanTargets(&stats)...)
		return stats, err
	})
}

func (r *reportRepository) SegmentPrices(ctx context.Context, supplier string) ([]domain.SegmentPrice, error) {
	return collect(ctx, r.conn, "segment prices", SegmentPricesSQL, []any{supplier}, func(rows pgx.Rows) (domain.SegmentPrice, error) {
		var price domain.SegmentPrice
		err := rows.Scan(SegmentPriceScanTargets(&price)...)
		return price, err
	})
}

func collect[T any](ctx context.Context, conn *db.Connection, name, query string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	if conn == nil || conn.Pool == nil {
		return nil, fmt.Errorf("report repository not initialized")
	}

	rows, err := conn.Pool.Query(ctx, query, args...)
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

// StoreQualityScanTargets matches the column order of StoreQualitySQL.
func StoreQualityScanTargets(s *domain.StoreQualityStats) []any {
	return []any{&s.StoreName, &s.TotalTransactions, &s.NullSales, &s.ZeroSales, &s.NegativeValues, &s.AvgUnitPrice, &s.PriceVolatility}
}

// SupplierQualityScanTargets matches the column order of SupplierQualitySQL.
func SupplierQualityScanTargets(s *domain.SupplierQualityStats) []any {
	return []any{&s.Supplier, &s.TotalTransactions, &s.StoreCoverage, &s.NullSales, &s.ZeroSales, &s.MissingRRP}
}

// PromoGroupScanTargets matches the column order of PromotionGroupsSQL.
func PromoGroupScanTargets(s *domain.PromoGroupStats) []any {
	return []any{&s.Description, &s.Section, &s.PromoUnits, &s.BaselineUnits, &s.PromoTransactions}
}

// SegmentPriceScanTargets matches the column order of SegmentPricesSQL.
func SegmentPriceScanTargets(p *domain.SegmentPrice) []any {
	return []any{&p.Supplier, &p.StoreName, &p.SubDepartment, &p.Section, &p.SupplierAvgPrice, &p.CompetitorAvgPrice}
}
