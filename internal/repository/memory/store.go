// Package memory implements the repository Store in process memory. It backs
// tests and the zero-dependency server mode; its aggregates mirror the SQL
// used by the database stores.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/repository"

	"github.com/google/uuid"
)

const promoThreshold = 0.9

// Store keeps staging rows, analytic rows and validation errors in memory.
type Store struct {
	mu      sync.RWMutex
	staging []domain.StagingRow
	stageID map[uuid.UUID]struct{}
	sales   []domain.AnalyticRow
	byHash  map[string]int
	errors  []domain.ValidationError

	// FailPromote, when set, is returned by Promote before any write.
	FailPromote error
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		stageID: make(map[uuid.UUID]struct{}),
		byHash:  make(map[string]int),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertBatch(_ context.Context, rows []domain.StagingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := s.stageID[row.ID]; ok {
			return fmt.Errorf("failed to stage rows: duplicate id %s", row.ID)
		}
		if _, ok := seen[row.ID]; ok {
			return fmt.Errorf("failed to stage rows: duplicate id %s", row.ID)
		}
		seen[row.ID] = struct{}{}
	}

	for _, row := range rows {
		s.stageID[row.ID] = struct{}{}
		s.staging = append(s.staging, row)
	}
	return nil
}

func (s *Store) ListBatch(_ context.Context, batchID uuid.UUID) ([]domain.StagingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.StagingRow{}
	for _, row := range s.staging {
		if row.BatchID == batchID {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// StagedCount reports how many rows have been staged across all batches.
func (s *Store) StagedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.staging)
}

func (s *Store) Promote(_ context.Context, errs []domain.ValidationError, rows []domain.AnalyticRow) (domain.PromotionOutcome, error) {
	outcome := domain.PromotionOutcome{SkippedHashes: []string{}}
	if s.FailPromote != nil {
		return outcome, s.FailPromote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors = append(s.errors, errs...)
	outcome.ErrorsRecorded = len(errs)

	for _, row := range rows {
		if _, exists := s.byHash[row.Hash]; exists {
			outcome.SkippedHashes = append(outcome.SkippedHashes, row.Hash)
			continue
		}
		s.byHash[row.Hash] = len(s.sales)
		s.sales = append(s.sales, row)
		outcome.Promoted++
	}
	return outcome, nil
}

func (s *Store) GetSaleByHash(_ context.Context, hash string) (domain.AnalyticRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byHash[hash]
	if !ok {
		return domain.AnalyticRow{}, fmt.Errorf("sale %s: %w", hash, repository.ErrNotFound)
	}
	return s.sales[idx], nil
}

func (s *Store) CountSales(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sales)), nil
}

func (s *Store) ListValidationErrors(_ context.Context, filter domain.ValidationErrorFilter) ([]domain.ValidationError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)

	matched := []domain.ValidationError{}
	for _, e := range s.sortedErrors() {
		if filter.RowID != nil && e.RowID != *filter.RowID {
			continue
		}
		matched = append(matched, e)
	}

	if offset >= len(matched) {
		return []domain.ValidationError{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *Store) ValidationMessages(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedErrors()
	messages := make([]string, 0, len(sorted))
	for _, e := range sorted {
		messages = append(messages, e.Message)
	}
	return messages, nil
}

func (s *Store) sortedErrors() []domain.ValidationError {
	sorted := append([]domain.ValidationError(nil), s.errors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

func (s *Store) StoreQuality(_ context.Context) ([]domain.StoreQualityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		stats  domain.StoreQualityStats
		prices []float64
	}
	groups := map[string]*acc{}
	for _, row := range s.staging {
		if row.StoreName == "" {
			continue
		}
		g, ok := groups[row.StoreName]
		if !ok {
			g = &acc{stats: domain.StoreQualityStats{StoreName: row.StoreName}}
			groups[row.StoreName] = g
		}
		g.stats.TotalTransactions++
		if row.Quantity == nil || row.TotalSales == nil {
			g.stats.NullSales++
		}
		if (row.Quantity != nil && *row.Quantity == 0) || (row.TotalSales != nil && *row.TotalSales == 0) {
			g.stats.ZeroSales++
		}
		if (row.Quantity != nil && *row.Quantity < 0) || (row.TotalSales != nil && *row.TotalSales < 0) {
			g.stats.NegativeValues++
		}
		if row.Quantity != nil && row.TotalSales != nil && *row.Quantity != 0 {
			g.prices = append(g.prices, *row.TotalSales/float64(*row.Quantity))
		}
	}

	out := make([]domain.StoreQualityStats, 0, len(groups))
	for _, g := range groups {
		g.stats.AvgUnitPrice, g.stats.PriceVolatility = meanAndSampleStddev(g.prices)
		out = append(out, g.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreName < out[j].StoreName })
	return out, nil
}

func (s *Store) SupplierQuality(_ context.Context) ([]domain.SupplierQualityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := map[string]*domain.SupplierQualityStats{}
	stores := map[string]map[string]struct{}{}
	for _, row := range s.staging {
		if row.Supplier == "" {
			continue
		}
		g, ok := groups[row.Supplier]
		if !ok {
			g = &domain.SupplierQualityStats{Supplier: row.Supplier}
			groups[row.Supplier] = g
			stores[row.Supplier] = map[string]struct{}{}
		}
		g.TotalTransactions++
		if row.StoreName != "" {
			stores[row.Supplier][row.StoreName] = struct{}{}
		}

		missing := row.Quantity == nil || row.TotalSales == nil
		if missing {
			g.NullSales++
		}
		if missing || *row.Quantity == 0 || *row.TotalSales == 0 {
			g.ZeroSales++
		}
		if row.RRP == nil || *row.RRP == 0 {
			g.MissingRRP++
		}
	}

	out := make([]domain.SupplierQualityStats, 0, len(groups))
	for name, g := range groups {
		g.StoreCoverage = int64(len(stores[name]))
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Supplier < out[j].Supplier })
	return out, nil
}

func (s *Store) PromotionGroups(_ context.Context, supplier string) ([]domain.PromoGroupStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ description, section string }
	groups := map[key]*domain.PromoGroupStats{}
	for _, row := range s.sales {
		if !containsFold(row.Supplier, supplier) {
			continue
		}
		k := key{row.Description, row.Section}
		g, ok := groups[k]
		if !ok {
			g = &domain.PromoGroupStats{Description: row.Description, Section: row.Section}
			groups[k] = g
		}
		threshold := row.RRP * promoThreshold
		if row.SalePrice <= threshold {
			g.PromoUnits += row.Quantity
			g.PromoTransactions++
		}
		if row.SalePrice >= threshold {
			g.BaselineUnits += row.Quantity
		}
	}

	out := make([]domain.PromoGroupStats, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Description != out[j].Description {
			return out[i].Description < out[j].Description
		}
		return out[i].Section < out[j].Section
	})
	return out, nil
}

func (s *Store) SegmentPrices(_ context.Context, supplier string) ([]domain.SegmentPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type segment struct{ store, subDepartment, section string }
	type itemKey struct {
		segment
		supplier string
	}

	sums := map[itemKey][]float64{}
	for _, row := range s.sales {
		if row.Quantity <= 0 || row.TotalSales <= 0 {
			continue
		}
		k := itemKey{segment{row.StoreName, row.SubDepartment, row.Section}, row.Supplier}
		sums[k] = append(sums[k], row.TotalSales/float64(row.Quantity))
	}

	competitors := map[segment][]float64{}
	for k, prices := range sums {
		if containsFold(k.supplier, supplier) {
			continue
		}
		avg, _ := meanAndSampleStddev(prices)
		competitors[k.segment] = append(competitors[k.segment], *avg)
	}

	out := []domain.SegmentPrice{}
	for k, prices := range sums {
		if !containsFold(k.supplier, supplier) {
			continue
		}
		comp, ok := competitors[k.segment]
		if !ok {
			continue
		}
		own, _ := meanAndSampleStddev(prices)
		compAvg, _ := meanAndSampleStddev(comp)
		out = append(out, domain.SegmentPrice{
			Supplier:           k.supplier,
			StoreName:          k.store,
			SubDepartment:      k.subDepartment,
			Section:            k.section,
			SupplierAvgPrice:   *own,
			CompetitorAvgPrice: *compAvg,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StoreName != b.StoreName {
			return a.StoreName < b.StoreName
		}
		if a.SubDepartment != b.SubDepartment {
			return a.SubDepartment < b.SubDepartment
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return a.Supplier < b.Supplier
	})
	return out, nil
}

// containsFold matches SQL STRPOS(LOWER(s), LOWER(substr)) > 0.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// meanAndSampleStddev follows SQL AVG and STDDEV_SAMP: nil mean for no
// values, nil deviation for fewer than two.
func meanAndSampleStddev(values []float64) (*float64, *float64) {
	if len(values) == 0 {
		return nil, nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return &mean, nil
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(sq / float64(len(values)-1))
	return &mean, &sd
}
