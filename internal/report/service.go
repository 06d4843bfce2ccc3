// Package report builds the quality, promotion uplift and pricing index
// reports from the aggregates returned by the report repository.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/metrics"
	"github.com/rpattn/retailanalytics/internal/repository"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoData signals that nothing matched the report filter. It is not a fault.
var ErrNoData = errors.New("no data")

const (
	issueTypeDataQuality = "data_quality"

	unreliableRate     = 0.2
	volatilityFactor   = 2.0
	minStoreCoverage   = 3
	healthyUnreliable  = 0.1
	performerListLimit = 10

	discountBelow = 90.0
	premiumAbove  = 105.0
)

// Config tunes the report cache and defaults.
type Config struct {
	CacheTTL        time.Duration
	CacheSize       int
	DefaultSupplier string
}

// Service builds reports. Results are cached per parameters until the TTL
// expires or Purge is called.
type Service struct {
	repo  repository.ReportRepository
	cache *expirable.LRU[string, any]
	// generation changes on every Purge; a build that straddles a purge is
	// returned but not cached.
	mu              sync.Mutex
	generation      uint64
	defaultSupplier string
	logger          *zap.Logger
	metrics         *metrics.Metrics
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

// WithMetrics records report latency and cache lookups to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a report service. A CacheSize <= 0 disables caching.
func NewService(repo repository.ReportRepository, cfg Config, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		defaultSupplier: strings.TrimSpace(cfg.DefaultSupplier),
		logger:          zap.NewNop(),
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, any](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purge drops every cached report.
func (s *Service) Purge() {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.generation++
	s.cache.Purge()
	s.mu.Unlock()
	s.logger.Debug("report cache purged")
}

// Quality flags unreliable stores and suppliers across all staged rows.
func (s *Service) Quality(ctx context.Context) (domain.QualityReport, error) {
	return cached(s, "quality", "quality", func() (domain.QualityReport, error) {
		stores, err := s.repo.StoreQuality(ctx)
		if err != nil {
			return domain.QualityReport{}, fmt.Errorf("failed to load store quality: %w", err)
		}
		suppliers, err := s.repo.SupplierQuality(ctx)
		if err != nil {
			return domain.QualityReport{}, fmt.Errorf("failed to load supplier quality: %w", err)
		}
		if len(stores) == 0 && len(suppliers) == 0 {
			return domain.QualityReport{}, ErrNoData
		}
		return buildQualityReport(stores, suppliers), nil
	})
}

// Promotion reports unit uplift on promoted sales for products of suppliers
// matching supplier. minUplift, when set, drops products below it.
func (s *Service) Promotion(ctx context.Context, supplier string, minUplift *float64) (domain.PromotionReport, error) {
	supplier = s.supplier(supplier)
	key := "promotion|" + supplier
	if minUplift != nil {
		key += "|" + strconv.FormatFloat(*minUplift, 'g', -1, 64)
	}

	return cached(s, "promotion", key, func() (domain.PromotionReport, error) {
		groups, err := s.repo.PromotionGroups(ctx, supplier)
		if err != nil {
			return domain.PromotionReport{}, fmt.Errorf("failed to load promotion groups: %w", err)
		}
		return buildPromotionReport(groups, minUplift)
	})
}

// Pricing reports the price index of supplier against its competitors per
// store segment.
func (s *Service) Pricing(ctx context.Context, supplier string) (domain.PricingReport, error) {
	supplier = s.supplier(supplier)

	return cached(s, "pricing", "pricing|"+supplier, func() (domain.PricingReport, error) {
		segments, err := s.repo.SegmentPrices(ctx, supplier)
		if err != nil {
			return domain.PricingReport{}, fmt.Errorf("failed to load segment prices: %w", err)
		}
		return buildPricingReport(supplier, segments)
	})
}

func (s *Service) supplier(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return strings.ToLower(s.defaultSupplier)
	}
	return requested
}

func (s *Service) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func cached[T any](s *Service, name, key string, build func() (T, error)) (T, error) {
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			if report, typed := hit.(T); typed {
				s.metrics.RecordCacheLookup(name, true)
				return report, nil
			}
		}
		s.metrics.RecordCacheLookup(name, false)
	}

	generation := s.currentGeneration()
	started := time.Now()
	report, err := build()
	s.metrics.RecordReport(name, time.Since(started))
	if err != nil {
		return report, err
	}

	if s.cache != nil {
		s.mu.Lock()
		if s.generation == generation {
			s.cache.Add(key, report)
		}
		s.mu.Unlock()
	}
	s.logger.Debug("report built", zap.String("report", name), zap.String("key", key), zap.Duration("took", time.Since(started)))
	return report, nil
}

func buildQualityReport(stores []domain.StoreQualityStats, suppliers []domain.SupplierQualityStats) domain.QualityReport {
	report := domain.QualityReport{
		UnreliableStores:    []domain.StoreQualityIssue{},
		UnreliableSuppliers: []domain.SupplierQualityIssue{},
	}

	for _, st := range stores {
		issues := storeIssues(st)
		if len(issues) == 0 {
			continue
		}
		report.UnreliableStores = append(report.UnreliableStores, domain.StoreQualityIssue{
			StoreName: st.StoreName,
			IssueType: issueTypeDataQuality,
			Details: domain.StoreQualityDetails{
				TotalTransactions: st.TotalTransactions,
				NullSales:         st.NullSales,
				ZeroSales:         st.ZeroSales,
				NegativeValues:    st.NegativeValues,
				AvgUnitPrice:      roundPtr(st.AvgUnitPrice),
				PriceVolatility:   roundPtr(st.PriceVolatility),
				Issues:            issues,
			},
		})
	}

	for _, sp := range suppliers {
		issues := supplierIssues(sp)
		if len(issues) == 0 {
			continue
		}
		report.UnreliableSuppliers = append(report.UnreliableSuppliers, domain.SupplierQualityIssue{
			Supplier:  sp.Supplier,
			IssueType: issueTypeDataQuality,
			Details: domain.SupplierQualityDetails{
				TotalTransactions: sp.TotalTransactions,
				StoreCoverage:     sp.StoreCoverage,
				ZeroSales:         sp.ZeroSales,
				MissingRRP:        sp.MissingRRP,
				Issues:            issues,
			},
		})
	}

	report.Summary = domain.QualitySummary{
		TotalStoresAnalyzed:      len(stores),
		TotalSuppliersAnalyzed:   len(suppliers),
		UnreliableStoresCount:    len(report.UnreliableStores),
		UnreliableStoresPct:      percentage(len(report.UnreliableStores), len(stores)),
		UnreliableSuppliersCount: len(report.UnreliableSuppliers),
		UnreliableSuppliersPct:   percentage(len(report.UnreliableSuppliers), len(suppliers)),
		OverallStoreHealth:       health(len(report.UnreliableStores), len(stores)),
		OverallSupplierHealth:    health(len(report.UnreliableSuppliers), len(suppliers)),
	}
	return report
}

func storeIssues(st domain.StoreQualityStats) []string {
	total := float64(st.TotalTransactions)
	var issues []string

	if st.NegativeValues > 0 {
		issues = append(issues, fmt.Sprintf("%d negative values", st.NegativeValues))
	}
	if float64(st.NullSales) > total*unreliableRate {
		issues = append(issues, fmt.Sprintf("%d nulls", st.NullSales))
	}
	if float64(st.ZeroSales) > total*unreliableRate {
		issues = append(issues, fmt.Sprintf("%d zero sales (%.1f%%)", st.ZeroSales, float64(st.ZeroSales)*100/total))
	}
	if st.PriceVolatility != nil && st.AvgUnitPrice != nil && *st.PriceVolatility > *st.AvgUnitPrice*volatilityFactor {
		issues = append(issues, "Volatility is greater than 2X of average price")
	}
	return issues
}

func supplierIssues(sp domain.SupplierQualityStats) []string {
	total := float64(sp.TotalTransactions)
	var issues []string

	if float64(sp.MissingRRP) > total*unreliableRate {
		issues = append(issues, fmt.Sprintf("%d missing rrp", sp.MissingRRP))
	}
	if float64(sp.ZeroSales) > total*unreliableRate {
		issues = append(issues, fmt.Sprintf("%d zero sales", sp.ZeroSales))
	}
	if sp.StoreCoverage < minStoreCoverage {
		issues = append(issues, fmt.Sprintf("Low store coverage: %d stores", sp.StoreCoverage))
	}
	return issues
}

func health(unreliable, total int) string {
	if float64(unreliable) < float64(total)*healthyUnreliable {
		return domain.HealthGood
	}
	return domain.HealthNeedsAttention
}

func buildPromotionReport(groups []domain.PromoGroupStats, minUplift *float64) (domain.PromotionReport, error) {
	uplifts := []domain.PromoUplift{}
	matched := 0
	for _, g := range groups {
		if g.PromoUnits <= 0 || g.BaselineUnits <= 0 {
			continue
		}
		matched++

		uplift := round2(float64(g.PromoUnits-g.BaselineUnits) / float64(g.BaselineUnits) * 100)
		if minUplift != nil && uplift < *minUplift {
			continue
		}
		uplifts = append(uplifts, domain.PromoUplift{
			ProductName:            g.Description,
			Section:                g.Section,
			PromoUnits:             g.PromoUnits,
			BaselineUnits:          g.BaselineUnits,
			UpliftPct:              uplift,
			TotalPromoTransactions: g.PromoTransactions,
		})
	}
	if matched == 0 {
		return domain.PromotionReport{}, ErrNoData
	}

	sort.SliceStable(uplifts, func(i, j int) bool { return uplifts[i].UpliftPct > uplifts[j].UpliftPct })

	var summary domain.PromotionSummary
	summary.TotalPromotedProducts = len(uplifts)
	var upliftSum float64
	for _, u := range uplifts {
		summary.TotalPromoUnits += u.PromoUnits
		summary.TotalBaselineUnits += u.BaselineUnits
		upliftSum += u.UpliftPct
		switch {
		case u.UpliftPct > 0:
			summary.PositiveUpliftCount++
		case u.UpliftPct < 0:
			summary.NegativeUpliftCount++
		}
	}
	if summary.TotalBaselineUnits > 0 {
		summary.OverallUpliftUnitPct = round2(float64(summary.TotalPromoUnits-summary.TotalBaselineUnits) / float64(summary.TotalBaselineUnits) * 100)
	}
	if len(uplifts) > 0 {
		summary.AverageUpliftPct = round2(upliftSum / float64(len(uplifts)))
	}

	top := uplifts
	if len(top) > performerListLimit {
		top = top[:performerListLimit]
	}
	tail := uplifts
	if len(tail) > performerListLimit {
		tail = tail[len(tail)-performerListLimit:]
	}
	poor := make([]domain.PromoUplift, len(tail))
	for i := range tail {
		poor[i] = tail[len(tail)-1-i]
	}

	return domain.PromotionReport{
		Summary:        summary,
		TopPerformers:  append([]domain.PromoUplift{}, top...),
		PoorPerformers: poor,
	}, nil
}

func buildPricingReport(supplier string, segments []domain.SegmentPrice) (domain.PricingReport, error) {
	indices := make([]domain.PriceIndex, 0, len(segments))
	for _, seg := range segments {
		if seg.CompetitorAvgPrice == 0 {
			continue
		}
		index := round2(seg.SupplierAvgPrice / seg.CompetitorAvgPrice * 100)
		indices = append(indices, domain.PriceIndex{
			StoreName:          seg.StoreName,
			SubDepartment:      seg.SubDepartment,
			Section:            seg.Section,
			SupplierAvgPrice:   round2(seg.SupplierAvgPrice),
			CompetitorAvgPrice: round2(seg.CompetitorAvgPrice),
			PriceIndex:         index,
			MarketPosition:     position(index),
		})
	}
	if len(indices) == 0 {
		return domain.PricingReport{}, ErrNoData
	}

	sort.SliceStable(indices, func(i, j int) bool { return indices[i].PriceIndex > indices[j].PriceIndex })

	summary := domain.PricingSummary{
		Supplier:           supplier,
		TotalStoreSegments: len(indices),
	}
	var sum float64
	for _, p := range indices {
		sum += p.PriceIndex
		switch p.MarketPosition {
		case domain.PositionPremium:
			summary.PremiumPositions++
		case domain.PositionDiscount:
			summary.DiscountPositions++
		default:
			summary.MarketPositions++
		}
	}
	avg := sum / float64(len(indices))
	summary.AveragePriceIndex = round2(avg)

	switch {
	case avg > premiumAbove:
		summary.PriceCompetitiveness = domain.PositionPremium
	case avg < discountBelow:
		summary.PriceCompetitiveness = domain.PositionDiscount
	default:
		summary.PriceCompetitiveness = domain.CompetitivenessCompetitive
	}

	return domain.PricingReport{SupplierPricing: indices, Summary: summary}, nil
}

func position(index float64) string {
	switch {
	case index < discountBelow:
		return domain.PositionDiscount
	case index > premiumAbove:
		return domain.PositionPremium
	default:
		return domain.PositionMarket
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

// round2 rounds half away from zero at two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
