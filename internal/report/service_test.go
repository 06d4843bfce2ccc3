package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	stores    []domain.StoreQualityStats
	suppliers []domain.SupplierQualityStats
	groups    []domain.PromoGroupStats
	segments  []domain.SegmentPrice
	err       error

	calls        map[string]int
	lastSupplier string
}

func (r *stubRepo) count(name string) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[name]++
}

func (r *stubRepo) StoreQuality(context.Context) ([]domain.StoreQualityStats, error) {
	r.count("stores")
	return r.stores, r.err
}

func (r *stubRepo) SupplierQuality(context.Context) ([]domain.SupplierQualityStats, error) {
	r.count("suppliers")
	return r.suppliers, r.err
}

func (r *stubRepo) PromotionGroups(_ context.Context, supplier string) ([]domain.PromoGroupStats, error) {
	r.count("groups")
	r.lastSupplier = supplier
	return r.groups, r.err
}

func (r *stubRepo) SegmentPrices(_ context.Context, supplier string) ([]domain.SegmentPrice, error) {
	r.count("segments")
	r.lastSupplier = supplier
	return r.segments, r.err
}

func f64(v float64) *float64 { return &v }

func newService(repo *stubRepo) *Service {
	return NewService(repo, Config{CacheTTL: time.Minute, CacheSize: 16, DefaultSupplier: "Bidco"})
}

func TestQualityFlagsUnreliableStoresAndSuppliers(t *testing.T) {
	repo := &stubRepo{
		stores: []domain.StoreQualityStats{
			{StoreName: "Karen", TotalTransactions: 10, NegativeValues: 1, ZeroSales: 3, AvgUnitPrice: f64(10), PriceVolatility: f64(25)},
			{StoreName: "Westlands", TotalTransactions: 10, AvgUnitPrice: f64(10), PriceVolatility: f64(1)},
			{StoreName: "Yaya", TotalTransactions: 10, NullSales: 2, ZeroSales: 2},
		},
		suppliers: []domain.SupplierQualityStats{
			{Supplier: "Bidco", TotalTransactions: 10, StoreCoverage: 5},
			{Supplier: "Other", TotalTransactions: 10, StoreCoverage: 2, MissingRRP: 3},
		},
	}

	report, err := newService(repo).Quality(context.Background())
	require.NoError(t, err)

	require.Len(t, report.UnreliableStores, 1)
	karen := report.UnreliableStores[0]
	assert.Equal(t, "Karen", karen.StoreName)
	assert.Equal(t, "data_quality", karen.IssueType)
	assert.Equal(t, []string{
		"1 negative values",
		"3 zero sales (30.0%)",
		"Volatility is greater than 2X of average price",
	}, karen.Details.Issues)

	require.Len(t, report.UnreliableSuppliers, 1)
	assert.Equal(t, "Other", report.UnreliableSuppliers[0].Supplier)
	assert.Equal(t, []string{"3 missing rrp", "Low store coverage: 2 stores"}, report.UnreliableSuppliers[0].Details.Issues)

	assert.Equal(t, domain.QualitySummary{
		TotalStoresAnalyzed:      3,
		TotalSuppliersAnalyzed:   2,
		UnreliableStoresCount:    1,
		UnreliableStoresPct:      33.33,
		UnreliableSuppliersCount: 1,
		UnreliableSuppliersPct:   50,
		OverallStoreHealth:       domain.HealthNeedsAttention,
		OverallSupplierHealth:    domain.HealthNeedsAttention,
	}, report.Summary)
}

func TestQualityHealthyPopulation(t *testing.T) {
	repo := &stubRepo{}
	for i := 0; i < 20; i++ {
		repo.stores = append(repo.stores, domain.StoreQualityStats{StoreName: fmt.Sprintf("s%02d", i), TotalTransactions: 5})
		repo.suppliers = append(repo.suppliers, domain.SupplierQualityStats{Supplier: fmt.Sprintf("p%02d", i), TotalTransactions: 5, StoreCoverage: 4})
	}
	repo.stores[0].NegativeValues = 1

	report, err := newService(repo).Quality(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.UnreliableStoresCount)
	assert.Equal(t, domain.HealthGood, report.Summary.OverallStoreHealth)
	assert.Equal(t, domain.HealthGood, report.Summary.OverallSupplierHealth)
	assert.Empty(t, report.UnreliableSuppliers)
}

func TestQualityWithoutRowsIsNoData(t *testing.T) {
	_, err := newService(&stubRepo{}).Quality(context.Background())
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestPromotionComputesUpliftAndSummary(t *testing.T) {
	repo := &stubRepo{groups: []domain.PromoGroupStats{
		{Description: "Soap", Section: "Home", PromoUnits: 30, BaselineUnits: 20, PromoTransactions: 4},
		{Description: "Oil", Section: "Food", PromoUnits: 10, BaselineUnits: 30, PromoTransactions: 2},
		{Description: "Margarine", Section: "Food", PromoUnits: 5, BaselineUnits: 0},
		{Description: "Juice", Section: "Food", PromoUnits: 0, BaselineUnits: 7},
		{Description: "Flour", Section: "Food", PromoUnits: 2, BaselineUnits: 3, PromoTransactions: 1},
	}}

	report, err := newService(repo).Promotion(context.Background(), " BIDCO ", nil)
	require.NoError(t, err)
	assert.Equal(t, "bidco", repo.lastSupplier)

	require.Len(t, report.TopPerformers, 3)
	assert.Equal(t, "Soap", report.TopPerformers[0].ProductName)
	assert.Equal(t, 50.0, report.TopPerformers[0].UpliftPct)
	assert.Equal(t, -33.33, report.TopPerformers[1].UpliftPct)
	assert.Equal(t, -66.67, report.TopPerformers[2].UpliftPct)

	require.Len(t, report.PoorPerformers, 3)
	assert.Equal(t, "Oil", report.PoorPerformers[0].ProductName)

	assert.Equal(t, domain.PromotionSummary{
		TotalPromotedProducts: 3,
		TotalPromoUnits:       42,
		TotalBaselineUnits:    53,
		OverallUpliftUnitPct:  -20.75,
		AverageUpliftPct:      -16.67,
		PositiveUpliftCount:   1,
		NegativeUpliftCount:   2,
	}, report.Summary)
}

func TestPromotionMinUpliftCanYieldEmptyReport(t *testing.T) {
	repo := &stubRepo{groups: []domain.PromoGroupStats{
		{Description: "Soap", Section: "Home", PromoUnits: 30, BaselineUnits: 20},
		{Description: "Oil", Section: "Food", PromoUnits: 10, BaselineUnits: 30},
	}}
	service := newService(repo)

	filtered, err := service.Promotion(context.Background(), "bidco", f64(0))
	require.NoError(t, err)
	require.Len(t, filtered.TopPerformers, 1)
	assert.Equal(t, "Soap", filtered.TopPerformers[0].ProductName)

	empty, err := service.Promotion(context.Background(), "bidco", f64(500))
	require.NoError(t, err)
	assert.Empty(t, empty.TopPerformers)
	assert.Empty(t, empty.PoorPerformers)
	assert.Zero(t, empty.Summary.TotalPromotedProducts)
}

func TestPromotionWithoutComparableGroupsIsNoData(t *testing.T) {
	repo := &stubRepo{groups: []domain.PromoGroupStats{{Description: "Soap", PromoUnits: 4}}}
	_, err := newService(repo).Promotion(context.Background(), "nobody", nil)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestPromotionLimitsPerformerLists(t *testing.T) {
	repo := &stubRepo{}
	for i := 1; i <= 12; i++ {
		repo.groups = append(repo.groups, domain.PromoGroupStats{
			Description:   fmt.Sprintf("p%02d", i),
			PromoUnits:    int64(10 + i),
			BaselineUnits: 10,
		})
	}

	report, err := newService(repo).Promotion(context.Background(), "bidco", nil)
	require.NoError(t, err)
	require.Len(t, report.TopPerformers, 10)
	require.Len(t, report.PoorPerformers, 10)
	assert.Equal(t, "p12", report.TopPerformers[0].ProductName)
	assert.Equal(t, "p03", report.TopPerformers[9].ProductName)
	assert.Equal(t, "p01", report.PoorPerformers[0].ProductName)
	assert.Equal(t, "p10", report.PoorPerformers[9].ProductName)
}

func TestPricingClassifiesSegments(t *testing.T) {
	repo := &stubRepo{segments: []domain.SegmentPrice{
		{Supplier: "Bidco", StoreName: "Karen", SubDepartment: "Oil", Section: "Food", SupplierAvgPrice: 8, CompetitorAvgPrice: 10},
		{Supplier: "Bidco", StoreName: "Westlands", SubDepartment: "Oil", Section: "Food", SupplierAvgPrice: 12.345, CompetitorAvgPrice: 10},
		{Supplier: "Bidco", StoreName: "Yaya", SubDepartment: "Soap", Section: "Home", SupplierAvgPrice: 10, CompetitorAvgPrice: 10},
	}}

	report, err := newService(repo).Pricing(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "bidco", repo.lastSupplier)

	require.Len(t, report.SupplierPricing, 3)
	first := report.SupplierPricing[0]
	assert.Equal(t, "Westlands", first.StoreName)
	assert.Equal(t, 12.35, first.SupplierAvgPrice)
	assert.Equal(t, 123.45, first.PriceIndex)
	assert.Equal(t, domain.PositionPremium, first.MarketPosition)
	assert.Equal(t, domain.PositionMarket, report.SupplierPricing[1].MarketPosition)
	assert.Equal(t, domain.PositionDiscount, report.SupplierPricing[2].MarketPosition)

	assert.Equal(t, domain.PricingSummary{
		Supplier:             "bidco",
		TotalStoreSegments:   3,
		AveragePriceIndex:    101.15,
		PremiumPositions:     1,
		MarketPositions:      1,
		DiscountPositions:    1,
		PriceCompetitiveness: domain.CompetitivenessCompetitive,
	}, report.Summary)
}

func TestPricingWithoutSegmentsIsNoData(t *testing.T) {
	_, err := newService(&stubRepo{}).Pricing(context.Background(), "unknown")
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestReportsAreCachedUntilPurged(t *testing.T) {
	repo := &stubRepo{segments: []domain.SegmentPrice{
		{Supplier: "Bidco", StoreName: "Karen", SupplierAvgPrice: 9, CompetitorAvgPrice: 10},
	}}
	service := newService(repo)
	ctx := context.Background()

	_, err := service.Pricing(ctx, "bidco")
	require.NoError(t, err)
	_, err = service.Pricing(ctx, "BIDCO")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls["segments"])

	service.Purge()
	_, err = service.Pricing(ctx, "bidco")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls["segments"])
}

func TestFailuresAreNotCached(t *testing.T) {
	repo := &stubRepo{err: errors.New("boom")}
	service := newService(repo)

	_, err := service.Quality(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))

	_, err = service.Quality(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, repo.calls["stores"])
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, round2(1.005))
	assert.Equal(t, -2.68, round2(-2.675))
	assert.Equal(t, 66.67, round2(200.0/3))
}

// gatedRepo blocks the first StoreQuality call until release is closed and
// then returns the stores it saw when the call started.
type gatedRepo struct {
	*stubRepo
	started chan struct{}
	release chan struct{}
	gated   bool
}

func (r *gatedRepo) StoreQuality(ctx context.Context) ([]domain.StoreQualityStats, error) {
	stores, err := r.stubRepo.StoreQuality(ctx)
	if !r.gated {
		r.gated = true
		close(r.started)
		<-r.release
	}
	return stores, err
}

func TestPurgeDuringBuildDoesNotCacheStaleReport(t *testing.T) {
	repo := &gatedRepo{
		stubRepo: &stubRepo{stores: []domain.StoreQualityStats{
			{StoreName: "Westlands", TotalTransactions: 10},
		}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	service := NewService(repo, Config{CacheTTL: time.Minute, CacheSize: 16})
	ctx := context.Background()

	type outcome struct {
		report domain.QualityReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := service.Quality(ctx)
		done <- outcome{report, err}
	}()

	<-repo.started
	repo.stores = append(repo.stores, domain.StoreQualityStats{StoreName: "Kilimani", TotalTransactions: 4})
	service.Purge()
	close(repo.release)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, 1, first.report.Summary.TotalStoresAnalyzed)

	second, err := service.Quality(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.TotalStoresAnalyzed)
	assert.Equal(t, 2, repo.calls["stores"])
}
