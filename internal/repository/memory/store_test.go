package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func row(batch uuid.UUID, store, supplier string, qty *int64, total, rrp *float64) domain.StagingRow {
	return domain.StagingRow{
		ID:            uuid.Must(uuid.NewV7()),
		BatchID:       batch,
		Hash:          uuid.NewString(),
		StoreName:     store,
		Supplier:      supplier,
		Description:   "Soap",
		SubDepartment: "Bar Soap",
		Section:       "Home",
		Quantity:      qty,
		TotalSales:    total,
		RRP:           rrp,
		DateOfSale:    ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func promote(t *testing.T, s *Store, rows ...domain.StagingRow) {
	t.Helper()
	analytic := make([]domain.AnalyticRow, 0, len(rows))
	for _, r := range rows {
		a, err := domain.NewAnalyticRow(r)
		require.NoError(t, err)
		analytic = append(analytic, a)
	}
	_, err := s.Promote(context.Background(), nil, analytic)
	require.NoError(t, err)
}

func TestStore_InsertBatchIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	batch := uuid.Must(uuid.NewV7())

	first := row(batch, "Westlands", "Bidco", ptr(int64(1)), ptr(10.0), ptr(10.0))
	require.NoError(t, s.InsertBatch(ctx, []domain.StagingRow{first}))

	second := row(batch, "Westlands", "Bidco", ptr(int64(1)), ptr(10.0), ptr(10.0))
	err := s.InsertBatch(ctx, []domain.StagingRow{second, first})
	require.Error(t, err)
	assert.Equal(t, 1, s.StagedCount())

	listed, err := s.ListBatch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)
}

func TestStore_PromoteSkipsKnownHashes(t *testing.T) {
	s := New()
	ctx := context.Background()
	r := row(uuid.Must(uuid.NewV7()), "Westlands", "Bidco", ptr(int64(2)), ptr(20.0), ptr(10.0))
	promote(t, s, r)

	a, err := domain.NewAnalyticRow(r)
	require.NoError(t, err)
	outcome, err := s.Promote(ctx, nil, []domain.AnalyticRow{a})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Promoted)
	assert.Equal(t, []string{r.Hash}, outcome.SkippedHashes)

	count, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = s.GetSaleByHash(ctx, "nope")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestStore_ValidationErrorPaging(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()
	target := uuid.Must(uuid.NewV7())

	var errs []domain.ValidationError
	for i := 0; i < 5; i++ {
		rowID := uuid.Must(uuid.NewV7())
		if i%2 == 0 {
			rowID = target
		}
		errs = append(errs, domain.ValidationError{
			ID:        uuid.Must(uuid.NewV7()),
			RowID:     rowID,
			Message:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(4-i) * time.Second),
		})
	}
	_, err := s.Promote(ctx, errs, nil)
	require.NoError(t, err)

	messages, err := s.ValidationMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, messages)

	filtered, err := s.ListValidationErrors(ctx, domain.ValidationErrorFilter{RowID: &target})
	require.NoError(t, err)
	assert.Len(t, filtered, 3)

	page, err := s.ListValidationErrors(ctx, domain.ValidationErrorFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Message)

	empty, err := s.ListValidationErrors(ctx, domain.ValidationErrorFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_QualityAggregates(t *testing.T) {
	s := New()
	ctx := context.Background()
	batch := uuid.Must(uuid.NewV7())

	require.NoError(t, s.InsertBatch(ctx, []domain.StagingRow{
		row(batch, "Westlands", "Bidco", ptr(int64(2)), ptr(20.0), ptr(10.0)),
		row(batch, "Westlands", "Bidco", ptr(int64(4)), ptr(32.0), nil),
		row(batch, "Westlands", "Other", ptr(int64(1)), ptr(12.0), ptr(12.0)),
		row(batch, "Karen", "Other", nil, ptr(5.0), ptr(0.0)),
		row(batch, "Karen", "Other", ptr(int64(-1)), ptr(0.0), ptr(3.0)),
	}))

	stores, err := s.StoreQuality(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 2)

	karen, westlands := stores[0], stores[1]
	assert.Equal(t, "Karen", karen.StoreName)
	assert.Equal(t, int64(1), karen.NullSales)
	assert.Equal(t, int64(1), karen.ZeroSales)
	assert.Equal(t, int64(1), karen.NegativeValues)
	require.NotNil(t, karen.AvgUnitPrice)
	assert.InDelta(t, 0.0, *karen.AvgUnitPrice, 1e-9)
	assert.Nil(t, karen.PriceVolatility)

	assert.Equal(t, int64(3), westlands.TotalTransactions)
	assert.InDelta(t, 10.0, *westlands.AvgUnitPrice, 1e-9)
	assert.InDelta(t, 2.0, *westlands.PriceVolatility, 1e-9)

	suppliers, err := s.SupplierQuality(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	bidco, other := suppliers[0], suppliers[1]
	assert.Equal(t, int64(1), bidco.MissingRRP)
	assert.Equal(t, int64(1), bidco.StoreCoverage)
	assert.Equal(t, int64(2), other.StoreCoverage)
	assert.Equal(t, int64(1), other.NullSales)
	assert.Equal(t, int64(2), other.ZeroSales)
	assert.Equal(t, int64(1), other.MissingRRP)
}

func TestStore_PromotionAndPricingAggregates(t *testing.T) {
	s := New()
	ctx := context.Background()
	batch := uuid.Must(uuid.NewV7())

	promote(t, s,
		row(batch, "Westlands", "Bidco Kenya", ptr(int64(2)), ptr(20.0), ptr(10.0)),
		row(batch, "Westlands", "Bidco Kenya", ptr(int64(4)), ptr(32.0), ptr(10.0)),
		row(batch, "Westlands", "Bidco Kenya", ptr(int64(3)), ptr(27.0), ptr(10.0)),
		row(batch, "Westlands", "Other Ltd", ptr(int64(1)), ptr(12.0), ptr(12.0)),
	)

	groups, err := s.PromotionGroups(ctx, "BIDCO")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	// 8.00 is promoted, 10.00 is baseline and 9.00 sits on the threshold.
	assert.Equal(t, int64(7), groups[0].PromoUnits)
	assert.Equal(t, int64(5), groups[0].BaselineUnits)
	assert.Equal(t, int64(2), groups[0].PromoTransactions)

	segments, err := s.SegmentPrices(ctx, "bidco")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.InDelta(t, 9.0, segments[0].SupplierAvgPrice, 1e-9)
	assert.InDelta(t, 12.0, segments[0].CompetitorAvgPrice, 1e-9)

	none, err := s.SegmentPrices(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_QualityIgnoresBlankStoresAndSuppliers(t *testing.T) {
	s := New()
	ctx := context.Background()
	batch := uuid.Must(uuid.NewV7())

	require.NoError(t, s.InsertBatch(ctx, []domain.StagingRow{
		row(batch, "Westlands", "Bidco", ptr(int64(2)), ptr(20.0), ptr(10.0)),
		row(batch, "", "Bidco", ptr(int64(1)), ptr(10.0), ptr(10.0)),
		row(batch, "Karen", "", ptr(int64(1)), ptr(10.0), ptr(10.0)),
	}))

	stores, err := s.StoreQuality(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "Karen", stores[0].StoreName)
	assert.Equal(t, "Westlands", stores[1].StoreName)

	suppliers, err := s.SupplierQuality(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "Bidco", suppliers[0].Supplier)
	assert.Equal(t, int64(2), suppliers[0].TotalTransactions)
	assert.Equal(t, int64(1), suppliers[0].StoreCoverage)
}
