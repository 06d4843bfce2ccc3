package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/repository"
	"github.com/rpattn/retailanalytics/internal/repository/duckdb"
	"github.com/rpattn/retailanalytics/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestServiceConcurrentIngestPromotesOnce(t *testing.T) {
	stores := map[string]func(t *testing.T) repository.Store{
		"memory": func(*testing.T) repository.Store { return memory.New() },
		"duckdb": func(t *testing.T) repository.Store {
			store, err := duckdb.Open(context.Background(), "", nil)
			require.NoError(t, err)
			return store
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })

			service := NewService(Repositories{
				Staging:   store,
				Promotion: store,
				Errors:    store,
			}, WithClock(func() time.Time { return fixedNow }))

			const writers = 4
			results := make([]domain.IngestResult, writers)
			var g errgroup.Group
			for i := range writers {
				g.Go(func() error {
					result, err := service.Ingest(context.Background(), []map[string]any{saleRow()})
					results[i] = result
					return err
				})
			}
			require.NoError(t, g.Wait())

			var ingested, skipped int
			for _, result := range results {
				assert.Equal(t, 1, result.RowsReceived)
				assert.Zero(t, result.RowsForReview)
				ingested += result.RowsIngested
				skipped += result.SkippedDuplicates
			}
			assert.Equal(t, 1, ingested)
			assert.Equal(t, writers-1, skipped)

			count, err := store.CountSales(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	}
}
