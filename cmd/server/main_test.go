package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpattn/retailanalytics/internal/config"
	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/metrics"
	"github.com/rpattn/retailanalytics/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const header = "Store Name,Item Code,Item Barcode,Supplier,Description,Category,Department,Sub Department,Section,Quantity,Total Sales,RRP,Date Of Sale\n"

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Addr:           ":0",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 1 << 20,
		},
		Store:   config.StoreConfig{Driver: config.DriverMemory},
		Reports: config.ReportsConfig{CacheTTL: time.Hour, CacheSize: 16, DefaultSupplier: "bidco"},
	}
}

func upload(t *testing.T, handler http.Handler, content string) domain.IngestResult {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func qualitySummary(t *testing.T, handler http.Handler) domain.QualitySummary {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.QualityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return report.Summary
}

func TestRouterServesIngestAndReports(t *testing.T) {
	m := metrics.New()
	handler := newRouter(testConfig(), memory.New(), zap.NewNop(), m)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Retail Analytics API","version":"1.0"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	result := upload(t, handler, header+
		"Westlands,1001,6001000,Bidco Kenya,Soap,Care,Toiletries,Bar Soap,Home,10,100,8,2024-03-01\n")
	assert.Equal(t, 1, result.RowsIngested)
	assert.Equal(t, 1, qualitySummary(t, handler).TotalStoresAnalyzed)

	// A second ingest must invalidate the cached quality report.
	upload(t, handler, header+
		"Kilimani,1002,6001001,Bidco Kenya,Soap,Care,Toiletries,Bar Soap,Home,4,40,10,2024-03-02\n")
	assert.Equal(t, 2, qualitySummary(t, handler).TotalStoresAnalyzed)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "retail_ingest_rows_received_total 2")
	assert.Contains(t, rec.Body.String(), `route="/api/ingest"`)
}

func TestRouterAppliesCORS(t *testing.T) {
	handler := newRouter(testConfig(), memory.New(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/quality", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(t.Context(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	count, err := store.CountSales(t.Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}
