package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"retail-analytics/internal/config"
	"retail-analytics/internal/handlers"
	"retail-analytics/internal/middleware"
	"retail-analytics/internal/services"
	"retail-analytics/internal/store"
)

const salesCSV = `InvoiceNo,InvoiceDate,CustomerID,StockCode,Quantity,UnitPrice
536365,2024-01-05 08:26,17850,85123A,6,2.55
536365,2024-01-05 08:26,17850,71053,6,3.39
536366,2024-01-06 09:01,13047,84406B,8,2.75
536367,2024-01-08 10:15,13047,85123A,2,2.55
536368,2024-02-01 11:30,12583,22633,12,1.85
536369,2024-02-03 12:00,12583,71053,4,3.39
536370,2024-02-10 14:45,15100,84029G,6,3.75
536371,2024-03-01 15:20,15100,85123A,3,2.55
536372,2024-03-02 16:00,17850,22633,10,1.85
536373,2024-03-05 17:10,13748,84406B,1,2.75
`

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
		},
		Upload:   config.UploadConfig{MaxBytes: 1 << 20},
		Analysis: config.DefaultAnalysis(),
	}
}

// newTestHandler returns the full middleware stack over a real analyzer.
// withStore adds a sqlite run ledger in a temp dir.
func newTestHandler(t *testing.T, cfg *config.Config, withStore bool) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	analyzer := services.NewAnalyzer(cfg.Analysis, logger)

	var ledger handlers.RunLedger
	if withStore {
		s, err := store.Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "runs.db"))
		if err != nil {
			t.Fatalf("store.Open() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		ledger = s
	}
	return newHandler(cfg, analyzer, ledger, middleware.NewRateLimiter(cfg.Security), logger)
}

func uploadRequest(t *testing.T, path, filename, content, periodicity string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("periodicity", periodicity)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv := newTestHandler(t, testConfig(), true)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/api/runs", http.StatusOK, "application/json"},
		{"/swagger/doc.json", http.StatusOK, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			// Validate JSON responses
			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}

			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestServer_PredictAndRuns(t *testing.T) {
	srv := newTestHandler(t, testConfig(), true)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "/api/predict", "online_retail.csv", salesCSV, "monthly"))

	if w.Code != http.StatusOK {
		t.Fatalf("predict status = %d, body = %s", w.Code, w.Body.String())
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			RunID string `json:"runId"`
			KPIs  struct {
				TotalRevenue    float64 `json:"totalRevenue"`
				UniqueCustomers int     `json:"uniqueCustomers"`
				Transactions    int     `json:"transactions"`
			} `json:"kpis"`
			Horizon string `json:"horizon"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success || response.Data.RunID == "" {
		t.Fatalf("unexpected response: %+v", response)
	}
	if response.Data.KPIs.TotalRevenue != 149.9 || response.Data.KPIs.UniqueCustomers != 5 || response.Data.KPIs.Transactions != 9 {
		t.Errorf("kpis = %+v", response.Data.KPIs)
	}
	if response.Data.Horizon != "Next 6 months" {
		t.Errorf("horizon = %q", response.Data.Horizon)
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))

	var runs struct {
		Data []store.Run `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs.Data) != 1 {
		t.Fatalf("runs = %+v", runs.Data)
	}
	if run := runs.Data[0]; run.ID != response.Data.RunID || run.FileName != "online_retail.csv" || run.Rows != 10 || run.Status != store.StatusSucceeded {
		t.Errorf("run = %+v", run)
	}
}

func TestServer_PredictSchemaError(t *testing.T) {
	srv := newTestHandler(t, testConfig(), false)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "/api/predict", "notes.csv", "note,author\nhello,me\n", "monthly"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	errObj := response["error"].(map[string]any)
	if errObj["code"] != "SCHEMA_ERROR" {
		t.Errorf("code = %v", errObj["code"])
	}
	if errObj["request_id"] == "" || errObj["request_id"] == nil {
		t.Error("error should carry the request id")
	}
}

func TestServer_UploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxBytes = 256
	srv := newTestHandler(t, cfg, false)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "/api/predict", "big.csv", salesCSV, "monthly"))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// Test Server-Sent Events routes
func TestServer_SSEPredict(t *testing.T) {
	srv := newTestHandler(t, testConfig(), false)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "/sse/predict", "online_retail.csv", salesCSV, "yearly"))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// Check for SSE headers
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
	}

	body := w.Body.String()
	for _, want := range []string{`"report"`, `"horizon":"Next 3 years"`, `id="summary"`, "Analysis complete."} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q", want)
		}
	}
}

func TestServer_RunsDisabled(t *testing.T) {
	srv := newTestHandler(t, testConfig(), false)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestHandler(t, testConfig(), false)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/predict", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"GET", "/sse/predict", http.StatusMethodNotAllowed},
		{"GET", "/api/segments", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	handleDashboard(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, component := range []string{"Retail Analytics", "/sse/predict", "cdn.jsdelivr.net"} {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("cache-control = %q", cc)
	}
}
