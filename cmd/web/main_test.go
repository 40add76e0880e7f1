package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"ecommerce-dashboard/internal/models"
	"ecommerce-dashboard/internal/server"
	"ecommerce-dashboard/internal/services"
)

const testTitle = "MY E-Commerce Dashboard!"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Test helper to create analytics with test data
func newTestAnalytics() *services.Analytics {
	score := func(v int) *int { return &v }

	a := services.NewAnalytics(services.WithLogger(testLogger()))
	a.SetData([]models.Order{
		{
			OrderID:       "o1",
			CustomerID:    "customer-1",
			SellerID:      "seller-1",
			ApprovedAt:    time.Date(2017, 6, 1, 9, 0, 0, 0, time.UTC),
			Category:      "health_beauty",
			PaymentType:   "credit_card",
			PaymentValue:  decimal.NewNullDecimal(decimal.RequireFromString("89.90")),
			ReviewScore:   score(5),
			CustomerState: "SP",
			SellerState:   "SP",
		},
		{
			OrderID:       "o2",
			CustomerID:    "customer-2",
			SellerID:      "seller-2",
			ApprovedAt:    time.Date(2017, 6, 3, 14, 0, 0, 0, time.UTC),
			Category:      "watches_gifts",
			PaymentType:   "boleto",
			PaymentValue:  decimal.NewNullDecimal(decimal.RequireFromString("150")),
			ReviewScore:   score(4),
			CustomerState: "MG",
			SellerState:   "PR",
		},
		{
			OrderID:       "o3",
			CustomerID:    "customer-1",
			SellerID:      "seller-2",
			ApprovedAt:    time.Date(2017, 6, 4, 18, 0, 0, 0, time.UTC),
			Category:      "health_beauty",
			PaymentType:   "voucher",
			PaymentValue:  decimal.NewNullDecimal(decimal.RequireFromString("20")),
			ReviewScore:   score(2),
			CustomerState: "SP",
			SellerState:   "PR",
		},
	})
	return a
}

func newTestServer(analytics *services.Analytics) *server.Server {
	logger := testLogger()
	templateHandlers := &server.TemplateHandlers{Dashboard: dashboardPage(analytics, testTitle, logger)}
	return server.NewServer(analytics, logger, templateHandlers)
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv := newTestServer(newTestAnalytics())

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/dashboard", http.StatusOK, "application/json"},
		{"/api/summary?start=2017-06-01&end=2017-06-03", http.StatusOK, "application/json"},
		{"/api/daily-orders", http.StatusOK, "application/json"},
		{"/api/products/performance", http.StatusOK, "application/json"},
		{"/api/rfm", http.StatusOK, "application/json"},
		{"/api/geo/customers", http.StatusOK, "application/json"},
		{"/charts/review-scores", http.StatusOK, "image/svg+xml"},
		{"/api/export", http.StatusOK, "spreadsheetml"},
		{"/health", http.StatusOK, "application/json"},
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

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

// Test JSON API responses
func TestServer_JSONResponse(t *testing.T) {
	srv := newTestServer(newTestAnalytics())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/products/performance", nil)
	srv.ServeHTTP(w, r)

	var response struct {
		Success bool                      `json:"success"`
		Data    models.ProductPerformance `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if !response.Success {
		t.Error("expected success=true in response")
	}
	if len(response.Data.Best) == 0 {
		t.Fatal("expected best performing products")
	}
	if got := response.Data.Best[0]; got.Category != "health_beauty" || got.TotalSold != 2 {
		t.Errorf("best product = %+v, want health_beauty with 2 sold", got)
	}
}

func TestServer_InvalidRange(t *testing.T) {
	srv := newTestServer(newTestAnalytics())

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/summary?start=2017-06-04&end=2017-06-01", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "VALIDATION_ERROR") {
		t.Errorf("body should carry a validation error, got %s", w.Body.String())
	}
}

// Test Server-Sent Events route
func TestServer_SSERoute(t *testing.T) {
	srv := newTestServer(newTestAnalytics())

	w := httptest.NewRecorder()
	signals := url.QueryEscape(`{"start":"2017-06-01","end":"2017-06-04"}`)
	r := httptest.NewRequest("GET", "/sse/dashboard?datastar="+signals, nil)
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
	}
	if !strings.Contains(w.Body.String(), `"total_orders":3`) {
		t.Error("stream should patch the summary signals")
	}
}

// Test health endpoint
func TestServer_HandleHealth(t *testing.T) {
	tests := []struct {
		name      string
		analytics *services.Analytics
		status    string
	}{
		{"loaded", newTestAnalytics(), "healthy"},
		{"empty", services.NewAnalytics(), "loading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestServer(tt.analytics).ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

			var response struct {
				Success bool              `json:"success"`
				Data    map[string]string `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode health JSON: %v", err)
			}
			if !response.Success {
				t.Error("expected success=true in response")
			}
			if response.Data["status"] != tt.status {
				t.Errorf("health status = %q, want %q", response.Data["status"], tt.status)
			}
			if response.Data["timestamp"] == "" {
				t.Error("health response should include timestamp")
			}
		})
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestServer(newTestAnalytics())

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/summary", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/sse/dashboard", http.StatusMethodNotAllowed},
		{"GET", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test dashboard page rendering
func TestDashboardPage(t *testing.T) {
	w := httptest.NewRecorder()
	dashboardPage(newTestAnalytics(), testTitle, testLogger())(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("cache-control = %q, want %q", cc, cacheMaxAge)
	}

	body := w.Body.String()
	expectedComponents := []string{
		testTitle,
		"Daily Orders",
		"Best and Worst Performing Product",
		"Our Ratings by Customers",
		"Payment Distribution",
		"Our Customers and Sellers",
		"Customer and Seller Geolocation Distribution",
		"Best Customer Based on RFM Parameters",
		`min="2017-06-01"`,
		`max="2017-06-04"`,
	}

	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}

func TestDashboardPage_NoData(t *testing.T) {
	w := httptest.NewRecorder()
	dashboardPage(services.NewAnalytics(), testTitle, testLogger())(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "No data loaded.") {
		t.Error("page should explain that no data is loaded")
	}
}

func TestRunExport(t *testing.T) {
	dir := t.TempDir()
	csvFile := filepath.Join(dir, "orders.csv")
	data := "order_id,customer_id,seller_id,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date,product_category_name_english,payment_type,payment_value,review_score,customer_state,seller_state,geolocation_lat_customer,geolocation_lng_customer,geolocation_lat_seller,geolocation_lng_seller\n" +
		"o1,c1,s1,2017-01-01 10:00:00,,,,toys,credit_card,100.50,5,SP,SP,-23.5,-46.6,-23.4,-46.5\n" +
		"o2,c2,s1,2017-01-03 09:30:00,,,,toys,boleto,50.00,3,RJ,SP,-22.9,-43.2,-23.4,-46.5\n"
	if err := os.WriteFile(csvFile, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	t.Setenv("CSV_SNAPSHOT_DIR", filepath.Join(dir, "snapshots"))
	t.Setenv("LOG_LEVEL", "error")

	out := filepath.Join(dir, "dashboard.xlsx")
	cfgPath, csvPath = "", csvFile
	exportStart, exportEnd, exportOut = "2017-01-01", "2017-01-02", out
	t.Cleanup(func() {
		csvPath, exportStart, exportEnd, exportOut = "", "", "", ""
	})

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	if err := runExport(cmd, nil); err != nil {
		t.Fatalf("runExport() failed: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	orders, err := f.GetCellValue("Summary", "B4")
	if err != nil {
		t.Fatalf("failed to read summary: %v", err)
	}
	if orders != "1" {
		t.Errorf("summary orders = %q, want 1", orders)
	}
}

func TestRunExport_InvalidRange(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CSV_SNAPSHOT_DIR", filepath.Join(dir, "snapshots"))
	t.Setenv("LOG_LEVEL", "error")

	csvFile := filepath.Join(dir, "orders.csv")
	data := "order_id,customer_id,seller_id,order_approved_at,product_category_name_english,payment_type,payment_value,review_score,customer_state,seller_state\n" +
		"o1,c1,s1,2017-01-01 10:00:00,toys,credit_card,100.50,5,SP,SP\n"
	if err := os.WriteFile(csvFile, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	cfgPath, csvPath = "", csvFile
	exportStart, exportEnd, exportOut = "2017-01-05", "2017-01-01", filepath.Join(dir, "out.xlsx")
	t.Cleanup(func() {
		csvPath, exportStart, exportEnd, exportOut = "", "", "", ""
	})

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	err := runExport(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "end date must not be before start date") {
		t.Errorf("runExport() error = %v, want range validation error", err)
	}
}
