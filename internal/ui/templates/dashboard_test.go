package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-dashboard/internal/models"
)

func testDashboard() *models.Dashboard {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Dashboard{
		Range:   models.DateRange{Start: start, End: start.AddDate(0, 1, 0)},
		Summary: models.Summary{TotalOrders: 42, TotalRevenue: decimal.NewFromInt(1234), FormattedRevenue: "R$ 1.234,00"},
		CategoryRevenue: []models.CategoryRevenue{
			{Category: "toys", Revenue: decimal.RequireFromString("99.5")},
		},
		CategoryOrders: []models.CategoryOrders{{Category: "toys", TotalOrders: 7}},
		RFM:            models.RFMSummary{AvgRecency: 12.5, AvgFrequency: 1.02, FormattedMonetary: "R$ 150,00"},
		CustomerGeo:    models.GeoDistribution{Available: true},
		SellerGeo:      models.GeoDistribution{Error: "Missing seller geolocation data."},
	}
}

func TestPanels(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Panels(testDashboard()).Render(context.Background(), &sb))
	html := sb.String()

	assert.True(t, strings.HasPrefix(html, `<div id="panels">`))
	assert.Contains(t, html, "R$ 1.234,00")
	assert.Contains(t, html, "<strong>42</strong>")
	assert.Contains(t, html, "/charts/daily-orders?end=2017-02-01&amp;start=2017-01-01")
	assert.Contains(t, html, "/charts/customer-map?")
	assert.NotContains(t, html, "/charts/seller-map?")
	assert.Contains(t, html, "Missing seller geolocation data.")
	assert.Contains(t, html, "99.50")
	assert.Contains(t, html, "Average Recency (days)")
}

func TestPanels_NilDashboard(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Panels(nil).Render(context.Background(), &sb))
	assert.Contains(t, sb.String(), `id="panels"`)
}

func TestDashboard(t *testing.T) {
	dash := testDashboard()
	page := Page{Title: "MY E-Commerce Dashboard!", Bounds: dash.Range, Dashboard: dash}

	var sb strings.Builder
	require.NoError(t, Dashboard(page).Render(context.Background(), &sb))
	html := sb.String()

	assert.Contains(t, html, "<title>MY E-Commerce Dashboard!</title>")
	assert.Contains(t, html, `min="2017-01-01"`)
	assert.Contains(t, html, `max="2017-02-01"`)
	assert.Contains(t, html, "@get('/sse/dashboard')")
	assert.Contains(t, html, `<div id="panels">`)
}

func TestPanels_EscapesText(t *testing.T) {
	dash := testDashboard()
	dash.CategoryRevenue = []models.CategoryRevenue{{Category: `<script>alert("x")</script>`, Revenue: decimal.NewFromInt(1)}}

	var sb strings.Builder
	require.NoError(t, Panels(dash).Render(context.Background(), &sb))
	html := sb.String()

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestPanels_LimitsCategoryRows(t *testing.T) {
	dash := testDashboard()
	dash.CategoryOrders = nil
	for i := range 12 {
		dash.CategoryOrders = append(dash.CategoryOrders, models.CategoryOrders{Category: "cat", TotalOrders: i})
	}

	var sb strings.Builder
	require.NoError(t, Panels(dash).Render(context.Background(), &sb))
	html := sb.String()

	assert.Contains(t, html, "<td>10</td>")
	assert.NotContains(t, html, "<td>11</td>")
	assert.Equal(t, 2, strings.Count(html, "</table>"))
}
