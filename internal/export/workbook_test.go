package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ecommerce-dashboard/internal/models"
)

func testDashboard() *models.Dashboard {
	start := time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	return &models.Dashboard{
		Range:   models.DateRange{Start: start, End: start.AddDate(0, 0, 1)},
		Summary: models.Summary{TotalOrders: 3, TotalRevenue: decimal.RequireFromString("250.75")},
		DailyOrders: []models.DailyOrders{
			{Date: start, OrderCount: 2, Revenue: decimal.NewFromInt(200)},
			{Date: start.AddDate(0, 0, 1), OrderCount: 1, Revenue: decimal.RequireFromString("50.75")},
		},
		CategoryRevenue: []models.CategoryRevenue{{Category: "toys", Revenue: decimal.NewFromInt(200)}},
		CategoryOrders:  []models.CategoryOrders{{Category: "toys", TotalOrders: 2}, {Category: "auto", TotalOrders: 1}},
		Payments:        []models.PaymentMethod{{PaymentType: "credit_card", Count: 3}},
		RFM: models.RFMSummary{
			Customers: 1,
			ByRecency: []models.RFMEntry{{CustomerID: "c1", Recency: 1, Frequency: 3, Monetary: decimal.NewFromInt(250)}},
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testDashboard()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{"Summary", "Daily Orders", "Categories", "Products", "Reviews", "Payments", "States", "RFM"},
		f.GetSheetList())

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Equal(t, []string{"Start date", "2017-03-01"}, rows[1])
	assert.Equal(t, []string{"Total orders", "3"}, rows[3])

	daily, err := f.GetRows("Daily Orders")
	require.NoError(t, err)
	assert.Len(t, daily, 3)
	assert.Equal(t, "2017-03-02", daily[2][0])

	categories, err := f.GetRows("Categories")
	require.NoError(t, err)
	assert.Len(t, categories, 3)
	assert.Equal(t, "auto", categories[2][2])

	rfm, err := f.GetRows("RFM")
	require.NoError(t, err)
	assert.Equal(t, []string{"recency", "c1", "1", "3", "250"}, rfm[1])
}

func TestWrite_EmptyDashboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &models.Dashboard{}))
	assert.NotZero(t, buf.Len())
}

func TestFilename(t *testing.T) {
	rng := models.DateRange{
		Start: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "dashboard_2017-01-01_2017-12-31.xlsx", Filename(rng))
}
