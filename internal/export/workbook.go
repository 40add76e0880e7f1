// Package export writes dashboard views to an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ecommerce-dashboard/internal/models"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sheet struct {
	name    string
	headers []string
	rows    [][]any
	widths  []float64
}

// Filename names the workbook after its date range.
func Filename(rng models.DateRange) string {
	return fmt.Sprintf("dashboard_%s.xlsx", rng.Key())
}

// Write renders every view of dash into a workbook and streams it to w.
func Write(w io.Writer, dash *models.Dashboard) error {
	f, err := Workbook(dash)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook builds the workbook in memory. The caller closes it.
func Workbook(dash *models.Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"3A6D8C"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheets := sheetsFor(dash)
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	header := make([]any, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(s.headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}

	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return err
		}
	}

	return f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func sheetsFor(dash *models.Dashboard) []sheet {
	summary := sheet{
		name:    "Summary",
		headers: []string{"Metric", "Value"},
		widths:  []float64{28, 22},
		rows: [][]any{
			{"Start date", dash.Range.StartString()},
			{"End date", dash.Range.EndString()},
			{"Total orders", dash.Summary.TotalOrders},
			{"Total revenue", dash.Summary.TotalRevenue.InexactFloat64()},
			{"Customers", dash.RFM.Customers},
			{"Average recency (days)", dash.RFM.AvgRecency},
			{"Average frequency", dash.RFM.AvgFrequency},
			{"Average monetary", dash.RFM.AvgMonetary.InexactFloat64()},
		},
	}

	daily := sheet{name: "Daily Orders", headers: []string{"Date", "Orders", "Revenue"}, widths: []float64{14, 10, 14}}
	for _, d := range dash.DailyOrders {
		daily.rows = append(daily.rows, []any{d.Date.Format("2006-01-02"), d.OrderCount, d.Revenue.InexactFloat64()})
	}

	categories := sheet{name: "Categories", headers: []string{"Category", "Revenue", "Category", "Orders"}, widths: []float64{32, 14, 32, 10}}
	for i := range max(len(dash.CategoryRevenue), len(dash.CategoryOrders)) {
		row := []any{nil, nil, nil, nil}
		if i < len(dash.CategoryRevenue) {
			row[0], row[1] = dash.CategoryRevenue[i].Category, dash.CategoryRevenue[i].Revenue.InexactFloat64()
		}
		if i < len(dash.CategoryOrders) {
			row[2], row[3] = dash.CategoryOrders[i].Category, dash.CategoryOrders[i].TotalOrders
		}
		categories.rows = append(categories.rows, row)
	}

	products := sheet{name: "Products", headers: []string{"Rank", "Best", "Sold", "Worst", "Sold"}, widths: []float64{8, 32, 10, 32, 10}}
	for i := range max(len(dash.Products.Best), len(dash.Products.Worst)) {
		row := []any{i + 1, nil, nil, nil, nil}
		if i < len(dash.Products.Best) {
			row[1], row[2] = dash.Products.Best[i].Category, dash.Products.Best[i].TotalSold
		}
		if i < len(dash.Products.Worst) {
			row[3], row[4] = dash.Products.Worst[i].Category, dash.Products.Worst[i].TotalSold
		}
		products.rows = append(products.rows, row)
	}

	reviews := sheet{name: "Reviews", headers: []string{"Score", "Count", "Percent"}, widths: []float64{8, 10, 10}}
	for _, r := range dash.Reviews {
		reviews.rows = append(reviews.rows, []any{r.Score, r.Count, r.Percent})
	}

	payments := sheet{name: "Payments", headers: []string{"Payment type", "Count"}, widths: []float64{18, 10}}
	for _, p := range dash.Payments {
		payments.rows = append(payments.rows, []any{p.PaymentType, p.Count})
	}

	states := sheet{name: "States", headers: []string{"State", "Customers", "Sellers"}, widths: []float64{8, 12, 10}}
	for _, s := range dash.States.States {
		states.rows = append(states.rows, []any{s.State, s.CustomerCount, s.SellerCount})
	}

	rfm := sheet{name: "RFM", headers: []string{"Ranking", "Customer", "Recency", "Frequency", "Monetary"}, widths: []float64{12, 36, 10, 10, 12}}
	for _, group := range []struct {
		label   string
		entries []models.RFMEntry
	}{
		{"recency", dash.RFM.ByRecency},
		{"frequency", dash.RFM.ByFrequency},
		{"monetary", dash.RFM.ByMonetary},
	} {
		for _, e := range group.entries {
			rfm.rows = append(rfm.rows, []any{group.label, e.CustomerID, e.Recency, e.Frequency, e.Monetary.InexactFloat64()})
		}
	}

	return []sheet{summary, daily, categories, products, reviews, payments, states, rfm}
}
