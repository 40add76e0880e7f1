// Package charts renders dashboard views as standalone SVG documents.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ecommerce-dashboard/internal/models"
)

const (
	DailyOrders    = "daily-orders"
	BestProducts   = "best-products"
	WorstProducts  = "worst-products"
	ReviewScores   = "review-scores"
	PaymentMethods = "payment-methods"
	CustomerStates = "customer-states"
	SellerStates   = "seller-states"
	CustomerMap    = "customer-map"
	SellerMap      = "seller-map"
	RFMRecency     = "rfm-recency"
	RFMFrequency   = "rfm-frequency"
	RFMMonetary    = "rfm-monetary"
)

const (
	width  = 640
	height = 360
)

var ErrUnknownChart = errors.New("unknown chart")

// Palette shared by every chart.
var palette = []drawing.Color{
	drawing.ColorFromHex("3A6D8C"),
	drawing.ColorFromHex("8EACCD"),
	drawing.ColorFromHex("D2E0FB"),
	drawing.ColorFromHex("C4D7FF"),
	drawing.ColorFromHex("6A9AB0"),
}

type renderer func(io.Writer, *models.Dashboard) error

var renderers = map[string]renderer{
	DailyOrders:    renderDailyOrders,
	BestProducts:   renderBestProducts,
	WorstProducts:  renderWorstProducts,
	ReviewScores:   renderReviewScores,
	PaymentMethods: renderPaymentMethods,
	CustomerStates: renderCustomerStates,
	SellerStates:   renderSellerStates,
	CustomerMap:    renderCustomerMap,
	SellerMap:      renderSellerMap,
	RFMRecency:     renderRFMRecency,
	RFMFrequency:   renderRFMFrequency,
	RFMMonetary:    renderRFMMonetary,
}

// Names lists every chart in a stable order.
func Names() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func Exists(name string) bool {
	_, ok := renderers[name]
	return ok
}

// Render writes the named chart for dash as SVG.
func Render(w io.Writer, name string, dash *models.Dashboard) error {
	render, ok := renderers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChart, name)
	}
	return render(w, dash)
}

func renderDailyOrders(w io.Writer, dash *models.Dashboard) error {
	const title = "Daily Orders"
	if len(dash.DailyOrders) == 0 {
		return placeholder(w, title, "No orders in the selected range")
	}

	xs := make([]time.Time, len(dash.DailyOrders))
	ys := make([]float64, len(dash.DailyOrders))
	peak := 0.0
	for i, d := range dash.DailyOrders {
		xs[i] = d.Date
		ys[i] = float64(d.OrderCount)
		peak = max(peak, ys[i])
	}
	// A single day needs a second x value to form a range.
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}

	c := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: "Orders", Range: yRange(peak)},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Orders",
				Style: chart.Style{
					StrokeColor: palette[0],
					StrokeWidth: 2,
					DotColor:    palette[0],
					DotWidth:    3,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return renderBuffered(w, title, c.Render)
}

func renderBestProducts(w io.Writer, dash *models.Dashboard) error {
	return barChart(w, "Best Performing Product", salesBars(dash.Products.Best))
}

func renderWorstProducts(w io.Writer, dash *models.Dashboard) error {
	return barChart(w, "Worst Performing Product", salesBars(dash.Products.Worst))
}

func salesBars(sales []models.ProductSales) []chart.Value {
	bars := make([]chart.Value, len(sales))
	for i, s := range sales {
		bars[i] = chart.Value{Label: s.Category, Value: float64(s.TotalSold)}
	}
	return bars
}

func renderReviewScores(w io.Writer, dash *models.Dashboard) error {
	const title = "Review Scores"
	values := make([]chart.Value, 0, len(dash.Reviews))
	for _, r := range dash.Reviews {
		if r.Count == 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%d (%.1f%%)", r.Score, r.Percent),
			Value: float64(r.Count),
		})
	}
	if len(values) == 0 {
		return placeholder(w, title, "No reviews in the selected range")
	}
	colorize(values)

	pie := chart.PieChart{
		Title:  title,
		Width:  height,
		Height: height,
		Values: values,
	}
	return renderBuffered(w, title, pie.Render)
}

func renderPaymentMethods(w io.Writer, dash *models.Dashboard) error {
	bars := make([]chart.Value, len(dash.Payments))
	for i, p := range dash.Payments {
		bars[i] = chart.Value{Label: p.PaymentType, Value: float64(p.Count)}
	}
	return barChart(w, "Payment Methods", bars)
}

func renderCustomerStates(w io.Writer, dash *models.Dashboard) error {
	bars := make([]chart.Value, len(dash.States.TopCustomers))
	for i, s := range dash.States.TopCustomers {
		bars[i] = chart.Value{Label: s.State, Value: float64(s.CustomerCount)}
	}
	return barChart(w, "Customers by State", bars)
}

func renderSellerStates(w io.Writer, dash *models.Dashboard) error {
	bars := make([]chart.Value, len(dash.States.TopSellers))
	for i, s := range dash.States.TopSellers {
		bars[i] = chart.Value{Label: s.State, Value: float64(s.SellerCount)}
	}
	return barChart(w, "Sellers by State", bars)
}

func renderRFMRecency(w io.Writer, dash *models.Dashboard) error {
	return barChart(w, "By Recency (days)", rfmBars(dash.RFM.ByRecency, func(e models.RFMEntry) float64 {
		return float64(e.Recency)
	}))
}

func renderRFMFrequency(w io.Writer, dash *models.Dashboard) error {
	return barChart(w, "By Frequency", rfmBars(dash.RFM.ByFrequency, func(e models.RFMEntry) float64 {
		return float64(e.Frequency)
	}))
}

func renderRFMMonetary(w io.Writer, dash *models.Dashboard) error {
	return barChart(w, "By Monetary", rfmBars(dash.RFM.ByMonetary, func(e models.RFMEntry) float64 {
		return e.Monetary.InexactFloat64()
	}))
}

func rfmBars(entries []models.RFMEntry, value func(models.RFMEntry) float64) []chart.Value {
	bars := make([]chart.Value, len(entries))
	for i, e := range entries {
		bars[i] = chart.Value{Label: e.ShortID, Value: value(e)}
	}
	return bars
}

func barChart(w io.Writer, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return placeholder(w, title, "No data in the selected range")
	}
	colorize(bars)

	peak := 0.0
	for _, b := range bars {
		peak = max(peak, b.Value)
	}

	c := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   min(80, (width-120)/len(bars)),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Range: yRange(peak)},
		Bars:       bars,
	}
	return renderBuffered(w, title, c.Render)
}

// yRange pins the axis at zero with headroom above the tallest value.
func yRange(peak float64) *chart.ContinuousRange {
	if peak <= 0 {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	return &chart.ContinuousRange{Min: 0, Max: peak * 1.1}
}

func colorize(values []chart.Value) {
	for i := range values {
		c := palette[i%len(palette)]
		values[i].Style = chart.Style{FillColor: c, StrokeColor: c}
	}
}

// renderBuffered renders into memory so that a failed chart can still be
// replaced by a placeholder.
func renderBuffered(w io.Writer, title string, render func(chart.RendererProvider, io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(chart.SVG, &buf); err != nil {
		return placeholder(w, title, "Chart unavailable")
	}
	_, err := buf.WriteTo(w)
	return err
}
