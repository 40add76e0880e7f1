// Package templates holds the server-rendered dashboard markup.
package templates

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"ecommerce-dashboard/internal/models"
)

// PanelsID is the element the SSE stream replaces on every range change.
const PanelsID = "panels"

// RangeErrorID holds validation messages for the date inputs.
const RangeErrorID = "range-error"

// Rows shown in the category tables.
const topCategories = 10

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

// Page is everything the full dashboard document needs.
type Page struct {
	Title     string
	Bounds    models.DateRange
	Dashboard *models.Dashboard
}

// Dashboard renders the whole document with the initial panels inline.
func Dashboard(page Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		start, end := page.Bounds.StartString(), page.Bounds.EndString()

		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(page.Title)
		p.raw(`</title><script type="module" src="` + datastarScript + `"></script>`)
		p.raw(`<style>` + pageStyle + `</style></head>`)

		p.raw(`<body data-signals="{start: '`)
		p.text(start)
		p.raw(`', end: '`)
		p.text(end)
		p.raw(`', summary: {}}"><h1>`)
		p.text(page.Title)
		p.raw(`</h1><hr class="title"><aside>`)
		p.component(ctx, dateInput("Start date", "data-bind-start", page.Bounds))
		p.component(ctx, dateInput("End date", "data-bind-end", page.Bounds))
		p.raw(`<a href="`)
		p.url(templ.URL("/api/export?" + rangeQuery(page.Bounds)))
		p.raw(`" data-attr-href="'/api/export?start=' + $start + '&end=' + $end">Download workbook</a>`)
		p.raw(`<p id="` + RangeErrorID + `" class="error"></p></aside>`)
		p.component(ctx, Panels(page.Dashboard))
		p.raw(`<footer>Copyright (c) risdew 2024</footer></body></html>`)
		return p.err
	})
}

// Panels renders the range-dependent part of the page.
func Panels(dash *models.Dashboard) templ.Component {
	if dash == nil {
		return templ.Raw(`<div id="` + PanelsID + `"><p class="empty">No data loaded.</p></div>`)
	}

	q := rangeQuery(dash.Range)
	return wrap(`<div id="`+PanelsID+`">`, `</div>`,
		section("Daily Orders",
			grid(
				metric("Total orders", strconv.Itoa(dash.Summary.TotalOrders)),
				metric("Total Revenue", dash.Summary.FormattedRevenue),
			),
			chart("daily-orders", q, "Daily orders"),
		),
		section("Best and Worst Performing Product",
			grid(
				chart("best-products", q, "Best performing product"),
				chart("worst-products", q, "Worst performing product"),
			),
			grid(
				categoryRevenueTable(dash.CategoryRevenue),
				categoryOrdersTable(dash.CategoryOrders),
			),
		),
		section("Our Ratings by Customers", chart("review-scores", q, "Review scores")),
		section("Payment Distribution", chart("payment-methods", q, "Payment methods")),
		section("Our Customers and Sellers",
			grid(
				chart("customer-states", q, "Customers by state"),
				chart("seller-states", q, "Sellers by state"),
			),
		),
		section("Customer and Seller Geolocation Distribution",
			grid(
				geoPanel("Distribution of Customers", dash.CustomerGeo, chart("customer-map", q, "Customer locations")),
				geoPanel("Distribution of Sellers", dash.SellerGeo, chart("seller-map", q, "Seller locations")),
			),
		),
		section("Best Customer Based on RFM Parameters",
			grid(
				metric("Average Recency (days)", formatFloat(dash.RFM.AvgRecency)),
				metric("Average Frequency", formatFloat(dash.RFM.AvgFrequency)),
				metric("Average Monetary", dash.RFM.FormattedMonetary),
			),
			grid(
				chart("rfm-recency", q, "Customers by recency"),
				chart("rfm-frequency", q, "Customers by frequency"),
				chart("rfm-monetary", q, "Customers by monetary value"),
			),
		),
	)
}

func dateInput(label, bind string, bounds models.DateRange) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<label>`)
		p.text(label)
		p.raw(`<input type="date" min="`)
		p.text(bounds.StartString())
		p.raw(`" max="`)
		p.text(bounds.EndString())
		p.raw(`" ` + bind + ` data-on-change="@get('/sse/dashboard')"></label>`)
		return p.err
	})
}

func section(title string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<section><h2>`)
		p.text(title)
		p.raw(`</h2>`)
		p.component(ctx, templ.Join(body...))
		p.raw(`</section>`)
		return p.err
	})
}

func grid(items ...templ.Component) templ.Component {
	return wrap(`<div class="grid">`, `</div>`, items...)
}

func wrap(open, close string, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(open)
		p.component(ctx, templ.Join(children...))
		p.raw(close)
		return p.err
	})
}

func metric(label, value string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="metric"><span>`)
		p.text(label)
		p.raw(`</span><strong>`)
		p.text(value)
		p.raw(`</strong></div>`)
		return p.err
	})
}

func chart(name, query, alt string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<img src="`)
		p.url(templ.URL("/charts/" + name + "?" + query))
		p.raw(`" alt="`)
		p.text(alt)
		p.raw(`">`)
		return p.err
	})
}

func geoPanel(title string, geo models.GeoDistribution, image templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div><h3>`)
		p.text(title)
		p.raw(`</h3>`)
		if geo.Available {
			p.component(ctx, image)
		} else {
			p.raw(`<p class="error">`)
			p.text(geo.Error)
			p.raw(`</p>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

func categoryRevenueTable(rows []models.CategoryRevenue) templ.Component {
	cells := make([][2]string, 0, min(len(rows), topCategories))
	for _, r := range rows[:min(len(rows), topCategories)] {
		cells = append(cells, [2]string{r.Category, r.Revenue.StringFixed(2)})
	}
	return rankTable("Revenue", cells)
}

func categoryOrdersTable(rows []models.CategoryOrders) templ.Component {
	cells := make([][2]string, 0, min(len(rows), topCategories))
	for _, r := range rows[:min(len(rows), topCategories)] {
		cells = append(cells, [2]string{r.Category, strconv.Itoa(r.TotalOrders)})
	}
	return rankTable("Orders", cells)
}

// rankTable renders numbered category rows with one value column.
func rankTable(column string, rows [][2]string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<table><thead><tr><th>#</th><th>Category</th><th>`)
		p.text(column)
		p.raw(`</th></tr></thead><tbody>`)
		for i, row := range rows {
			p.raw(`<tr><td>` + strconv.Itoa(i+1) + `</td><td>`)
			p.text(row[0])
			p.raw(`</td><td>`)
			p.text(row[1])
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
		return p.err
	})
}

func rangeQuery(rng models.DateRange) string {
	q := url.Values{}
	q.Set("start", rng.StartString())
	q.Set("end", rng.EndString())
	return q.Encode()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// printer writes markup and stops at the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) url(u templ.SafeURL) {
	p.text(string(u))
}

func (p *printer) component(ctx context.Context, c templ.Component) {
	if p.err == nil {
		p.err = c.Render(ctx, p.w)
	}
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0 auto;max-width:1320px;padding:1rem 2rem;color:#1b2a38}
h1{text-align:center}
hr.title{border:none;height:2px;background-color:black}
aside{display:flex;gap:1rem;align-items:end;margin-bottom:1rem}
.grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(300px,1fr));gap:1rem}
.metric{background:#F7F9FC;border-radius:8px;padding:.75rem 1rem}
.metric span{display:block;font-size:.85rem;color:#6A9AB0}
.metric strong{font-size:1.6rem}
img{max-width:100%}
table{border-collapse:collapse;width:100%}
th,td{padding:.3rem .5rem;border-bottom:1px solid #D2E0FB;text-align:left}
.error{color:#c0392b}
footer{color:#777;font-size:.8rem;margin-top:2rem}`
