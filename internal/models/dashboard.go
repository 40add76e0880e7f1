package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// DateRange selects orders by approval day. Both ends are inclusive.
type DateRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtefield=Start"`
}

// Contains reports whether t falls on a day between Start and End.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(r.Start) && t.Before(r.End.AddDate(0, 0, 1))
}

// Key identifies the range in cache keys and URLs.
func (r DateRange) Key() string {
	return r.Start.Format(dayLayout) + "_" + r.End.Format(dayLayout)
}

func (r DateRange) StartString() string { return r.Start.Format(dayLayout) }
func (r DateRange) EndString() string   { return r.End.Format(dayLayout) }

type Summary struct {
	TotalOrders      int             `json:"total_orders"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	FormattedRevenue string          `json:"formatted_revenue"`
}

type DailyOrders struct {
	Date       time.Time       `json:"date"`
	OrderCount int             `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type CategoryOrders struct {
	Category    string `json:"category"`
	TotalOrders int    `json:"total_orders"`
}

type ProductSales struct {
	Category  string `json:"category"`
	TotalSold int    `json:"total_sold"`
}

type ProductPerformance struct {
	Best  []ProductSales `json:"best"`
	Worst []ProductSales `json:"worst"`
}

type ReviewScore struct {
	Score   int     `json:"score"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type PaymentMethod struct {
	PaymentType string `json:"payment_type"`
	Count       int    `json:"count"`
}

type StateDistribution struct {
	State         string `json:"state"`
	CustomerCount int    `json:"customer_count"`
	SellerCount   int    `json:"seller_count"`
}

type StateBreakdown struct {
	States       []StateDistribution `json:"states"`
	TopCustomers []StateDistribution `json:"top_customers"`
	TopSellers   []StateDistribution `json:"top_sellers"`
}

type RFMEntry struct {
	CustomerID string          `json:"customer_id"`
	ShortID    string          `json:"short_customer_id"`
	Recency    int             `json:"recency"`
	Frequency  int             `json:"frequency"`
	Monetary   decimal.Decimal `json:"monetary"`
}

type RFMSummary struct {
	Customers         int             `json:"customers"`
	AvgRecency        float64         `json:"avg_recency"`
	AvgFrequency      float64         `json:"avg_frequency"`
	AvgMonetary       decimal.Decimal `json:"avg_monetary"`
	FormattedMonetary string          `json:"formatted_monetary"`
	ByRecency         []RFMEntry      `json:"by_recency"`
	ByFrequency       []RFMEntry      `json:"by_frequency"`
	ByMonetary        []RFMEntry      `json:"by_monetary"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type GeoCluster struct {
	GeoPoint
	Count int `json:"count"`
}

// GeoDistribution is empty with Error set when the dataset lacks the
// geolocation columns.
type GeoDistribution struct {
	Available bool         `json:"available"`
	Error     string       `json:"error,omitempty"`
	Center    GeoPoint     `json:"center"`
	Points    int          `json:"points"`
	Clusters  []GeoCluster `json:"clusters"`
}

type Dashboard struct {
	Range           DateRange          `json:"range"`
	RecentDate      time.Time          `json:"recent_date"`
	Summary         Summary            `json:"summary"`
	DailyOrders     []DailyOrders      `json:"daily_orders"`
	CategoryRevenue []CategoryRevenue  `json:"category_revenue"`
	CategoryOrders  []CategoryOrders   `json:"category_orders"`
	Products        ProductPerformance `json:"products"`
	Reviews         []ReviewScore      `json:"reviews"`
	Payments        []PaymentMethod    `json:"payments"`
	States          StateBreakdown     `json:"states"`
	RFM             RFMSummary         `json:"rfm"`
	CustomerGeo     GeoDistribution    `json:"customer_geo"`
	SellerGeo       GeoDistribution    `json:"seller_geo"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
