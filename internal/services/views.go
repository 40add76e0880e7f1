package services

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"ecommerce-dashboard/internal/models"
)

const (
	topN       = 5
	shortIDLen = 5
)

type moneyFormatter func(decimal.Decimal) string

func filterOrders(orders []models.Order, rng models.DateRange) []models.Order {
	// orders are sorted by approval time with nulls last, so the range is a
	// contiguous window.
	lo, _ := slices.BinarySearchFunc(orders, rng.Start, func(o models.Order, t time.Time) int {
		if !o.HasApproval() {
			return 1
		}
		return o.ApprovedAt.Compare(t)
	})
	endExclusive := rng.End.AddDate(0, 0, 1)
	hi, _ := slices.BinarySearchFunc(orders, endExclusive, func(o models.Order, t time.Time) int {
		if !o.HasApproval() {
			return 1
		}
		return o.ApprovedAt.Compare(t)
	})
	if hi < lo {
		return nil
	}
	return orders[lo:hi]
}

func buildSummary(orders []models.Order, money moneyFormatter) models.Summary {
	distinct := roaring.New()
	revenue := decimal.Zero
	for _, o := range orders {
		if o.HasOrderID() {
			distinct.Add(o.OrderKey)
		}
		if o.PaymentValue.Valid {
			revenue = revenue.Add(o.PaymentValue.Decimal)
		}
	}
	return models.Summary{
		TotalOrders:      int(distinct.GetCardinality()),
		TotalRevenue:     revenue,
		FormattedRevenue: money(revenue),
	}
}

// truncateDay returns midnight UTC of t's UTC calendar day, so keys built
// from instants in different zones compare equal.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// buildDailyOrders resamples by calendar day. Days without orders between
// the first and last order are emitted with zero counts.
func buildDailyOrders(orders []models.Order) []models.DailyOrders {
	if len(orders) == 0 {
		return []models.DailyOrders{}
	}

	type bucket struct {
		orders  *roaring.Bitmap
		revenue decimal.Decimal
	}
	buckets := make(map[time.Time]*bucket)
	first, last := truncateDay(orders[0].ApprovedAt), truncateDay(orders[0].ApprovedAt)

	for _, o := range orders {
		day := truncateDay(o.ApprovedAt)
		b := buckets[day]
		if b == nil {
			b = &bucket{orders: roaring.New(), revenue: decimal.Zero}
			buckets[day] = b
		}
		if o.HasOrderID() {
			b.orders.Add(o.OrderKey)
		}
		if o.PaymentValue.Valid {
			b.revenue = b.revenue.Add(o.PaymentValue.Decimal)
		}
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	result := make([]models.DailyOrders, 0, int(last.Sub(first).Hours()/24)+1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		entry := models.DailyOrders{Date: day, Revenue: decimal.Zero}
		if b, ok := buckets[day]; ok {
			entry.OrderCount = int(b.orders.GetCardinality())
			entry.Revenue = b.revenue
		}
		result = append(result, entry)
	}
	return result
}

func buildCategoryRevenue(orders []models.Order) []models.CategoryRevenue {
	sums := make(map[string]decimal.Decimal)
	for _, o := range orders {
		if o.Category == "" || !o.PaymentValue.Valid {
			continue
		}
		sums[o.Category] = sums[o.Category].Add(o.PaymentValue.Decimal)
	}

	result := make([]models.CategoryRevenue, 0, len(sums))
	for category, revenue := range sums {
		result = append(result, models.CategoryRevenue{Category: category, Revenue: revenue})
	}
	slices.SortFunc(result, func(a, b models.CategoryRevenue) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return result
}

func buildCategoryOrders(orders []models.Order) []models.CategoryOrders {
	groups := make(map[string]*roaring.Bitmap)
	for _, o := range orders {
		if o.Category == "" {
			continue
		}
		bm := groups[o.Category]
		if bm == nil {
			bm = roaring.New()
			groups[o.Category] = bm
		}
		if o.HasOrderID() {
			bm.Add(o.OrderKey)
		}
	}

	result := make([]models.CategoryOrders, 0, len(groups))
	for category, bm := range groups {
		result = append(result, models.CategoryOrders{Category: category, TotalOrders: int(bm.GetCardinality())})
	}
	slices.SortFunc(result, func(a, b models.CategoryOrders) int {
		if c := cmp.Compare(b.TotalOrders, a.TotalOrders); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return result
}

// countBy counts rows per non-empty key, ordered by count descending.
func countBy(orders []models.Order, key func(models.Order) (string, bool)) []keyCount {
	counts := make(map[string]int)
	for _, o := range orders {
		if k, ok := key(o); ok {
			counts[k]++
		}
	}

	result := make([]keyCount, 0, len(counts))
	for k, n := range counts {
		result = append(result, keyCount{key: k, count: n})
	}
	slices.SortFunc(result, func(a, b keyCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return result
}

type keyCount struct {
	key   string
	count int
}

func buildProductPerformance(orders []models.Order) models.ProductPerformance {
	counts := countBy(orders, func(o models.Order) (string, bool) {
		return o.Category, o.Category != ""
	})

	sales := make([]models.ProductSales, len(counts))
	for i, kc := range counts {
		sales[i] = models.ProductSales{Category: kc.key, TotalSold: kc.count}
	}

	worst := slices.Clone(sales)
	slices.SortStableFunc(worst, func(a, b models.ProductSales) int {
		return cmp.Compare(a.TotalSold, b.TotalSold)
	})

	return models.ProductPerformance{
		Best:  head(sales, topN),
		Worst: head(worst, topN),
	}
}

func buildReviewScores(orders []models.Order) []models.ReviewScore {
	counts := make(map[int]int)
	total := 0
	for _, o := range orders {
		if o.ReviewScore == nil {
			continue
		}
		counts[*o.ReviewScore]++
		total++
	}

	result := make([]models.ReviewScore, 0, len(counts))
	for score, n := range counts {
		result = append(result, models.ReviewScore{
			Score:   score,
			Count:   n,
			Percent: math.Round(float64(n)/float64(total)*1000) / 10,
		})
	}
	slices.SortFunc(result, func(a, b models.ReviewScore) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(b.Score, a.Score)
	})
	return result
}

func buildPaymentMethods(orders []models.Order) []models.PaymentMethod {
	counts := countBy(orders, func(o models.Order) (string, bool) {
		return o.PaymentType, o.PaymentType != ""
	})

	result := make([]models.PaymentMethod, len(counts))
	for i, kc := range counts {
		result[i] = models.PaymentMethod{PaymentType: kc.key, Count: kc.count}
	}
	return result
}

func buildStates(orders []models.Order) models.StateBreakdown {
	type group struct {
		customers *roaring.Bitmap
		sellers   *roaring.Bitmap
	}
	groups := make(map[string]*group)
	for _, o := range orders {
		if o.CustomerState == "" {
			continue
		}
		g := groups[o.CustomerState]
		if g == nil {
			g = &group{customers: roaring.New(), sellers: roaring.New()}
			groups[o.CustomerState] = g
		}
		if o.HasCustomerID() {
			g.customers.Add(o.CustomerKey)
		}
		if o.HasSellerID() {
			g.sellers.Add(o.SellerKey)
		}
	}

	states := make([]models.StateDistribution, 0, len(groups))
	for state, g := range groups {
		states = append(states, models.StateDistribution{
			State:         state,
			CustomerCount: int(g.customers.GetCardinality()),
			SellerCount:   int(g.sellers.GetCardinality()),
		})
	}
	slices.SortFunc(states, func(a, b models.StateDistribution) int {
		return cmp.Compare(a.State, b.State)
	})

	byCustomers := slices.Clone(states)
	slices.SortStableFunc(byCustomers, func(a, b models.StateDistribution) int {
		return cmp.Compare(b.CustomerCount, a.CustomerCount)
	})
	bySellers := slices.Clone(states)
	slices.SortStableFunc(bySellers, func(a, b models.StateDistribution) int {
		return cmp.Compare(b.SellerCount, a.SellerCount)
	})

	return models.StateBreakdown{
		States:       states,
		TopCustomers: head(byCustomers, topN),
		TopSellers:   head(bySellers, topN),
	}
}

// recencyDays is the whole number of days between the customer's last
// approval and the dataset-wide most recent approval.
func recencyDays(recent, last time.Time) int {
	return int(math.Floor(recent.Sub(last).Hours() / 24))
}

func buildRFMEntries(orders []models.Order, recent time.Time) []models.RFMEntry {
	type acc struct {
		customerID string
		last       time.Time
		orders     *roaring.Bitmap
		monetary   decimal.Decimal
	}
	groups := make(map[uint32]*acc)
	for _, o := range orders {
		if !o.HasCustomerID() {
			continue
		}
		a := groups[o.CustomerKey]
		if a == nil {
			a = &acc{customerID: o.CustomerID, orders: roaring.New(), monetary: decimal.Zero}
			groups[o.CustomerKey] = a
		}
		if o.ApprovedAt.After(a.last) {
			a.last = o.ApprovedAt
		}
		if o.HasOrderID() {
			a.orders.Add(o.OrderKey)
		}
		if o.PaymentValue.Valid {
			a.monetary = a.monetary.Add(o.PaymentValue.Decimal)
		}
	}

	entries := make([]models.RFMEntry, 0, len(groups))
	for _, a := range groups {
		entries = append(entries, models.RFMEntry{
			CustomerID: a.customerID,
			ShortID:    shortID(a.customerID),
			Recency:    recencyDays(recent, a.last),
			Frequency:  int(a.orders.GetCardinality()),
			Monetary:   a.monetary,
		})
	}
	slices.SortFunc(entries, func(a, b models.RFMEntry) int {
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return entries
}

func buildRFM(orders []models.Order, recent time.Time, money moneyFormatter) models.RFMSummary {
	entries := buildRFMEntries(orders, recent)
	summary := models.RFMSummary{
		Customers:   len(entries),
		AvgMonetary: decimal.Zero,
		ByRecency:   []models.RFMEntry{},
		ByFrequency: []models.RFMEntry{},
		ByMonetary:  []models.RFMEntry{},
	}
	if len(entries) == 0 {
		summary.FormattedMonetary = money(decimal.Zero)
		return summary
	}

	recency := make(stats.Float64Data, len(entries))
	frequency := make(stats.Float64Data, len(entries))
	monetary := decimal.Zero
	for i, e := range entries {
		recency[i] = float64(e.Recency)
		frequency[i] = float64(e.Frequency)
		monetary = monetary.Add(e.Monetary)
	}

	summary.AvgRecency = roundedMean(recency, 1)
	summary.AvgFrequency = roundedMean(frequency, 2)
	summary.AvgMonetary = monetary.Div(decimal.NewFromInt(int64(len(entries)))).Round(2)
	summary.FormattedMonetary = money(summary.AvgMonetary)

	byRecency := slices.Clone(entries)
	slices.SortStableFunc(byRecency, func(a, b models.RFMEntry) int {
		return cmp.Compare(a.Recency, b.Recency)
	})
	byFrequency := slices.Clone(entries)
	slices.SortStableFunc(byFrequency, func(a, b models.RFMEntry) int {
		return cmp.Compare(b.Frequency, a.Frequency)
	})
	byMonetary := slices.Clone(entries)
	slices.SortStableFunc(byMonetary, func(a, b models.RFMEntry) int {
		return b.Monetary.Cmp(a.Monetary)
	})

	summary.ByRecency = head(byRecency, topN)
	summary.ByFrequency = head(byFrequency, topN)
	summary.ByMonetary = head(byMonetary, topN)
	return summary
}

func roundedMean(data stats.Float64Data, places int) float64 {
	mean, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	rounded, err := stats.Round(mean, places)
	if err != nil {
		return mean
	}
	return rounded
}

func shortID(id string) string {
	runes := []rune(id)
	if len(runes) <= shortIDLen {
		return id
	}
	return string(runes[:shortIDLen])
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
