package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/currency"

	"ecommerce-dashboard/internal/cache"
	"ecommerce-dashboard/internal/format"
	"ecommerce-dashboard/internal/models"
	"ecommerce-dashboard/internal/observability"
)

type Analytics struct {
	mu          sync.RWMutex
	dataset     *Dataset
	csvPath     string
	snapshotDir string

	cache  *cache.Manager
	money  moneyFormatter
	logger *slog.Logger

	builds    atomic.Int64
	cacheHits atomic.Int64
}

type Option func(*Analytics)

// WithCache memoizes dashboards per date range.
func WithCache(m *cache.Manager) Option {
	return func(a *Analytics) { a.cache = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

// WithSnapshotDir enables the gob snapshot written after a CSV parse.
func WithSnapshotDir(dir string) Option {
	return func(a *Analytics) { a.snapshotDir = dir }
}

func WithCurrency(unit currency.Unit) Option {
	return func(a *Analytics) {
		a.money = func(d decimal.Decimal) string { return format.Money(d, unit) }
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		logger: slog.Default(),
		money:  format.BRL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetData installs orders directly, bypassing CSV parsing. Geolocation is
// considered present when any row carries coordinates.
func (a *Analytics) SetData(orders []models.Order) {
	rows := make([]models.Order, len(orders))
	copy(rows, orders)

	ds := newDataset(rows)
	for _, o := range rows {
		if o.CustomerLat != nil || o.CustomerLng != nil {
			ds.HasCustomerGeo = true
		}
		if o.SellerLat != nil || o.SellerLng != nil {
			ds.HasSellerGeo = true
		}
	}
	a.install(ds)
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) (err error) {
	ctx, span := observability.StartSpan(ctx, "dataset.load", attribute.String("file", filename))
	defer func() { observability.EndSpan(span, err) }()

	a.mu.Lock()
	a.csvPath = filename
	a.mu.Unlock()

	start := time.Now()
	if a.snapshotDir != "" {
		if ds, err := loadSnapshot(a.snapshotDir, filename); err == nil {
			a.install(ds)
			observability.RecordDatasetLoad(len(ds.Orders), time.Since(start))
			a.logger.Info("loaded from snapshot", "records", len(ds.Orders))
			return nil
		}
	}

	a.logger.Info("processing CSV file", "filename", filename)

	df, err := readFrame(filename)
	if err != nil {
		return fmt.Errorf("process csv: %w", err)
	}
	ds, err := parseFrame(ctx, df)
	if err != nil {
		return fmt.Errorf("process csv: %w", err)
	}
	a.install(ds)

	if a.snapshotDir != "" {
		if err := saveSnapshot(a.snapshotDir, filename, ds); err != nil {
			a.logger.Warn("failed to save snapshot", "error", err)
		}
	}

	duration := time.Since(start)
	count := len(ds.Orders)
	observability.RecordDatasetLoad(count, duration)
	a.logger.Info("csv processing complete",
		"records", count,
		"orders", ds.DistinctOrders,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(count)/duration.Seconds()))

	return nil
}

func (a *Analytics) install(ds *Dataset) {
	a.mu.Lock()
	a.dataset = ds
	a.mu.Unlock()

	if a.cache != nil {
		a.cache.Purge()
	}
}

func (a *Analytics) current() (*Dataset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dataset == nil {
		return nil, ErrNotLoaded
	}
	return a.dataset, nil
}

// Bounds is the whole-day span of approval dates in the dataset.
func (a *Analytics) Bounds() (models.DateRange, error) {
	ds, err := a.current()
	if err != nil {
		return models.DateRange{}, err
	}
	return dayBounds(ds.MinDate, ds.MaxDate), nil
}

// RecentDate is the latest approval timestamp in the whole dataset.
func (a *Analytics) RecentDate() time.Time {
	ds, err := a.current()
	if err != nil {
		return time.Time{}
	}
	return ds.MaxDate
}

// Range parses query values against the dataset bounds.
func (a *Analytics) Range(start, end string) (models.DateRange, error) {
	bounds, err := a.Bounds()
	if err != nil {
		return models.DateRange{}, err
	}
	return ParseRange(start, end, bounds)
}

// Dashboard returns every view for rng, building them concurrently on a
// cache miss.
func (a *Analytics) Dashboard(ctx context.Context, rng models.DateRange) (dash *models.Dashboard, err error) {
	ds, err := a.current()
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "dashboard.build", attribute.String("range", rng.Key()))
	defer func() { observability.EndSpan(span, err) }()

	key := ds.Version() + ":" + rng.Key()
	if a.cache != nil {
		var cached models.Dashboard
		err := a.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			a.cacheHits.Add(1)
			observability.RecordCacheLookup(true)
			return &cached, nil
		case !errors.Is(err, cache.ErrMiss):
			a.logger.Warn("cache read failed", "key", key, "error", err)
		}
		observability.RecordCacheLookup(false)
	}

	start := time.Now()
	dash, err = a.build(ctx, ds, rng)
	if err != nil {
		return nil, err
	}
	a.builds.Add(1)
	observability.RecordViewBuild(time.Since(start))

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, dash); err != nil {
			a.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return dash, nil
}

func (a *Analytics) build(ctx context.Context, ds *Dataset, rng models.DateRange) (*models.Dashboard, error) {
	orders := filterOrders(ds.Orders, rng)
	recent := ds.MaxDate

	dash := &models.Dashboard{
		Range:       rng,
		RecentDate:  recent,
		GeneratedAt: time.Now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	// Products, reviews, payments and geolocation cover the whole dataset.
	views := []func(){
		func() { dash.Summary = buildSummary(orders, a.money) },
		func() { dash.DailyOrders = buildDailyOrders(orders) },
		func() { dash.CategoryRevenue = buildCategoryRevenue(orders) },
		func() { dash.CategoryOrders = buildCategoryOrders(orders) },
		func() { dash.States = buildStates(orders) },
		func() { dash.RFM = buildRFM(orders, recent, a.money) },
		func() {
			whole := ds.wholeViews()
			dash.Products = whole.products
			dash.Reviews = whole.reviews
			dash.Payments = whole.payments
			dash.CustomerGeo = whole.customerGeo
			dash.SellerGeo = whole.sellerGeo
		},
	}
	for _, view := range views {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			view()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	return dash, nil
}

// Stats reports dataset and cache counters for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	ds, path := a.dataset, a.csvPath
	a.mu.RUnlock()

	stats := map[string]any{
		"source":       path,
		"loaded":       ds != nil,
		"builds":       a.builds.Load(),
		"cache_hits":   a.cacheHits.Load(),
		"cache_active": a.cache != nil,
	}
	if a.cache != nil {
		stats["cache_entries"] = a.cache.Len()
	}
	if ds == nil {
		return stats
	}

	stats["record_count"] = len(ds.Orders)
	stats["orders"] = ds.DistinctOrders
	stats["customers"] = ds.DistinctClients
	stats["sellers"] = ds.DistinctSellers
	stats["first_approval"] = ds.MinDate
	stats["last_approval"] = ds.MaxDate
	stats["last_processed"] = ds.LoadedAt
	stats["customer_geo"] = ds.HasCustomerGeo
	stats["seller_geo"] = ds.HasSellerGeo
	return stats
}
