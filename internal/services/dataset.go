package services

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ecommerce-dashboard/internal/models"
)

const (
	batchSize       = 10000
	maxWorkers      = 10
	snapshotVersion = "v1"
)

// Source column names.
const (
	colOrderID             = "order_id"
	colCustomerID          = "customer_id"
	colSellerID            = "seller_id"
	colApprovedAt          = "order_approved_at"
	colDeliveredCarrierAt  = "order_delivered_carrier_date"
	colDeliveredCustomerAt = "order_delivered_customer_date"
	colEstimatedDelivery   = "order_estimated_delivery_date"
	colCategory            = "product_category_name_english"
	colPaymentType         = "payment_type"
	colPaymentValue        = "payment_value"
	colReviewScore         = "review_score"
	colCustomerState       = "customer_state"
	colSellerState         = "seller_state"
	colCustomerLat         = "geolocation_lat_customer"
	colCustomerLng         = "geolocation_lng_customer"
	colSellerLat           = "geolocation_lat_seller"
	colSellerLng           = "geolocation_lng_seller"
)

// ErrNoRecords is returned for a CSV without data rows.
var ErrNoRecords = errors.New("no valid records found")

// gota reports a header-only file with this message.
const emptyFrameMessage = "empty DataFrame"

var requiredColumns = []string{colOrderID, colCustomerID, colApprovedAt, colPaymentValue}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Dataset is the parsed, immutable source table.
type Dataset struct {
	Orders          []models.Order
	HasCustomerGeo  bool
	HasSellerGeo    bool
	MinDate         time.Time
	MaxDate         time.Time
	DistinctOrders  int
	DistinctClients int
	DistinctSellers int
	LoadedAt        time.Time

	wholeOnce sync.Once
	whole     wholeViews
}

// wholeViews do not depend on the selected range and are built from every
// row, approved or not.
type wholeViews struct {
	products    models.ProductPerformance
	reviews     []models.ReviewScore
	payments    []models.PaymentMethod
	customerGeo models.GeoDistribution
	sellerGeo   models.GeoDistribution
}

// wholeViews builds the range-independent views once per dataset.
func (d *Dataset) wholeViews() wholeViews {
	d.wholeOnce.Do(func() {
		d.whole = wholeViews{
			products:    buildProductPerformance(d.Orders),
			reviews:     buildReviewScores(d.Orders),
			payments:    buildPaymentMethods(d.Orders),
			customerGeo: buildCustomerGeo(d.Orders, d.HasCustomerGeo),
			sellerGeo:   buildSellerGeo(d.Orders, d.HasSellerGeo),
		}
	})
	return d.whole
}

// Version changes whenever a new dataset is installed.
func (d *Dataset) Version() string {
	return strconv.FormatInt(d.LoadedAt.UnixNano(), 36)
}

// readFrame loads every column as a string so that type coercion stays under
// our control.
func readFrame(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN", "<nil>"}),
	)
	if df.Err != nil {
		if strings.Contains(df.Err.Error(), emptyFrameMessage) {
			return dataframe.DataFrame{}, ErrNoRecords
		}
		return dataframe.DataFrame{}, fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

type columnSet map[string][]string

func (c columnSet) value(name string, row int) string {
	values, ok := c[name]
	if !ok {
		return ""
	}
	return cleanCell(values[row])
}

func frameColumns(df dataframe.DataFrame) (columnSet, error) {
	names := df.Names()
	for _, required := range requiredColumns {
		if !slices.Contains(names, required) {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	cols := make(columnSet, len(names))
	for _, name := range names {
		cols[name] = df.Col(name).Records()
	}
	return cols, nil
}

// parseFrame converts the frame into orders, fanning rows out to a bounded
// pool of workers batch by batch.
func parseFrame(ctx context.Context, df dataframe.DataFrame) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, err := frameColumns(df)
	if err != nil {
		return nil, err
	}

	rows := df.Nrow()
	if rows == 0 {
		return nil, ErrNoRecords
	}

	orders := make([]models.Order, rows)

	for start := 0; start < rows; start += batchSize {
		end := min(start+batchSize, rows)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxWorkers)

		for chunk := start; chunk < end; chunk += batchSize / maxWorkers {
			chunkEnd := min(chunk+batchSize/maxWorkers, end)
			g.Go(func() error {
				for i := chunk; i < chunkEnd; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					orders[i] = parseRow(cols, i)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	_, hasCustLat := cols[colCustomerLat]
	_, hasCustLng := cols[colCustomerLng]
	_, hasSellLat := cols[colSellerLat]
	_, hasSellLng := cols[colSellerLng]

	ds := newDataset(orders)
	ds.HasCustomerGeo = hasCustLat && hasCustLng
	ds.HasSellerGeo = hasSellLat && hasSellLng
	return ds, nil
}

func parseRow(cols columnSet, i int) models.Order {
	o := models.Order{
		OrderID:             cols.value(colOrderID, i),
		CustomerID:          cols.value(colCustomerID, i),
		SellerID:            cols.value(colSellerID, i),
		ApprovedAt:          parseTime(cols.value(colApprovedAt, i)),
		DeliveredCarrierAt:  parseTime(cols.value(colDeliveredCarrierAt, i)),
		DeliveredCustomerAt: parseTime(cols.value(colDeliveredCustomerAt, i)),
		EstimatedDeliveryAt: parseTime(cols.value(colEstimatedDelivery, i)),
		Category:            cols.value(colCategory, i),
		PaymentType:         cols.value(colPaymentType, i),
		CustomerState:       cols.value(colCustomerState, i),
		SellerState:         cols.value(colSellerState, i),
		CustomerLat:         parseFloat(cols.value(colCustomerLat, i)),
		CustomerLng:         parseFloat(cols.value(colCustomerLng, i)),
		SellerLat:           parseFloat(cols.value(colSellerLat, i)),
		SellerLng:           parseFloat(cols.value(colSellerLng, i)),
	}

	if v := cols.value(colPaymentValue, i); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			o.PaymentValue = decimal.NewNullDecimal(d)
		}
	}

	if v := parseFloat(cols.value(colReviewScore, i)); v != nil {
		score := int(*v)
		o.ReviewScore = &score
	}

	return o
}

func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if s == "NaN" {
		return ""
	}
	return s
}

// parseTime returns the instant in UTC, or the zero time for values that
// match no known layout. Values without an offset are read as UTC.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

// newDataset normalizes approval times to UTC, sorts orders by them, assigns
// distinct-id keys and computes the date bounds. Empty ids get no key.
func newDataset(orders []models.Order) *Dataset {
	for i := range orders {
		if orders[i].HasApproval() {
			orders[i].ApprovedAt = orders[i].ApprovedAt.UTC()
		}
	}

	slices.SortStableFunc(orders, func(a, b models.Order) int {
		switch {
		case a.HasApproval() && !b.HasApproval():
			return -1
		case !a.HasApproval() && b.HasApproval():
			return 1
		}
		return a.ApprovedAt.Compare(b.ApprovedAt)
	})

	orderKeys := newInterner()
	customerKeys := newInterner()
	sellerKeys := newInterner()

	ds := &Dataset{Orders: orders, LoadedAt: time.Now()}
	for i := range orders {
		o := &orders[i]
		o.OrderKey = orderKeys.key(o.OrderID)
		o.CustomerKey = customerKeys.key(o.CustomerID)
		o.SellerKey = sellerKeys.key(o.SellerID)

		if !o.HasApproval() {
			continue
		}
		if ds.MinDate.IsZero() || o.ApprovedAt.Before(ds.MinDate) {
			ds.MinDate = o.ApprovedAt
		}
		if o.ApprovedAt.After(ds.MaxDate) {
			ds.MaxDate = o.ApprovedAt
		}
	}

	ds.DistinctOrders = orderKeys.len()
	ds.DistinctClients = customerKeys.len()
	ds.DistinctSellers = sellerKeys.len()
	return ds
}

type interner map[string]uint32

func newInterner() interner { return make(interner) }

// key returns 0 for the empty id. Callers skip rows whose id is empty, so
// the collision with the first real id never reaches a count.
func (in interner) key(id string) uint32 {
	if id == "" {
		return 0
	}
	if k, ok := in[id]; ok {
		return k
	}
	k := uint32(len(in))
	in[id] = k
	return k
}

func (in interner) len() int { return len(in) }

// snapshot is the gob payload persisted next to the CSV.
type snapshot struct {
	Orders         []models.Order
	HasCustomerGeo bool
	HasSellerGeo   bool
	WrittenAt      time.Time
}

func snapshotPath(dir, csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(csvPath))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob", name, snapshotVersion))
}

func saveSnapshot(dir, csvPath string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(snapshotPath(dir, csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(snapshot{
		Orders:         ds.Orders,
		HasCustomerGeo: ds.HasCustomerGeo,
		HasSellerGeo:   ds.HasSellerGeo,
		WrittenAt:      time.Now(),
	})
}

// loadSnapshot returns a dataset only if the snapshot is newer than the CSV.
func loadSnapshot(dir, csvPath string) (*Dataset, error) {
	csvInfo, err := os.Stat(csvPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(snapshotPath(dir, csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if !csvInfo.ModTime().Before(snap.WrittenAt) {
		return nil, fmt.Errorf("snapshot is stale")
	}
	if len(snap.Orders) == 0 {
		return nil, fmt.Errorf("snapshot is empty")
	}

	ds := newDataset(snap.Orders)
	ds.HasCustomerGeo = snap.HasCustomerGeo
	ds.HasSellerGeo = snap.HasSellerGeo
	return ds, nil
}
