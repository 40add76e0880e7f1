package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one row of the source dataset: a single order item / payment event.
// Zero times and nil pointers mean the source value was missing or unparseable.
type Order struct {
	OrderID    string
	CustomerID string
	SellerID   string

	ApprovedAt          time.Time
	DeliveredCarrierAt  time.Time
	DeliveredCustomerAt time.Time
	EstimatedDeliveryAt time.Time

	Category     string
	PaymentType  string
	PaymentValue decimal.NullDecimal
	ReviewScore  *int

	CustomerState string
	SellerState   string
	CustomerLat   *float64
	CustomerLng   *float64
	SellerLat     *float64
	SellerLng     *float64

	// Dense keys assigned at load time, used for distinct counts.
	OrderKey    uint32
	CustomerKey uint32
	SellerKey   uint32
}

func (o Order) HasApproval() bool {
	return !o.ApprovedAt.IsZero()
}

// Empty ids are missing values and never count as a distinct order,
// customer or seller.
func (o Order) HasOrderID() bool    { return o.OrderID != "" }
func (o Order) HasCustomerID() bool { return o.CustomerID != "" }
func (o Order) HasSellerID() bool   { return o.SellerID != "" }

func (o Order) CustomerLocation() (GeoPoint, bool) {
	if o.CustomerLat == nil || o.CustomerLng == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *o.CustomerLat, Lng: *o.CustomerLng}, true
}

func (o Order) SellerLocation() (GeoPoint, bool) {
	if o.SellerLat == nil || o.SellerLng == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *o.SellerLat, Lng: *o.SellerLng}, true
}
