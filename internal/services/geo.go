package services

import (
	"cmp"
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"ecommerce-dashboard/internal/models"
)

// Grid cell edge in degrees used to group nearby points into map markers.
const geoCellSize = 1.0

const (
	errMissingCustomerGeo = "Missing customer geolocation data."
	errMissingSellerGeo   = "Missing seller geolocation data."
)

type locator func(models.Order) (models.GeoPoint, bool)

type identity func(models.Order) (uint32, bool)

func buildCustomerGeo(orders []models.Order, available bool) models.GeoDistribution {
	if !available {
		return unavailableGeo(errMissingCustomerGeo)
	}
	return buildGeo(orders,
		func(o models.Order) (uint32, bool) { return o.CustomerKey, o.HasCustomerID() },
		models.Order.CustomerLocation,
	)
}

func buildSellerGeo(orders []models.Order, available bool) models.GeoDistribution {
	if !available {
		return unavailableGeo(errMissingSellerGeo)
	}
	return buildGeo(orders,
		func(o models.Order) (uint32, bool) { return o.SellerKey, o.HasSellerID() },
		models.Order.SellerLocation,
	)
}

func unavailableGeo(msg string) models.GeoDistribution {
	return models.GeoDistribution{Error: msg, Clusters: []models.GeoCluster{}}
}

// buildGeo keeps the first row of every distinct entity, centers the map on
// the mean coordinate and buckets the points into grid clusters.
func buildGeo(orders []models.Order, id identity, locate locator) models.GeoDistribution {
	seen := make(map[uint32]struct{})
	var lats, lngs stats.Float64Data

	for _, o := range orders {
		key, ok := id(o)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		p, ok := locate(o)
		if !ok {
			continue
		}
		lats = append(lats, p.Lat)
		lngs = append(lngs, p.Lng)
	}

	geo := models.GeoDistribution{
		Available: true,
		Points:    len(lats),
		Clusters:  clusterPoints(lats, lngs, geoCellSize),
	}
	if len(lats) > 0 {
		lat, _ := stats.Mean(lats)
		lng, _ := stats.Mean(lngs)
		geo.Center = models.GeoPoint{Lat: lat, Lng: lng}
	}
	return geo
}

type cell struct{ row, col int }

func clusterPoints(lats, lngs []float64, size float64) []models.GeoCluster {
	type acc struct {
		lat, lng float64
		n        int
	}
	cells := make(map[cell]*acc)
	for i := range lats {
		c := cell{row: int(math.Floor(lats[i] / size)), col: int(math.Floor(lngs[i] / size))}
		a := cells[c]
		if a == nil {
			a = &acc{}
			cells[c] = a
		}
		a.lat += lats[i]
		a.lng += lngs[i]
		a.n++
	}

	clusters := make([]models.GeoCluster, 0, len(cells))
	for _, a := range cells {
		clusters = append(clusters, models.GeoCluster{
			GeoPoint: models.GeoPoint{Lat: a.lat / float64(a.n), Lng: a.lng / float64(a.n)},
			Count:    a.n,
		})
	}
	slices.SortFunc(clusters, func(a, b models.GeoCluster) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Lat, b.Lat); c != 0 {
			return c
		}
		return cmp.Compare(a.Lng, b.Lng)
	})
	return clusters
}
