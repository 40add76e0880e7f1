package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"ecommerce-dashboard/internal/models"
)

const (
	mapPadding   = 24
	maxMarkerR   = 28.0
	minMarkerR   = 4.0
	titleStyle   = "text-anchor:middle;font-family:sans-serif;font-size:16px;fill:#333"
	captionStyle = "text-anchor:middle;font-family:sans-serif;font-size:12px;fill:#777"
)

// placeholder draws a titled empty panel carrying msg.
func placeholder(w io.Writer, title, msg string) error {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white;stroke:#D2E0FB")
	canvas.Text(width/2, 28, title, titleStyle)
	canvas.Text(width/2, height/2, msg, captionStyle)
	canvas.End()

	_, err := buf.WriteTo(w)
	return err
}

func renderCustomerMap(w io.Writer, dash *models.Dashboard) error {
	return geoMap(w, "Customer Locations", dash.CustomerGeo)
}

func renderSellerMap(w io.Writer, dash *models.Dashboard) error {
	return geoMap(w, "Seller Locations", dash.SellerGeo)
}

// geoMap plots clusters on an equirectangular projection fitted to the
// cluster bounds. Marker area grows with the cluster size.
func geoMap(w io.Writer, title string, geo models.GeoDistribution) error {
	if !geo.Available {
		return placeholder(w, title, geo.Error)
	}
	if len(geo.Clusters) == 0 {
		return placeholder(w, title, "No locations in the selected range")
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	largest := 0
	for _, c := range geo.Clusters {
		minLat, maxLat = math.Min(minLat, c.Lat), math.Max(maxLat, c.Lat)
		minLng, maxLng = math.Min(minLng, c.Lng), math.Max(maxLng, c.Lng)
		largest = max(largest, c.Count)
	}
	// Keep a single point or a straight line of points away from the edges.
	if maxLat-minLat < 1 {
		minLat, maxLat = minLat-0.5, maxLat+0.5
	}
	if maxLng-minLng < 1 {
		minLng, maxLng = minLng-0.5, maxLng+0.5
	}

	top := 48
	plotW := float64(width - 2*mapPadding)
	plotH := float64(height - top - mapPadding)
	project := func(p models.GeoPoint) (int, int) {
		x := mapPadding + (p.Lng-minLng)/(maxLng-minLng)*plotW
		y := float64(top) + (maxLat-p.Lat)/(maxLat-minLat)*plotH
		return int(math.Round(x)), int(math.Round(y))
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:#F7F9FC")
	canvas.Text(width/2, 28, title, titleStyle)

	// Largest clusters first so small ones stay visible on top.
	for i, c := range geo.Clusters {
		x, y := project(c.GeoPoint)
		r := minMarkerR + (maxMarkerR-minMarkerR)*math.Sqrt(float64(c.Count)/float64(largest))
		color := palette[i%len(palette)]
		canvas.Circle(x, y, int(math.Round(r)),
			fmt.Sprintf("fill:#%s;fill-opacity:0.7;stroke:#3A6D8C;stroke-width:1", hex(color.R, color.G, color.B)))
		canvas.Text(x, y+4, fmt.Sprint(c.Count), "text-anchor:middle;font-family:sans-serif;font-size:10px;fill:#1b2a38")
	}

	cx, cy := project(geo.Center)
	canvas.Line(cx-6, cy, cx+6, cy, "stroke:#c0392b;stroke-width:2")
	canvas.Line(cx, cy-6, cx, cy+6, "stroke:#c0392b;stroke-width:2")
	canvas.Text(width/2, height-6,
		fmt.Sprintf("%d locations, center %.2f, %.2f", geo.Points, geo.Center.Lat, geo.Center.Lng), captionStyle)
	canvas.End()

	_, err := buf.WriteTo(w)
	return err
}

func hex(r, g, b uint8) string {
	return fmt.Sprintf("%02X%02X%02X", r, g, b)
}
