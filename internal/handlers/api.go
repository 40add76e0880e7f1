package handlers

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecommerce-dashboard/internal/charts"
	"ecommerce-dashboard/internal/errors"
	"ecommerce-dashboard/internal/export"
	"ecommerce-dashboard/internal/models"
	"ecommerce-dashboard/internal/observability"
	"ecommerce-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// loadDashboard resolves the start/end query values and builds the views.
// On failure the error response is already written.
func (h *APIHandlers) loadDashboard(w http.ResponseWriter, r *http.Request) (*models.Dashboard, bool) {
	query := r.URL.Query()
	dash, err := resolveDashboard(r, h.analytics, query.Get("start"), query.Get("end"))
	if err != nil {
		errors.WriteError(w, r, h.logger, err, observability.GetRequestID(r.Context()))
		return nil, false
	}
	return dash, true
}

func resolveDashboard(r *http.Request, analytics *services.Analytics, start, end string) (*models.Dashboard, error) {
	rng, err := analytics.Range(start, end)
	if err != nil {
		return nil, classify(err)
	}
	dash, err := analytics.Dashboard(r.Context(), rng)
	if err != nil {
		return nil, classify(err)
	}
	return dash, nil
}

func classify(err error) error {
	switch {
	case stderrors.Is(err, services.ErrInvalidRange):
		return errors.ValidationWrap(err, "Invalid date range").WithDetails(err.Error())
	case stderrors.Is(err, services.ErrNotLoaded):
		return errors.ServiceUnavailable("Dataset is not loaded yet")
	}
	return errors.InternalWrap(err, "Failed to build dashboard")
}

func (h *APIHandlers) serveView(w http.ResponseWriter, r *http.Request, view func(*models.Dashboard) any) {
	dash, ok := h.loadDashboard(w, r)
	if !ok {
		return
	}

	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}

	errors.WriteSuccessWithHeaders(w, r, view(dash), headers)
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d })
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any {
		return map[string]any{
			"range":       d.Range,
			"recent_date": d.RecentDate,
			"summary":     d.Summary,
		}
	})
}

func (h *APIHandlers) HandleDailyOrders(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.DailyOrders })
}

func (h *APIHandlers) HandleCategoryRevenue(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.CategoryRevenue })
}

func (h *APIHandlers) HandleCategoryOrders(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.CategoryOrders })
}

func (h *APIHandlers) HandleProductPerformance(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.Products })
}

func (h *APIHandlers) HandleReviews(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.Reviews })
}

func (h *APIHandlers) HandlePayments(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.Payments })
}

func (h *APIHandlers) HandleStates(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.States })
}

func (h *APIHandlers) HandleRFM(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.RFM })
}

func (h *APIHandlers) HandleCustomerGeo(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.CustomerGeo })
}

func (h *APIHandlers) HandleSellerGeo(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, func(d *models.Dashboard) any { return d.SellerGeo })
}

func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "chart")
	if !charts.Exists(name) {
		errors.WriteError(w, r, h.logger, errors.NotFound("Unknown chart: "+name), observability.GetRequestID(r.Context()))
		return
	}

	dash, ok := h.loadDashboard(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := charts.Render(&buf, name, dash); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "Failed to render chart"), observability.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", cacheMaxAge)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	dash, ok := h.loadDashboard(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, dash); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "Failed to export workbook"), observability.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(dash.Range)+`"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if _, err := h.analytics.Bounds(); err != nil {
		status = "loading"
	}

	healthData := map[string]string{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   observability.ServiceVersion,
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()

	errors.WriteSuccess(w, r, stats)
}
