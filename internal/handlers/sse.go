package handlers

import (
	"encoding/json"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"ecommerce-dashboard/internal/errors"
	"ecommerce-dashboard/internal/models"
	"ecommerce-dashboard/internal/observability"
	"ecommerce-dashboard/internal/services"
	"ecommerce-dashboard/internal/ui/templates"
)

var rangeErrorTemplate = template.Must(template.New("rangeError").Parse(
	`<p id="range-error" class="error">{{.}}</p>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// rangeSignals are the date inputs bound on the page.
type rangeSignals struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *SSEHandlers) renderPanels(r *http.Request, dash *models.Dashboard) (string, error) {
	var buf strings.Builder
	err := templates.Panels(dash).Render(r.Context(), &buf)
	return buf.String(), err
}

func (h *SSEHandlers) renderRangeError(msg string) (string, error) {
	var buf strings.Builder
	err := rangeErrorTemplate.Execute(&buf, msg)
	return buf.String(), err
}

// HandleDashboard re-renders every panel for the range held in the page
// signals and pushes the summary metrics as a signal patch.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var signals rangeSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "Invalid signals"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)

	dash, err := resolveDashboard(r, h.analytics, signals.Start, signals.End)
	if err != nil {
		h.logger.Warn("dashboard update rejected", "error", err, "request_id", observability.GetRequestID(r.Context()))
		msg := "Unable to update the dashboard"
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) && appErr.Details != "" {
			msg = appErr.Details
		}
		html, rerr := h.renderRangeError(msg)
		if rerr != nil {
			h.logger.Error("render range error", "error", rerr)
			return
		}
		sse.PatchElements(html)
		return
	}

	html, err := h.renderPanels(r, dash)
	if err != nil {
		h.logger.Error("render panels", "error", err)
		return
	}
	cleared, err := h.renderRangeError("")
	if err != nil {
		h.logger.Error("render range error", "error", err)
		return
	}
	sse.PatchElements(cleared)
	sse.PatchElements(html)

	summary, err := json.Marshal(map[string]any{
		"start":   dash.Range.StartString(),
		"end":     dash.Range.EndString(),
		"summary": dash.Summary,
	})
	if err != nil {
		h.logger.Error("marshal summary signals", "error", err)
		return
	}
	sse.PatchSignals(summary)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
