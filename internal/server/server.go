package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecommerce-dashboard/internal/handlers"
	"ecommerce-dashboard/internal/middleware"
	"ecommerce-dashboard/internal/observability"
	"ecommerce-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	router      chi.Router
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		router:      chi.NewRouter(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Route-aware instrumentation has to run inside the router.
	s.router.Use(middleware.Tracing(), middleware.Metrics())

	// Dashboard routes
	s.router.Get("/", templateHandlers.Dashboard)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)
	s.router.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	// REST API endpoints
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.apiHandlers.HandleDashboard)
		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/daily-orders", s.apiHandlers.HandleDailyOrders)
		r.Get("/categories/revenue", s.apiHandlers.HandleCategoryRevenue)
		r.Get("/categories/orders", s.apiHandlers.HandleCategoryOrders)
		r.Get("/products/performance", s.apiHandlers.HandleProductPerformance)
		r.Get("/reviews", s.apiHandlers.HandleReviews)
		r.Get("/payments", s.apiHandlers.HandlePayments)
		r.Get("/states", s.apiHandlers.HandleStates)
		r.Get("/rfm", s.apiHandlers.HandleRFM)
		r.Get("/geo/customers", s.apiHandlers.HandleCustomerGeo)
		r.Get("/geo/sellers", s.apiHandlers.HandleSellerGeo)
		r.Get("/export", s.apiHandlers.HandleExport)
	})

	// SVG charts
	s.router.Get("/charts/{chart}", s.apiHandlers.HandleChart)

	// Datastar SSE endpoints
	s.router.Get("/sse/dashboard", s.sseHandlers.HandleDashboard)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
