/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through zap
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/quotations/*        Quotation import and pending queue
  /api/invoices/*          Invoices, breakups, payments
  /api/payment-breakups/*  Cross-invoice views
  /api/admin/*             Admin operations
  /api/demo/*              Demo data (only when enabled)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultAllowedOrigins are the dev frontends allowed when none are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	EnableDemo     bool
	Demo           *DemoLoader // required when EnableDemo
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Quotation routes
		r.Route("/quotations", func(r chi.Router) {
			r.Get("/pending-invoice", h.ListPendingQuotations)
			r.Post("/", h.CreateQuotation)
			r.Get("/{id}", h.GetQuotation)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/preview", h.PreviewInvoice)
			r.Post("/create-from-quotation", h.CreateInvoice)
			r.Get("/", h.ListInvoices)
			r.Get("/{id}", h.GetInvoice)

			r.Post("/{id}/payment-breakup", h.CreateBreakup)
			r.Get("/{id}/payment-breakup", h.GetBreakup)
			r.Post("/{id}/payment-breakup/validate", h.ValidateBreakup)
			r.Get("/{id}/payment-breakup/export", h.ExportBreakup)

			r.Post("/{id}/payments", h.RecordPayment)
			r.Get("/{id}/payment-allocations", h.GetAllocations)
		})

		r.Get("/payment-breakups/overdue", h.ListOverdue)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reminders/run", h.RunReminders)
		})

		// Demo routes
		if opts.EnableDemo && opts.Demo != nil {
			r.Route("/demo", func(r chi.Router) {
				r.Post("/seed", opts.Demo.Seed)
				r.Post("/reset", opts.Demo.Reset)
			})
		}
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
