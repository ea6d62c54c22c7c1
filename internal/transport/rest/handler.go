// Package rest provides HTTP handlers for product and sale operations.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/pkg/config"
	"github.com/abgdnv/storemanager/pkg/web"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	products     service.ProductService
	sales        service.SaleService
	logger       *slog.Logger
	maxBodyBytes int64
	db           Pinger
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMaxBodyBytes limits the size of product and sale payloads.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithPinger makes /healthz fail while db does not answer.
func WithPinger(db Pinger) Option {
	return func(h *Handler) {
		h.db = db
	}
}

// NewHandler creates a new Handler with the provided services.
// Records logged with the request context carry its request_id.
func NewHandler(products service.ProductService, sales service.SaleService, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		products:     products,
		sales:        sales,
		logger:       logger.With("component", "rest"),
		maxBodyBytes: config.DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the HTTP routes for products and sales.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Get("/", h.Root)
	r.Get("/healthz", h.HealthCheck)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.FindAllProducts)
		r.Post("/", h.CreateProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
		})
	})

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.FindAllSales)
		r.Post("/", h.RegisterSale)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindSaleByID)
			r.Put("/", h.ReplaceSale)
			r.Delete("/", h.CancelSale)
		})
	})
}

// Root answers liveness checks with an empty 200.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HealthCheck answers 503 while the database is unreachable.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "Database ping failed", "error", err)
			web.RespondError(w, h.logger, http.StatusServiceUnavailable, web.CodeUnavailable, web.MessageUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// respondErr maps a service error to its status and envelope.
// Anything that is not a client error becomes a 500 with a generic message.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var appErr *perrors.Error
	if errors.As(err, &appErr) {
		h.logger.WarnContext(r.Context(), msg, "code", appErr.Code, "error", err)
		web.RespondError(w, h.logger, statusFor(appErr.Code), appErr.Code, appErr.Message)
		return
	}
	h.logger.ErrorContext(r.Context(), msg, "error", err)
	web.RespondError(w, h.logger, http.StatusInternalServerError, web.CodeInternal, web.MessageInternal)
}

func statusFor(code string) int {
	switch code {
	case perrors.CodeInvalidData:
		return http.StatusUnprocessableEntity
	case perrors.CodeNotFound, perrors.CodeStockProblem:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
