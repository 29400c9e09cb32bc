// Package handler exposes products, discounts and checkout over HTTP.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultMaxBatch     = 100
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// MaxBatch caps the number of carts in a batch checkout. Zero means 100.
	MaxBatch int
}

// Handler serves the kart HTTP API, delegating pricing to the checkout
// service and lookups to the product repository.
type Handler struct {
	products product.Repository
	checkout *checkout.Service
	rules    []discount.Rule

	maxBodyBytes int64
	maxBatch     int
}

// NewHandler constructs a Handler with the required domain dependencies.
// rules is the active rule set reported by GET /api/discounts.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	svc *checkout.Service,
	rules []discount.Rule,
) *Handler {
	h := &Handler{
		products:     products,
		checkout:     svc,
		rules:        rules,
		maxBodyBytes: cfg.MaxBodyBytes,
		maxBatch:     cfg.MaxBatch,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}
	if h.maxBatch <= 0 {
		h.maxBatch = defaultMaxBatch
	}
	return h
}

// Routes mounts the API under /api. guard wraps the checkout and receipt
// routes only; catalog reads stay public.
func (h *Handler) Routes(r chi.Router, guard ...func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productId}", h.GetProduct)
		r.Get("/discounts", h.ListDiscounts)

		r.Group(func(r chi.Router) {
			r.Use(guard...)
			r.Post("/checkout", h.Checkout)
			r.Post("/checkout/batch", h.CheckoutBatch)
			r.Get("/receipts/{receiptId}", h.GetReceipt)
		})
	})
}

// writeJSON encodes the body with a pooled encoder.
func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	body(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// internalError logs err and hides it from the client.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// readBody reads a size-limited request body. It writes the error response
// itself and reports whether the caller may continue.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read request body")
		return nil, false
	}
	return data, true
}
