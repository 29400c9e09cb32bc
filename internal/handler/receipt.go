package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/catalog"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
)

// GetReceipt handles GET /api/receipts/{receiptId}.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "receiptId")

	receipt, err := h.checkout.Receipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, checkout.ErrReceiptNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		internalError(w, r, errors.Wrapf(err, "get receipt %q", id))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeReceipt(e, receipt)
	})
}

func encodeReceipt(e *jx.Encoder, r *checkout.Receipt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range r.Items {
					catalog.EncodeProduct(e, p)
				}
			})
		})
		e.Field("unrecognized", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, code := range r.Unrecognized {
					e.Str(code)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Subtotal) })
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range r.Discounts {
					e.Obj(func(e *jx.Encoder) {
						e.Field("ruleId", func(e *jx.Encoder) { e.Str(d.RuleID) })
						e.Field("func", func(e *jx.Encoder) { e.Str(d.Func) })
						e.Field("amount", func(e *jx.Encoder) { catalog.EncodeDecimal(e, d.Amount) })
					})
				}
			})
		})
		e.Field("discount", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Discount) })
		e.Field("total", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Total) })
		e.Field("policy", func(e *jx.Encoder) { e.Str(string(r.Policy)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(r.CreatedAt.UTC().Format(time.RFC3339Nano)) })
	})
}
