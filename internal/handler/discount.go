package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/catalog"
)

// ListDiscounts handles GET /api/discounts, reporting the active rules in
// catalog document form along with the conflict policy.
func (h *Handler) ListDiscounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("policy", func(e *jx.Encoder) { e.Str(string(h.checkout.Policy())) })
			e.Field("discounts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, rule := range h.rules {
						catalog.EncodeRule(e, rule)
					}
				})
			})
		})
	})
}
