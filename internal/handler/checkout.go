package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/catalog"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkoutRequest is either a scan string ("ABBAC") or an explicit list of
// product IDs.
type checkoutRequest struct {
	scan   string
	ids    []string
	isList bool
}

func decodeCheckoutRequest(data []byte) (checkoutRequest, error) {
	var (
		req  checkoutRequest
		seen bool
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		seen = true
		switch tt := d.Next(); tt {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "items")
			}
			req.scan = s
			return nil
		case jx.Array:
			req.isList = true
			req.ids = []string{}
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "items")
				}
				req.ids = append(req.ids, id)
				return nil
			})
		default:
			return errors.Errorf("items: expected string or array, got %s", tt)
		}
	}); err != nil {
		return checkoutRequest{}, err
	}
	if !seen {
		return checkoutRequest{}, errors.New("items is required")
	}
	return req, nil
}

func decodeBatchRequest(data []byte) ([]string, error) {
	var carts []string
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "carts" {
			return d.Skip()
		}
		carts = []string{}
		return d.Arr(func(d *jx.Decoder) error {
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "carts")
			}
			carts = append(carts, s)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return carts, nil
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, err := decodeCheckoutRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var receipt *checkout.Receipt
	if req.isList {
		receipt, err = h.checkout.CheckoutItems(r.Context(), req.ids)
	} else {
		receipt, err = h.checkout.Checkout(r.Context(), req.scan)
	}
	if err != nil {
		internalError(w, r, errors.Wrap(err, "checkout"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeReceipt(e, receipt)
	})
}

// CheckoutBatch handles POST /api/checkout/batch, pricing independent scan
// strings concurrently.
func (h *Handler) CheckoutBatch(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	carts, err := decodeBatchRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := validate.Var(carts, fmt.Sprintf("required,min=1,max=%d", h.maxBatch)); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("carts must hold between 1 and %d scans", h.maxBatch))
		return
	}

	receipts, err := h.checkout.CheckoutMany(r.Context(), carts)
	if err != nil {
		internalError(w, r, errors.Wrap(err, "batch checkout"))
		return
	}

	total := decimal.Zero
	for _, rc := range receipts {
		total = total.Add(rc.Total)
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("receipts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, rc := range receipts {
						encodeReceipt(e, rc)
					}
				})
			})
			e.Field("total", func(e *jx.Encoder) { catalog.EncodeDecimal(e, total) })
		})
	})
}
