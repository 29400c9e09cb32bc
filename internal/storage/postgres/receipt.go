package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

const (
	insertReceiptSQL = `INSERT INTO receipts
		(id, items, unrecognized, discounts, subtotal, discount, total, policy, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`

	getReceiptSQL = `SELECT id::text, items, unrecognized, discounts, subtotal, discount, total, policy, created_at
		FROM receipts WHERE id = $1::uuid`
)

var _ checkout.ReceiptStore = (*ReceiptRepository)(nil)

// ReceiptRepository implements checkout.ReceiptStore backed by PostgreSQL.
// Items and applied discounts are stored as JSONB.
type ReceiptRepository struct {
	pool *pgxpool.Pool
}

// NewReceiptRepository returns a ReceiptRepository that uses the given pool.
func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// Save persists a receipt.
func (r *ReceiptRepository) Save(ctx context.Context, rc *checkout.Receipt) error {
	unrecognized := rc.Unrecognized
	if unrecognized == nil {
		unrecognized = []string{}
	}
	_, err := r.pool.Exec(ctx, insertReceiptSQL,
		rc.ID,
		encodeItems(rc.Items),
		unrecognized,
		encodeDiscounts(rc.Discounts),
		rc.Subtotal,
		rc.Discount,
		rc.Total,
		string(rc.Policy),
		rc.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert receipt %s", rc.ID)
	}
	return nil
}

// Get loads a receipt by ID. Malformed IDs are reported as not found.
func (r *ReceiptRepository) Get(ctx context.Context, id string) (*checkout.Receipt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, checkout.ErrReceiptNotFound
	}

	rows, err := r.pool.Query(ctx, getReceiptSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get receipt %s", id)
	}

	rc, err := pgx.CollectExactlyOneRow(rows, scanReceipt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrReceiptNotFound
		}
		return nil, errors.Wrapf(err, "get receipt %s", id)
	}
	return rc, nil
}

func scanReceipt(row pgx.CollectableRow) (*checkout.Receipt, error) {
	var (
		rc        checkout.Receipt
		items     []byte
		discounts []byte
		policy    string
		createdAt time.Time
	)
	if err := row.Scan(
		&rc.ID, &items, &rc.Unrecognized, &discounts,
		&rc.Subtotal, &rc.Discount, &rc.Total, &policy, &createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rc.Items, err = decodeItems(items); err != nil {
		return nil, errors.Wrap(err, "decode items")
	}
	if rc.Discounts, err = decodeDiscounts(discounts); err != nil {
		return nil, errors.Wrap(err, "decode discounts")
	}
	rc.Policy = discount.Policy(policy)
	rc.CreatedAt = createdAt
	return &rc, nil
}

func encodeItems(items []product.Product) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, p := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return append([]byte(nil), e.Bytes()...)
}

func decodeItems(data []byte) ([]product.Product, error) {
	items := []product.Product{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				p.ID = v
				return err
			case "name":
				v, err := d.Str()
				p.Name = v
				return err
			case "price":
				v, err := d.Str()
				if err != nil {
					return err
				}
				p.Price, err = decimal.NewFromString(v)
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, p)
		return nil
	})
	return items, err
}

func encodeDiscounts(discounts []checkout.AppliedDiscount) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, d := range discounts {
		e.ObjStart()
		e.FieldStart("ruleId")
		e.Str(d.RuleID)
		e.FieldStart("func")
		e.Str(d.Func)
		e.FieldStart("amount")
		e.Str(d.Amount.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return append([]byte(nil), e.Bytes()...)
}

func decodeDiscounts(data []byte) ([]checkout.AppliedDiscount, error) {
	out := []checkout.AppliedDiscount{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var a checkout.AppliedDiscount
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "ruleId":
				v, err := d.Str()
				a.RuleID = v
				return err
			case "func":
				v, err := d.Str()
				a.Func = v
				return err
			case "amount":
				v, err := d.Str()
				if err != nil {
					return err
				}
				a.Amount, err = decimal.NewFromString(v)
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}
