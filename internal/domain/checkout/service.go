// Package checkout prices scanned carts against the discount engine.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-discounts/internal/cart"
	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-discounts/internal/domain/checkout"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithReceiptStore persists every priced receipt.
func WithReceiptStore(store ReceiptStore) Option {
	return func(s *Service) { s.receipts = store }
}

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds the number of carts CheckoutMany prices at once.
// Zero or negative means unbounded.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// Service turns scanned item codes into priced receipts.
type Service struct {
	products    product.Repository
	engine      *discount.Engine
	receipts    ReceiptStore
	now         func() time.Time
	concurrency int

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer       trace.Tracer
	checkouts    metric.Int64Counter
	unrecognized metric.Int64Counter
	applied      metric.Int64Counter
	savings      metric.Float64Histogram
}

// NewService creates a checkout Service over a product repository and a
// discount engine.
func NewService(products product.Repository, engine *discount.Engine, opts ...Option) (*Service, error) {
	if products == nil {
		return nil, errors.New("product repository is required")
	}
	if engine == nil {
		return nil, errors.New("discount engine is required")
	}

	s := &Service{
		products:       products,
		engine:         engine,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.checkouts, err = meter.Int64Counter("kart.checkout.count",
		metric.WithDescription("Number of priced checkouts"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout counter")
	}
	if s.unrecognized, err = meter.Int64Counter("kart.checkout.unrecognized_items",
		metric.WithDescription("Scanned codes that matched no product"),
	); err != nil {
		return nil, errors.Wrap(err, "unrecognized counter")
	}
	if s.applied, err = meter.Int64Counter("kart.discount.applied",
		metric.WithDescription("Discount rules applied to checkouts"),
	); err != nil {
		return nil, errors.Wrap(err, "applied counter")
	}
	if s.savings, err = meter.Float64Histogram("kart.checkout.savings",
		metric.WithDescription("Discount granted per checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "savings histogram")
	}

	return s, nil
}

// Policy returns the conflict policy of the underlying engine.
func (s *Service) Policy() discount.Policy {
	return s.engine.Policy()
}

// Checkout prices a scan string such as "ABBACBBAB".
func (s *Service) Checkout(ctx context.Context, scan string) (*Receipt, error) {
	return s.CheckoutItems(ctx, ParseCodes(scan))
}

// CheckoutItems prices the given product IDs in scan order. IDs that match no
// product are skipped and reported on the receipt. Engine errors abort the
// checkout.
func (s *Service) CheckoutItems(ctx context.Context, ids []string) (_ *Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.Int("kart.items.scanned", len(ids))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	items, unrecognized, err := s.resolveItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	for _, code := range unrecognized {
		lg.Warn("Unrecognized item", zap.String("code", code))
	}

	c := cart.New(items...)
	res, err := s.engine.Apply(c)
	if err != nil {
		return nil, errors.Wrap(err, "apply discounts")
	}
	for _, d := range res.Dropped() {
		lg.Debug("Discount dropped by conflict",
			zap.String("rule", d.Rule.ID),
			zap.Stringer("amount", d.Amount),
		)
	}

	subtotal := cart.Subtotal(c)
	r := &Receipt{
		ID:           uuid.New().String(),
		Items:        items,
		Unrecognized: unrecognized,
		Subtotal:     subtotal,
		Discounts:    make([]AppliedDiscount, 0, len(res.Applied)),
		Discount:     res.Total,
		Total:        subtotal.Add(res.Total),
		Policy:       s.engine.Policy(),
		CreatedAt:    s.now(),
	}
	for _, a := range res.Applied {
		if a.Amount.IsZero() {
			continue
		}
		r.Discounts = append(r.Discounts, AppliedDiscount{
			RuleID: a.Rule.ID,
			Func:   a.Rule.Func,
			Amount: a.Amount,
		})
	}

	if s.receipts != nil {
		if err := s.receipts.Save(ctx, r); err != nil {
			return nil, errors.Wrap(err, "save receipt")
		}
	}

	s.record(ctx, span, r)
	lg.Debug("Checkout priced",
		zap.String("receipt_id", r.ID),
		zap.Int("items", len(r.Items)),
		zap.Stringer("subtotal", r.Subtotal),
		zap.Stringer("total", r.Total),
	)
	return r, nil
}

// resolveItems looks up every distinct ID once and rebuilds the scan order.
func (s *Service) resolveItems(ctx context.Context, ids []string) (items []product.Product, unrecognized []string, _ error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	byID := make(map[string]product.Product, len(unique))
	if len(unique) > 0 {
		fetched, err := s.products.GetByIDs(ctx, unique)
		if err != nil {
			return nil, nil, errors.Wrap(err, "get products")
		}
		for _, p := range fetched {
			byID[p.ID] = p
		}
	}

	items = make([]product.Product, 0, len(ids))
	unrecognized = []string{}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			unrecognized = append(unrecognized, id)
			continue
		}
		items = append(items, p)
	}
	return items, unrecognized, nil
}

func (s *Service) record(ctx context.Context, span trace.Span, r *Receipt) {
	policy := attribute.String("kart.discount.policy", string(r.Policy))

	span.SetAttributes(
		attribute.String("kart.receipt.id", r.ID),
		attribute.Int("kart.items.recognized", len(r.Items)),
		attribute.Int("kart.discounts.applied", len(r.Discounts)),
		policy,
	)

	s.checkouts.Add(ctx, 1, metric.WithAttributes(policy))
	if n := len(r.Unrecognized); n > 0 {
		s.unrecognized.Add(ctx, int64(n))
	}
	for _, d := range r.Discounts {
		s.applied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kart.discount.rule", d.RuleID),
			attribute.String("kart.discount.func", d.Func),
		))
	}
	s.savings.Record(ctx, r.Discount.Neg().InexactFloat64(), metric.WithAttributes(policy))
}

// CheckoutMany prices independent scan strings concurrently. Receipts are
// returned in input order. The first error cancels the remaining checkouts.
func (s *Service) CheckoutMany(ctx context.Context, scans []string) ([]*Receipt, error) {
	receipts := make([]*Receipt, len(scans))

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, scan := range scans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.Checkout(gctx, scan)
			if err != nil {
				return errors.Wrapf(err, "cart %d", i)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Receipt returns a previously priced receipt. Without a receipt store every
// lookup fails with ErrReceiptNotFound.
func (s *Service) Receipt(ctx context.Context, id string) (*Receipt, error) {
	if s.receipts == nil {
		return nil, ErrReceiptNotFound
	}
	return s.receipts.Get(ctx, id)
}
