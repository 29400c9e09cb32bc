// Command checkout prices scan strings against a catalog file.
//
//	checkout --catalog catalog.json ABBACBBAB BBBBBBBBBBBBBBB
//
// Every argument is an independent cart; carts are priced concurrently and
// printed in argument order.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/kart-discounts/internal/catalog"
	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
	"github.com/xenking/kart-discounts/internal/storage/memory"
)

type options struct {
	catalogPath string
	policy      string
	concurrency int
	asJSON      bool
	verbose     bool
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.catalogPath, "catalog", "catalog.json", "catalog document (.json or .json.gz)")
	fs.StringVar(&opts.policy, "policy", string(discount.PolicyGreedy), "conflict policy: greedy or legacy")
	fs.IntVar(&opts.concurrency, "concurrency", 4, "carts priced at once (0 = unbounded)")
	fs.BoolVar(&opts.asJSON, "json", false, "print one JSON object per cart")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	if fs.NArg() == 0 {
		return options{}, nil, errors.New("at least one scan string is required")
	}
	return opts, fs.Args(), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func run(ctx context.Context, opts options, scans []string, out io.Writer) error {
	lg := zctx.From(ctx)

	cat, err := catalog.Load(opts.catalogPath)
	if err != nil {
		return err
	}
	for rule, missing := range cat.DanglingExclusions() {
		lg.Warn("Discount excludes unknown rules", zap.String("rule", rule), zap.Strings("missing", missing))
	}

	policy, err := discount.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}
	engine, err := cat.Engine(discount.DefaultRegistry(), discount.WithPolicy(policy))
	if err != nil {
		return errors.Wrap(err, "build discount engine")
	}

	svc, err := checkout.NewService(memory.NewProductRepository(cat.Products()), engine,
		checkout.WithConcurrency(opts.concurrency),
	)
	if err != nil {
		return err
	}

	receipts, err := svc.CheckoutMany(ctx, scans)
	if err != nil {
		return err
	}
	for i, r := range receipts {
		if opts.asJSON {
			writeJSON(out, scans[i], r)
			continue
		}
		writeText(out, scans[i], r)
	}
	return nil
}

func writeText(out io.Writer, scan string, r *checkout.Receipt) {
	rules := make([]string, 0, len(r.Discounts))
	for _, d := range r.Discounts {
		rules = append(rules, d.RuleID)
	}
	line := fmt.Sprintf("%s\tsubtotal=%s\tdiscount=%s\ttotal=%s\trules=%s",
		scan, r.Subtotal, r.Discount, r.Total, strings.Join(rules, ","))
	if len(r.Unrecognized) > 0 {
		line += "\tunrecognized=" + strings.Join(r.Unrecognized, ",")
	}
	_, _ = fmt.Fprintln(out, line)
}

func writeJSON(out io.Writer, scan string, r *checkout.Receipt) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("scan", func(e *jx.Encoder) { e.Str(scan) })
		e.Field("subtotal", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Discount) })
		e.Field("total", func(e *jx.Encoder) { catalog.EncodeDecimal(e, r.Total) })
		e.Field("rules", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range r.Discounts {
					e.Str(d.RuleID)
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
	})
	_, _ = out.Write(append(e.Bytes(), '\n'))
}

func main() {
	opts, scans, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lg, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(zctx.Base(ctx, lg), opts, scans, os.Stdout); err != nil {
		lg.Error("Checkout failed", zap.Error(err))
		os.Exit(1)
	}
}
