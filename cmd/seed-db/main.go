// Command seed-db loads a catalog document into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/catalog"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
	"github.com/xenking/kart-discounts/pkg/httpmiddleware"
)

// upserter is implemented by the postgres and memory product repositories.
type upserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog", "catalog.json", "catalog document whose products are seeded")
	flag.StringVar(&apiKey, "api-key", "", "API key to print a KART_AUTH_API_KEY_HASHES entry for (or KART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_AUTH_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("KART_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("KART_AUTH_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	if apiKey != "" {
		lg.Info("API key hash",
			zap.String("env", "KART_AUTH_API_KEY_HASHES"),
			zap.String("hash", httpmiddleware.HashAPIKey([]byte(apiKeyPepper), apiKey)),
		)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogFile string) error {
	cat, err := catalog.Load(catalogFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), cat.Products()); err != nil {
		return errors.Wrap(err, "seed products")
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo upserter, products []product.Product) error {
	lg.Info("Upserting products", zap.Int("count", len(products)))
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.Stringer("price", p.Price))
	}
	return nil
}
