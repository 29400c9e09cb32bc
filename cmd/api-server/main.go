// Command api-server serves the product catalog and discounted checkout API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	kart "github.com/xenking/kart-discounts/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := kart.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		return kart.Run(ctx, lg, m, cfg)
	})
}
