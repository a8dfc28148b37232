package binance_ws

import (
	"context"

	"trade_engine/internal/modules/binance_ws/service"
	"trade_engine/internal/modules/config"
	healthservice "trade_engine/internal/modules/health/service"
	tgservice "trade_engine/internal/modules/telegram_bot/service"
	"trade_engine/internal/pipeline"
	"trade_engine/internal/runtime"

	"go.uber.org/fx"
)

// Module wires the market stream fan-in.
func Module() fx.Option {
	return fx.Module("binance_ws",
		fx.Provide(
			func(cfg *config.Config, reg *runtime.Registry, p *pipeline.Pipeline, n *tgservice.Notifier, hs *healthservice.State) *service.Client {
				return service.NewClient(cfg, reg, p, n, hs)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go c.Start(context.Background())
					return nil
				},
			})
		}),
	)
}
