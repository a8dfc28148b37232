package main

import (
	"context"
	"log"

	"trade_engine/internal/modules/binance_ws"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/engine"
	"trade_engine/internal/modules/health"
	"trade_engine/internal/modules/postgres"
	telegram "trade_engine/internal/modules/telegram_bot"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	logger.SetServiceName("trade_engine")
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		telegram.Module(),
		engine.Module(),
		binance_ws.Module(),
		health.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			tracing.SetServiceName("trade_engine")
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
