package engine

import (
	"context"

	"trade_engine/internal/backfill"
	"trade_engine/internal/modules/config"
	healthservice "trade_engine/internal/modules/health/service"
	tgservice "trade_engine/internal/modules/telegram_bot/service"
	"trade_engine/internal/pipeline"
	"trade_engine/internal/regulator"
	"trade_engine/internal/runtime"
	"trade_engine/internal/store"
	"trade_engine/internal/trade"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"

	"go.uber.org/fx"
)

// Module assembles the processing core: registry, stores, backfill,
// regulator, trade manager and the worker pipeline.
func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(cfg *config.Config) *runtime.Registry {
				return runtime.NewRegistry(cfg.Regulator.HistoryDepth)
			},
			store.NewKlineRepo,
			store.NewIndicatorRepo,
			store.NewStrategyRepo,
			store.NewTradeRepo,
			func(cfg *config.Config, reg *runtime.Registry, klines *store.KlineRepo) *backfill.Service {
				return backfill.New(cfg.RestURL, reg, klines, cfg.Regulator.HistoryDepth)
			},
			func(cfg *config.Config, reg *runtime.Registry, bf *backfill.Service, n *tgservice.Notifier) *regulator.Regulator {
				return regulator.New(cfg.Regulator, reg, bf, n)
			},
			func(cfg *config.Config, repo *store.TradeRepo, n *tgservice.Notifier) *trade.Manager {
				return trade.NewManager(cfg.InvestmentAmount, cfg.MaxLossStreak, repo, n)
			},
			func(cfg *config.Config, reg *runtime.Registry, txm *db.PgTxManager,
				klines *store.KlineRepo, inds *store.IndicatorRepo, strats *store.StrategyRepo,
				trades *trade.Manager, r *regulator.Regulator) *pipeline.Pipeline {
				return pipeline.New(cfg, reg, txm, klines, inds, strats, trades, r)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, reg *runtime.Registry,
				p *pipeline.Pipeline, bf *backfill.Service, r *regulator.Regulator,
				trades *trade.Manager, hs *healthservice.State) {

				p.Bootstrap = bf.Bootstrap
				trades.OnSuspend(r.Suspend)

				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						if err := p.ReloadStrategies(ctx); err != nil {
							return err
						}

						runCtx := context.Background()
						p.Start(runCtx)
						go r.Start(runCtx)

						// seed the active set up to the cap; further growth
						// is the regulator's job
						go func() {
							for _, symbol := range reg.InactiveSymbols() {
								if reg.ActiveCount() >= cfg.Regulator.MaxSymbols {
									break
								}
								if err := bf.Bootstrap(runCtx, symbol); err != nil {
									logger.Error("[BOOT] backfill %s: %v", symbol, err)
									continue
								}
								reg.Activate(symbol)
							}
							hs.SetReady(true)
							logger.Info("[BOOT] warmup done: %d symbols active", reg.ActiveCount())
						}()
						return nil
					},
				})
			},
		),
	)
}
