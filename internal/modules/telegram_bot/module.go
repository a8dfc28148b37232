package telegram

import (
	"trade_engine/internal/modules/telegram_bot/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewNotifier,
		),
	)
}
