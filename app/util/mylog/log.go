package mylog

import (
	"context"
	"log/slog"
	"os"

	"pairtalk/app/config"

	"github.com/phsym/console-slog"
	"github.com/samber/oops"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	level := parseLevel(cfg.Log.Level)

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	if cfg.Log.Telegram.Token != "" {
		handler := telegramOption(cfg.Log.Telegram, level).NewTelegramHandler()
		if handler == nil {
			return oops.Errorf("failed to connect telegram bot")
		}

		router = router.Add(handler, telegramFilter(level))
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func telegramOption(cfg config.TelegramLog, level slog.Level) slogtelegram.Option {
	return slogtelegram.Option{
		Level:     level,
		Token:     cfg.Token,
		Username:  cfg.ChatID,
		AddSource: true,
	}
}

// telegramFilter forwards errors and records explicitly tagged with telegram=true,
// as long as they pass the configured level.
func telegramFilter(level slog.Level) func(context.Context, slog.Record) bool {
	return func(_ context.Context, r slog.Record) bool {
		if r.Level < level {
			return false
		}

		hasTelegram := false

		r.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "telegram" {
				hasTelegram = true
				return false
			}

			return true
		})

		return r.Level >= slog.LevelError || hasTelegram
	}
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelDebug
	}

	return level
}
