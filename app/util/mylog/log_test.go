package mylog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"pairtalk/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramFilter(t *testing.T) {
	tagged := slog.NewRecord(time.Now(), slog.LevelInfo, "Session finalized", 0)
	tagged.AddAttrs(slog.String("session_id", "s1"), slog.Bool("telegram", true))

	plain := slog.NewRecord(time.Now(), slog.LevelInfo, "Turn completed", 0)
	plain.AddAttrs(slog.String("session_id", "s1"))

	failure := slog.NewRecord(time.Now(), slog.LevelError, "Request failed", 0)

	ctx := context.Background()

	filter := telegramFilter(slog.LevelDebug)
	assert.True(t, filter(ctx, tagged))
	assert.False(t, filter(ctx, plain))
	assert.True(t, filter(ctx, failure))

	filter = telegramFilter(slog.LevelWarn)
	assert.False(t, filter(ctx, tagged))
	assert.True(t, filter(ctx, failure))
}

func TestTelegramOptionUsesConfiguredLevel(t *testing.T) {
	option := telegramOption(config.TelegramLog{Token: "token", ChatID: "chat"}, slog.LevelWarn)

	require.NotNil(t, option.Level)
	assert.Equal(t, slog.LevelWarn, option.Level.Level())
	assert.Equal(t, "token", option.Token)
	assert.Equal(t, "chat", option.Username)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelDebug, parseLevel("nonsense"))
}

func TestInitWithoutTelegram(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	cfg, err := config.Parse([]byte("log:\n  level: warn\n"))
	require.NoError(t, err)
	require.NoError(t, Init(cfg))

	assert.NotSame(t, previous, slog.Default())
}
