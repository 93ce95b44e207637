package bootstrap

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/gateway"
	"github.com/voicedeck/voicedeck/internal/history"
	"github.com/voicedeck/voicedeck/internal/narrator"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideNarrator(logger *slog.Logger) narrator.Responder {
	return narrator.New(logger)
}

func ProvideWSServer(store deck.Store, responder narrator.Responder, hist *history.Store, logger *slog.Logger) *gateway.WSServer {
	return gateway.NewWSServer(store, responder, hist, logger)
}

func RegisterRoutes(e *echo.Echo, server *gateway.WSServer, redisClient *redis.Client) {
	server.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		status := "ok"
		if err := redisClient.Ping(c.Request().Context()).Err(); err != nil {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, map[string]string{"status": status})
	})
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideNarrator,
		ProvideWSServer,
	),
	fx.Invoke(RegisterRoutes),
)
