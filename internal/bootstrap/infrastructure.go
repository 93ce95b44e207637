package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/history"
)

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ProvideDeckStore opens Postgres when a DSN is configured and falls
// back to the built-in deck otherwise, so the server runs with no
// database at all.
func ProvideDeckStore(cfg *Config, logger *slog.Logger) (deck.Store, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("no database configured, serving the built-in deck")
		return deck.NewStaticStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	store := deck.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideHistoryStore(client *redis.Client, cfg *Config) *history.Store {
	return history.NewStore(client, cfg.HistoryTTL)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideDeckStore,
		ProvideHistoryStore,
	),
)
