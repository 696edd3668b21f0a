package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/chatbot/internal/config"
)

// Open builds the Store selected by cfg.HistoryDriver.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	t := DriverType(strings.ToLower(strings.TrimSpace(cfg.HistoryDriver)))

	var opts []Option
	switch t {
	case DriverDynamoDB:
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		opts = append(opts, WithAWSConfig(awsCfg), WithTableName(cfg.DDBTableName))
	case DriverMySQL, DriverSQLite:
		opts = append(opts, WithDSN(cfg.DBDSN))
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, WithRedisClient(client))
	}

	driver, err := NewDriver(t, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("history store ready", "driver", string(t))
	return NewStore(driver, logger), nil
}
