package cache

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client from a redis:// URL or a host:port address.
func Connect(redisURI string) (*redis.Client, error) {
	if strings.HasPrefix(redisURI, "redis://") || strings.HasPrefix(redisURI, "rediss://") {
		opt, err := redis.ParseURL(redisURI)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURI}), nil
}

// AsynqOpt gives asynq the same Redis the rest of the process uses.
func AsynqOpt(redisURI string) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(redisURI, "redis://") || strings.HasPrefix(redisURI, "rediss://") {
		return asynq.ParseRedisURI(redisURI)
	}
	return asynq.RedisClientOpt{Addr: redisURI}, nil
}
