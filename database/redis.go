package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"compforge/config"
)

var RDB *redis.Client

// ConnectRedis connects the cache client. Redis is a best-effort side
// channel, so an unreachable server downgrades the app to cache-less
// operation instead of refusing to start.
func ConnectRedis(cfg *config.Config) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable at %s, running without cache: %v", cfg.RedisURL, err)
		return
	}

	RDB = rdb
	fmt.Println("Redis connected")
}
