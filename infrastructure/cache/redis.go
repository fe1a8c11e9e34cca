package cache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// NewCache connects to Redis and verifies the connection.
func NewCache(ctx context.Context, addr, username, password, database string) (*redis.Client, error) {
	db, _ := strconv.Atoi(database)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
