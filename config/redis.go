package config

import (
	"log"

	"github.com/jondahl/pokerbot/services/redis"
)

// ConnectRedis connects to the Redis instance named by REDIS_URL.
func ConnectRedis(redisURL string) (*redis.RedisClient, error) {
	redisClient, err := redis.InitRedis(redisURL, 0)
	if err != nil {
		log.Printf("Error connecting to Redis: %v", err)
		return nil, err
	}
	return redisClient, nil
}
