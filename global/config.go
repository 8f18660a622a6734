package global

import (
	"os"
	"strconv"
)

// Config is the process runtime configuration, read once at startup.
// Everything comes from env with local-dev defaults so a bare
// `go run .` against docker-compose redis/mongo just works.
type Config struct {
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string

	// NatsURL empty disables the cross-process bridge (single-node mode).
	NatsURL string
	NodeID  string

	// JWTSecret empty disables bind-token verification on identity-join.
	JWTSecret string
}

func Load() Config {
	return Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":3001"),
		RedisAddr:     envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envOrInt("REDIS_DB", 0),
		MongoURI:      envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envOr("MONGO_DATABASE", "dorachat"),
		NatsURL:       envOr("NATS_URL", ""),
		NodeID:        envOr("NODE_ID", "rt-1"),
		JWTSecret:     envOr("JWT_SECRET", ""),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
