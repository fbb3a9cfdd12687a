package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	// Enabled turns on publication of every prediction.
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// GetRedisConfig overlays the REDIS_* environment variables on base.
// REDIS_ADDR also enables publication.
func GetRedisConfig(base RedisConfig) RedisConfig {
	cfg := base
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = parsed
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
		cfg.Enabled = true
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	cfg.Password = getEnv("REDIS_PASSWORD", cfg.Password)
	cfg.Stream = getEnv("REDIS_STREAM", cfg.Stream)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
