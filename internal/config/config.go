package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                      string
	StationsPath              string
	DatabaseURL               string
	NATSURL                   string
	DefaultActor              string
	JournalTimeout            time.Duration
	RateLimitPerMinute        int
	RateLimitBurst            int
	StationRateLimitPerMinute int
	StationRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                      port,
		StationsPath:              os.Getenv("STATIONS_PATH"),
		DatabaseURL:               os.Getenv("DB_DSN"),
		NATSURL:                   os.Getenv("NATS_URL"),
		DefaultActor:              os.Getenv("DEFAULT_ACTOR"),
		JournalTimeout:            readDurationSeconds("JOURNAL_TIMEOUT_SECONDS", 5),
		RateLimitPerMinute:        readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("RATE_LIMIT_BURST", 30),
		StationRateLimitPerMinute: readInt("STATION_RATE_LIMIT_PER_MIN", 600),
		StationRateLimitBurst:     readInt("STATION_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
