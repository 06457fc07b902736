/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	JWTSigningKey string

	// Playback orchestration
	ProgressInterval   time.Duration // control message refresh cadence
	AdvanceSettleDelay time.Duration // pause between stream end and advance
	QueueListLimit     int           // display cap for queue listings

	// Local call engine
	PlayerBin string // gst-launch binary driving local playback

	// Search / fallback acquisition
	YtdlpBin        string
	SearchLimit     int
	DownloadDir     string
	DownloadTimeout time.Duration
	DownloadRetries int

	// External services
	NATSURL        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("BRAGI_ENV", "development"),
		HTTPBind:      getEnv("BRAGI_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("BRAGI_HTTP_PORT", 8080),
		JWTSigningKey: getEnv("BRAGI_JWT_SIGNING_KEY", ""),

		ProgressInterval:   time.Duration(getEnvInt("BRAGI_PROGRESS_INTERVAL_SECONDS", 8)) * time.Second,
		AdvanceSettleDelay: time.Duration(getEnvInt("BRAGI_ADVANCE_SETTLE_MS", 1500)) * time.Millisecond,
		QueueListLimit:     getEnvInt("BRAGI_QUEUE_LIST_LIMIT", 10),

		PlayerBin: getEnv("BRAGI_PLAYER_BIN", "gst-launch-1.0"),

		YtdlpBin:        getEnv("BRAGI_YTDLP_BIN", "yt-dlp"),
		SearchLimit:     getEnvInt("BRAGI_SEARCH_LIMIT", 10),
		DownloadDir:     getEnv("BRAGI_DOWNLOAD_DIR", "./downloads"),
		DownloadTimeout: time.Duration(getEnvInt("BRAGI_DOWNLOAD_TIMEOUT_SECONDS", 30)) * time.Second,
		DownloadRetries: getEnvInt("BRAGI_DOWNLOAD_RETRIES", 10),

		NATSURL:        getEnv("BRAGI_NATS_URL", ""),
		RedisAddr:      getEnv("BRAGI_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("BRAGI_REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("BRAGI_REDIS_DB", 0),
		SearchCacheTTL: time.Duration(getEnvInt("BRAGI_SEARCH_CACHE_TTL_MINUTES", 30)) * time.Minute,
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("BRAGI_JWT_SIGNING_KEY must be provided")
	}

	if cfg.ProgressInterval < time.Second {
		return nil, fmt.Errorf("BRAGI_PROGRESS_INTERVAL_SECONDS must be at least 1")
	}

	if cfg.DownloadRetries < 1 {
		return nil, fmt.Errorf("BRAGI_DOWNLOAD_RETRIES must be at least 1")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 32 {
			return nil, fmt.Errorf("BRAGI_JWT_SIGNING_KEY must be at least 32 bytes in production")
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
