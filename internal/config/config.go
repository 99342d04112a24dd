// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server settings.
//
// IMPORTANT: When changing defaults, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds the HTTP/WebSocket edge settings.
type ServerConfig struct {
	Port int
	// SelfPingURL, when set, is fetched every 10 minutes to keep the
	// hosting platform from idling the process out.
	SelfPingURL string
}

// GameConfig holds the simulation settings.
type GameConfig struct {
	TickHz        int
	PlayerTimeout time.Duration
	GMPassword    string
	Debug         bool
	EliteCheckMin time.Duration
	EliteCheckMax time.Duration
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Server ServerConfig
	Game   GameConfig
}

// Load builds the configuration from the environment.
func Load() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 3001),
			SelfPingURL: os.Getenv("RENDER_EXTERNAL_URL"),
		},
		Game: GameConfig{
			TickHz:        getEnvInt("TICK_HZ", 10),
			PlayerTimeout: getEnvDuration("PLAYER_TIMEOUT", 2*time.Minute),
			GMPassword:    os.Getenv("GM_PASSWORD"),
			Debug:         os.Getenv("DEBUG") == "true",
			EliteCheckMin: getEnvDuration("ELITE_CHECK_MIN", 2*time.Minute),
			EliteCheckMax: getEnvDuration("ELITE_CHECK_MAX", 7*time.Minute),
		},
	}
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
