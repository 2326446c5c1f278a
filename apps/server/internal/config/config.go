// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	AuthModeMemory   = "memory"
	AuthModeSQLite   = "sqlite"
	AuthModePostgres = "postgres"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	AuthMode    string `env:"AUTH_MODE" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`

	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`

	// Catalogs; empty => embedded defaults
	DoctorCardsPath string `env:"DOCTOR_CARDS_PATH"`
	NPCPersonasPath string `env:"NPC_PERSONAS_PATH"`

	// Table actor heartbeat and history
	TableTick        time.Duration `env:"TABLE_TICK" envDefault:"500ms"`
	NPCThinkDelay    time.Duration `env:"NPC_THINK_DELAY" envDefault:"600ms"`
	RoomIdleTTL      time.Duration `env:"ROOM_IDLE_TTL" envDefault:"30m"`
	HistoryCacheSize int           `env:"HISTORY_CACHE_SIZE" envDefault:"256"`
	HistoryLimit     int           `env:"HISTORY_LIMIT" envDefault:"50"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AuthMode = NormalizeAuthMode(cfg.AuthMode)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func NormalizeAuthMode(raw string) string {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "", "mem", AuthModeMemory:
		return AuthModeMemory
	case "db", "postgresql", AuthModePostgres:
		return AuthModePostgres
	case "local", AuthModeSQLite:
		return AuthModeSQLite
	default:
		return mode
	}
}

func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthModeMemory, AuthModeSQLite:
	case AuthModePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("AUTH_MODE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s, %s)",
			c.AuthMode, AuthModeMemory, AuthModeSQLite, AuthModePostgres)
	}
	if c.TableTick <= 0 {
		return fmt.Errorf("TABLE_TICK must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be > 0")
	}
	if c.HistoryCacheSize <= 0 {
		return fmt.Errorf("HISTORY_CACHE_SIZE must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	return nil
}
