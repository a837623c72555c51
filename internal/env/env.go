package env

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	Port         = "PORT"
	AppEnv       = "APP_ENV"
	LogLevel     = "LOG_LEVEL"
	CORSOrigin   = "CORS_ORIGIN"
	RedisURL     = "REDIS_URL"
	RedisPass    = "REDIS_PASS"
	RoomIdleTTL  = "ROOM_IDLE_TTL"
	QueueSize    = "QUEUE_SIZE"
	QueueWorkers = "QUEUE_WORKERS"
	SendBuffer   = "WS_SEND_BUFFER"
)

const Production = "production"

type Config struct {
	Port         string
	AppEnv       string
	LogLevel     string
	CORSOrigins  []string
	RedisURL     string
	RedisPass    string
	RoomIdleTTL  time.Duration
	QueueSize    int
	QueueWorkers int
	SendBuffer   int
}

func (c Config) Production() bool {
	return c.AppEnv == Production
}

func (c Config) ListenAddr() string {
	return ":" + c.Port
}

func init() {
	viper.AutomaticEnv()
}

func setDefaults() {
	viper.SetDefault(Port, "8080")
	viper.SetDefault(AppEnv, "development")
	viper.SetDefault(LogLevel, "info")
	viper.SetDefault(CORSOrigin, "*")
	viper.SetDefault(RoomIdleTTL, "0s")
	viper.SetDefault(QueueSize, 64)
	viper.SetDefault(QueueWorkers, 8)
	viper.SetDefault(SendBuffer, 64)
}

// Load reads envFile (or ./.env when empty and present) into the process
// environment, then resolves every key through viper. Values already in the
// environment win over the file; flags bound with viper.BindPFlag win over both.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("env: load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("env: load .env: %w", err)
	}

	setDefaults()
	viper.AutomaticEnv()

	cfg := Config{
		Port:         viper.GetString(Port),
		AppEnv:       strings.ToLower(viper.GetString(AppEnv)),
		LogLevel:     viper.GetString(LogLevel),
		CORSOrigins:  splitList(viper.GetString(CORSOrigin)),
		RedisURL:     viper.GetString(RedisURL),
		RedisPass:    viper.GetString(RedisPass),
		RoomIdleTTL:  viper.GetDuration(RoomIdleTTL),
		QueueSize:    viper.GetInt(QueueSize),
		QueueWorkers: viper.GetInt(QueueWorkers),
		SendBuffer:   viper.GetInt(SendBuffer),
	}

	if cfg.Port == "" {
		return Config{}, fmt.Errorf("env: %s must not be empty", Port)
	}
	if cfg.QueueWorkers < 1 {
		return Config{}, fmt.Errorf("env: %s must be at least 1, got %d", QueueWorkers, cfg.QueueWorkers)
	}
	if cfg.QueueSize < 0 {
		return Config{}, fmt.Errorf("env: %s must not be negative, got %d", QueueSize, cfg.QueueSize)
	}
	if cfg.RoomIdleTTL < 0 {
		return Config{}, fmt.Errorf("env: %s must not be negative, got %s", RoomIdleTTL, cfg.RoomIdleTTL)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
