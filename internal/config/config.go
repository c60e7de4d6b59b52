package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

type (
	ServerConfig struct {
		Port   string
		Host   string
		LogLvl string
	}

	Redis struct {
		Enabled     bool
		Addr        string
		DB          int
		SnapshotTTL time.Duration
	}

	Manager struct {
		HealthInterval     time.Duration
		StatusPollInterval time.Duration
		SimSeed            int64
	}

	Dashboard struct {
		Enabled bool
		Symbols []string
	}

	Config struct {
		Server    ServerConfig
		Redis     Redis
		Manager   Manager
		Dashboard Dashboard
		// Exchanges lists what to register at startup, in order.
		Exchanges []exchange.Type
		Adapters  map[exchange.Type]exchange.Config
	}
)

// Load reads envPath into the environment when it exists, then builds
// the Config. A missing file is not an error; variables already set win.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	return LoadConfig()
}

func LoadConfig() (*Config, error) {
	cfg := &Config{Adapters: make(map[exchange.Type]exchange.Config)}
	var err error

	cfg.Server.LogLvl = getEnv("LOG_LVL", "dev")
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.Host = getEnv("HOST", "0.0.0.0")

	if cfg.Redis.Enabled, err = strconv.ParseBool(getEnv("REDIS_ENABLED", "false")); err != nil {
		return nil, fmt.Errorf("REDIS_ENABLED: %w", err)
	}
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	if cfg.Redis.DB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.Redis.SnapshotTTL, err = time.ParseDuration(getEnv("REDIS_SNAPSHOT_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("REDIS_SNAPSHOT_TTL: %w", err)
	}

	if cfg.Manager.HealthInterval, err = time.ParseDuration(getEnv("HEALTH_INTERVAL", "30s")); err != nil {
		return nil, fmt.Errorf("HEALTH_INTERVAL: %w", err)
	}
	if cfg.Manager.StatusPollInterval, err = time.ParseDuration(getEnv("STATUS_POLL_INTERVAL", "5s")); err != nil {
		return nil, fmt.Errorf("STATUS_POLL_INTERVAL: %w", err)
	}
	if cfg.Manager.SimSeed, err = strconv.ParseInt(getEnv("SIM_SEED", "0"), 10, 64); err != nil {
		return nil, fmt.Errorf("SIM_SEED: %w", err)
	}

	if cfg.Dashboard.Enabled, err = strconv.ParseBool(getEnv("DASHBOARD", "false")); err != nil {
		return nil, fmt.Errorf("DASHBOARD: %w", err)
	}
	for _, s := range splitList(getEnv("DASHBOARD_SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT")) {
		cfg.Dashboard.Symbols = append(cfg.Dashboard.Symbols, exchange.FormatSymbol(s))
	}

	for _, name := range splitList(getEnv("EXCHANGES", "binance,coinbase,kraken")) {
		t := exchange.Type(strings.ToLower(name))
		if !t.Valid() {
			return nil, fmt.Errorf("EXCHANGES: unknown exchange %q", name)
		}
		adapterCfg, err := loadAdapter(t)
		if err != nil {
			return nil, err
		}
		cfg.Exchanges = append(cfg.Exchanges, t)
		cfg.Adapters[t] = adapterCfg
	}

	return cfg, nil
}

// loadAdapter reads BINANCE_API_KEY, BINANCE_TESTNET and friends.
func loadAdapter(t exchange.Type) (exchange.Config, error) {
	prefix := strings.ToUpper(string(t)) + "_"

	testnet, err := strconv.ParseBool(getEnv(prefix+"TESTNET", "false"))
	if err != nil {
		return exchange.Config{}, fmt.Errorf("%sTESTNET: %w", prefix, err)
	}

	var rateLimit time.Duration
	if v := getEnv(prefix+"RATE_LIMIT", ""); v != "" {
		if rateLimit, err = time.ParseDuration(v); err != nil {
			return exchange.Config{}, fmt.Errorf("%sRATE_LIMIT: %w", prefix, err)
		}
	}

	return exchange.Config{
		APIKey:    getEnv(prefix+"API_KEY", ""),
		APISecret: getEnv(prefix+"API_SECRET", ""),
		Testnet:   testnet,
		RateLimit: rateLimit,
		BaseURL:   getEnv(prefix+"BASE_URL", ""),
		StreamURL: getEnv(prefix+"WS_URL", ""),
	}, nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}
