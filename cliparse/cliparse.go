// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/danielhkuo/retroboard/engine"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

const DefaultPort = 3318

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	UserTokenSalt string

	// Board limits, usually set in the TOML file
	JoinRequestCeiling int     `toml:"join_request_ceiling"`
	MaxVoteLimit       int     `toml:"max_vote_limit"`
	SubscriberBuffer   int     `toml:"subscriber_buffer"`
	RateLimit          float64 `toml:"rate_limit"`
	RateBurst          int     `toml:"rate_burst"`
}

// ParseFlags reads flags, then environment variables (after loading the
// .env file if present), then the optional TOML file, then defaults.
func ParseFlags(args []string) (Config, error) {
	var (
		cfg        Config
		configPath string
		envPath    string
	)

	flags := flag.NewFlagSet("retroboard", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	flags.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or memory)")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.UserTokenSalt, "user-salt", "", "User token salt (prefer env)")

	flags.IntVar(&cfg.JoinRequestCeiling, "join-ceiling", 0, "Pending join requests allowed per board")
	flags.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Requests per second per client IP (0 disables)")
	flags.StringVar(&configPath, "config", "", "TOML file with board limits")
	flags.StringVar(&envPath, "env", ".env", "Environment file")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(envPath); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = DefaultPort
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	switch cfg.DatabaseType {
	case DatabaseMemory, DatabaseSQLite, DatabasePostgres:
	default:
		return Config{}, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseType != DatabaseMemory {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	// Secrets - MUST be provided
	if cfg.UserTokenSalt == "" {
		cfg.UserTokenSalt = os.Getenv("USER_TOKEN_SALT")
	}
	if cfg.UserTokenSalt == "" {
		return Config{}, errors.New("USER_TOKEN_SALT required")
	}

	if cfg.JoinRequestCeiling == 0 {
		n, err := envInt("JOIN_REQUEST_CEILING")
		if err != nil {
			return Config{}, err
		}
		cfg.JoinRequestCeiling = n
	}
	if cfg.RateLimit == 0 {
		if s := os.Getenv("RATE_LIMIT"); s != "" {
			rl, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Config{}, errors.New("invalid RATE_LIMIT env variable")
			}
			cfg.RateLimit = rl
		}
	}

	if configPath == "" {
		configPath = os.Getenv("RETROBOARD_CONFIG")
	}
	if configPath != "" {
		file, err := LoadFile(configPath)
		if err != nil {
			return Config{}, err
		}
		mergeFile(&cfg, file)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// LoadFile reads board limits from a TOML file.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// mergeFile fills limits the flags left unset.
func mergeFile(cfg *Config, file Config) {
	if cfg.JoinRequestCeiling == 0 {
		cfg.JoinRequestCeiling = file.JoinRequestCeiling
	}
	if cfg.MaxVoteLimit == 0 {
		cfg.MaxVoteLimit = file.MaxVoteLimit
	}
	if cfg.SubscriberBuffer == 0 {
		cfg.SubscriberBuffer = file.SubscriberBuffer
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = file.RateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = file.RateBurst
	}
}

func applyDefaults(cfg *Config) {
	if cfg.JoinRequestCeiling <= 0 {
		cfg.JoinRequestCeiling = engine.DefaultJoinRequestCeiling
	}
	if cfg.MaxVoteLimit <= 0 {
		cfg.MaxVoteLimit = engine.DefaultMaxVoteLimit
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
}

func envInt(key string) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}
