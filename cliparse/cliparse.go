package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	RedisURI     string
	JWTSecret    string
	IPHashSalt   string

	// Login governor policy. The thresholds live server-side; clients only
	// see is_locked / remaining_seconds / attempt_count.
	LockoutThreshold  int
	LockoutBaseWindow time.Duration
	LockoutMaxWindow  time.Duration

	// AnsweredVisible controls whether answered questions stay in the
	// audience list. Kept configurable; the product call is still open.
	AnsweredVisible bool
}

// ParseFlags validates flags and sets defaults. Values fall back to
// environment variables (a .env file is loaded first if present).
func ParseFlags(args []string) (Config, error) {
	// Missing .env is fine; real env vars still apply
	_ = godotenv.Load()

	var cfg Config
	var lockoutBaseSec, lockoutMaxSec int
	var answeredVisible string

	fs := flag.NewFlagSet("crowdcue", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURI, "redis", "", "Redis address for realtime/session fan-out (optional)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "Session token signing secret (prefer env)")
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "IP hashing salt (prefer env)")

	// Policy knobs
	fs.IntVar(&cfg.LockoutThreshold, "lockout-threshold", 0, "Failed logins before lockout")
	fs.IntVar(&lockoutBaseSec, "lockout-base", 0, "Base lockout window in seconds")
	fs.IntVar(&lockoutMaxSec, "lockout-max", 0, "Max lockout window in seconds")
	fs.StringVar(&answeredVisible, "answered-visible", "", "Keep answered questions in the audience list (true/false)")

	if err := fs.Parse(args); err != nil {
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
			cfg.Port = 3410 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("DATABASE_TYPE must be sqlite or postgres")
	}

	if cfg.RedisURI == "" {
		cfg.RedisURI = os.Getenv("REDIS_URI")
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = os.Getenv("IP_HASH_SALT")
	}
	if cfg.IPHashSalt == "" {
		return Config{}, errors.New("IP_HASH_SALT required")
	}

	if cfg.LockoutThreshold == 0 {
		cfg.LockoutThreshold = envInt("LOCKOUT_THRESHOLD", 5)
	}
	if lockoutBaseSec == 0 {
		lockoutBaseSec = envInt("LOCKOUT_BASE_SECONDS", 60)
	}
	if lockoutMaxSec == 0 {
		lockoutMaxSec = envInt("LOCKOUT_MAX_SECONDS", 900)
	}
	cfg.LockoutBaseWindow = time.Duration(lockoutBaseSec) * time.Second
	cfg.LockoutMaxWindow = time.Duration(lockoutMaxSec) * time.Second

	if answeredVisible == "" {
		answeredVisible = os.Getenv("ANSWERED_VISIBLE")
	}
	// Default: answered questions remain visible
	cfg.AnsweredVisible = answeredVisible != "false"

	return cfg, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
