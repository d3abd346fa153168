package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Firebase  FirebaseConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Reports   ReportsConfig
}

type ServerConfig struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Store       string `env:"STORE" envDefault:"firestore"` // firestore or memory
	SeedFile    string `env:"SEED_FILE"`                     // fixtures loaded into the memory store
}

type JWTConfig struct {
	Secret                 string        `env:"JWT_SECRET" envDefault:"dev-secret-key"`
	Expiration             time.Duration `env:"JWT_EXPIRATION" envDefault:"30m"`
	RefreshTokenExpiration time.Duration `env:"REFRESH_TOKEN_EXPIRATION" envDefault:"168h"`
	BcryptCost             int           `env:"BCRYPT_COST" envDefault:"12"`
}

type FirebaseConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH" envDefault:"./serviceAccountKey.json"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	File   string `env:"LOG_FILE"`

	MaxSizeMB  int `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// ReportsConfig tunes the report pipeline.
type ReportsConfig struct {
	PageSize     int `env:"REPORTS_PAGE_SIZE" envDefault:"10"`
	LookbackDays int `env:"REPORTS_LOOKBACK_DAYS" envDefault:"0"` // 0 fetches every report
}

// Lookback returns the report fetch window, zero for unlimited.
func (r ReportsConfig) Lookback() time.Duration {
	if r.LookbackDays <= 0 {
		return 0
	}
	return time.Duration(r.LookbackDays) * 24 * time.Hour
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// Validate reports every setting that would keep the server from running safely.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "dev-secret-key" && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}

	switch c.Server.Store {
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE=memory is not allowed in production"))
		}
	case StoreFirestore:
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID must be set"))
		}
		if _, err := os.Stat(c.Firebase.CredentialsPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("firebase credentials file not found: %s", c.Firebase.CredentialsPath))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", c.Server.Store))
	}

	return errors.Join(errs...)
}
