// Package config assembles server settings from built-in defaults, an optional YAML file
// and environment variables, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"servex_backend/pkg/utils"
)

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = "SERVEX_CONFIG"

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Stock policies.
const (
	StockPolicyStrict = "strict"
	StockPolicyClamp  = "clamp"
)

type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" (lib/pq) or "pgx" (jackc/pgx stdlib).
	Driver      string `yaml:"driver"`
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"sslmode"`
	ApplySchema bool   `yaml:"apply_schema"`
	SeedMenu    bool   `yaml:"seed_menu"`
}

// DSN renders the key/value connection string understood by both drivers.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type AMQPConfig struct {
	// URL empty disables the broker publisher.
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// RolePINs maps waiter, kitchen and manager to bcrypt hashes of their PIN.
	RolePINs map[string]string `yaml:"role_pins"`
}

type StockConfig struct {
	Policy        string `yaml:"policy"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "pretty" or "json"
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    string         `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Auth     AuthConfig     `yaml:"auth"`
	Stock    StockConfig    `yaml:"stock"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: BackendPostgres,
		Database: DatabaseConfig{
			Driver:      "postgres",
			Host:        "localhost",
			Port:        "5432",
			User:        "postgres",
			Password:    "postgres",
			Name:        "servex",
			SSLMode:     "disable",
			ApplySchema: true,
		},
		AMQP: AMQPConfig{Exchange: "servex_events"},
		Auth: AuthConfig{
			TokenTTL: utils.DefaultAccessTokenTTL,
			RolePINs: map[string]string{},
		},
		Stock: StockConfig{Policy: StockPolicyStrict, RetryAttempts: 3},
		Log:   LogConfig{Level: "info", Format: "pretty"},
	}
}

// Load builds the configuration. A missing file at path is not an error; an empty path
// skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = utils.Getenv("PORT", c.Server.Port)
	c.Server.CORSOrigins = utils.GetenvList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.ShutdownTimeout = utils.GetenvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Store = utils.Getenv("STORE_BACKEND", c.Store)

	c.Database.Driver = utils.Getenv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = utils.Getenv("DB_HOST", c.Database.Host)
	c.Database.Port = utils.Getenv("DB_PORT", c.Database.Port)
	c.Database.User = utils.Getenv("DB_USER", c.Database.User)
	c.Database.Password = utils.Getenv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = utils.Getenv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = utils.Getenv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.ApplySchema = utils.GetenvBool("DB_APPLY_SCHEMA", c.Database.ApplySchema)
	c.Database.SeedMenu = utils.GetenvBool("DB_SEED_MENU", c.Database.SeedMenu)

	c.AMQP.URL = utils.Getenv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = utils.Getenv("AMQP_EXCHANGE", c.AMQP.Exchange)

	c.Auth.JWTSecret = utils.Getenv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = utils.GetenvDuration("JWT_TTL", c.Auth.TokenTTL)
	if c.Auth.RolePINs == nil {
		c.Auth.RolePINs = map[string]string{}
	}
	for _, role := range []string{"waiter", "kitchen", "manager"} {
		key := "PIN_HASH_" + strings.ToUpper(role)
		c.Auth.RolePINs[role] = utils.Getenv(key, c.Auth.RolePINs[role])
	}

	c.Stock.Policy = utils.Getenv("STOCK_POLICY", c.Stock.Policy)
	c.Stock.RetryAttempts = utils.GetenvInt("STOCK_RETRY_ATTEMPTS", c.Stock.RetryAttempts)

	c.Log.Level = utils.Getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.Getenv("LOG_FORMAT", c.Log.Format)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "server port is empty")
	}
	switch c.Store {
	case BackendPostgres:
		if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
			problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store))
	}
	if c.Stock.Policy != StockPolicyStrict && c.Stock.Policy != StockPolicyClamp {
		problems = append(problems, fmt.Sprintf("unknown stock policy %q", c.Stock.Policy))
	}
	if c.Stock.RetryAttempts < 1 {
		problems = append(problems, "stock retry attempts must be at least 1")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "jwt secret is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// PrettyLogs reports whether console log output was requested.
func (c *Config) PrettyLogs() bool {
	return c.Log.Format != "json"
}
