package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	Backend BackendConfig
	Storage StorageConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points the client at the storefront REST service.
type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_URL" default:"http://127.0.0.1:8000"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"15s"`
}

func (b BackendConfig) validate() error {
	raw := strings.TrimSpace(b.BaseURL)
	if raw == "" {
		return fmt.Errorf("backend url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend url must be http or https, got %q", parsed.Scheme)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	return nil
}

// StorageConfig locates the local state directory that stands in for
// the browser's persisted storage.
type StorageConfig struct {
	StateDir string `envconfig:"STOREFRONT_STATE_DIR" default:".storefront"`
}

// MockAPIConfig configures the local development backend.
type MockAPIConfig struct {
	Port      string        `envconfig:"STOREFRONT_MOCKAPI_PORT" default:"8000"`
	JWTSecret string        `envconfig:"STOREFRONT_MOCKAPI_JWT_SECRET" default:"dev-secret"`
	JWTIssuer string        `envconfig:"STOREFRONT_MOCKAPI_JWT_ISSUER" default:"storefront-mockapi"`
	TokenTTL  time.Duration `envconfig:"STOREFRONT_MOCKAPI_TOKEN_TTL" default:"1h"`
}

func LoadMockAPI() (*MockAPIConfig, error) {
	var cfg MockAPIConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing mockapi config: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("mockapi jwt secret is required")
	}
	return &cfg, nil
}
