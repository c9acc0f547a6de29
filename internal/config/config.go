package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string
	HTTPAddr    string
	AppBaseURL  string

	DatabaseURL string

	// SessionSecret signs all three session cookie kinds. The server
	// refuses to boot without it.
	SessionSecret  string
	SessionIssuer  string
	SessionTTL     time.Duration
	OAuthStateTTL  time.Duration
	ForcedResetTTL time.Duration

	ShopifyAPIKey      string
	ShopifyAPISecret   string
	ShopifyScopes      string
	ShopifyRedirectURL string

	RedisAddr         string
	RateLimitUseRedis bool

	APIRateLimitRPM    int
	AuthRateLimitRPM   int
	RedeemRateLimitRPM int

	CORSOrigins []string

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// Load reads configuration from the environment. Validation errors name
// the offending variable; secrets are never echoed back.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SessionSecret:  os.Getenv("SESSION_SECRET"),
		SessionIssuer:  getEnv("SESSION_ISSUER", "shopiq"),
		SessionTTL:     getDuration("SESSION_TTL", 30*24*time.Hour),
		OAuthStateTTL:  getDuration("OAUTH_STATE_TTL", 10*time.Minute),
		ForcedResetTTL: getDuration("FORCED_RESET_TTL", 15*time.Minute),

		ShopifyAPIKey:      os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret:   os.Getenv("SHOPIFY_API_SECRET"),
		ShopifyScopes:      getEnv("SHOPIFY_SCOPES", "read_products,read_orders,read_customers"),
		ShopifyRedirectURL: getEnv("SHOPIFY_REDIRECT_URL", "http://localhost:8080/api/v1/shopify/callback"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RateLimitUseRedis: getBool("RATE_LIMIT_USE_REDIS", false),

		APIRateLimitRPM:    getInt("API_RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 20),
		RedeemRateLimitRPM: getInt("REDEEM_RATE_LIMIT_RPM", 10),

		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		OTELMetricsEnabled:        getBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:         getBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:           getBool("OTEL_LOGS_ENABLED", false),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "shopiq-backend"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "development"),
		OTELMetricsExportInterval: getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.ShopifyAPISecret == "" {
		errs = append(errs, errors.New("SHOPIFY_API_SECRET is required"))
	}
	if c.ShopifyAPIKey == "" {
		errs = append(errs, errors.New("SHOPIFY_API_KEY is required"))
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required in production"))
	}
	if c.RateLimitUseRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when RATE_LIMIT_USE_REDIS is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SecureCookies reports whether session cookies carry the Secure flag.
func (c *Config) SecureCookies() bool { return c.IsProduction() }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
