package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPricingHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBURL             string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Email     EmailConfig
	Stripe    StripeConfig
	Twilio    TwilioConfig
	Leads     LeadConfig
	CORS      CORSConfig
	Pricing   PricingFileConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Currency  string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	SuccessURL    string
	CancelURL     string
}

type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	VerifyServiceSID string
	BaseURL          string
}

type LeadConfig struct {
	CodeTTL         time.Duration
	ResendPerMinute int
	ResendBurst     int
	// VerifyPerMinute and VerifyBurst bound code verification attempts per lead.
	VerifyPerMinute  int
	VerifyBurst      int
	MaxCandidates    int
	DashboardBaseURL string
}

type SchedulerConfig struct {
	Enabled            bool
	Interval           time.Duration
	BatchSize          int
	PendingLeadTTL     time.Duration
	DistributeLookback time.Duration
	PushgatewayURL     string
}

// TelemetryConfig carries logging and OpenTelemetry export settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type PricingFileConfig struct {
	Name  string
	Paths []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "floorquote"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("NODE_ID", 1),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBURL:             strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "floorquote"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 1025)),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: strings.TrimSpace(getenv("SMTP_PASSWORD", "")),
			SMTPFrom:     getenv("SMTP_FROM", "leads@floorquote.local"),
		},
		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			BaseURL:       getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
			SuccessURL:    getenv("STRIPE_CHECKOUT_SUCCESS_URL", "http://localhost:5173/retailer/credits?status=success"),
			CancelURL:     getenv("STRIPE_CHECKOUT_CANCEL_URL", "http://localhost:5173/retailer/credits?status=cancelled"),
		},
		Twilio: TwilioConfig{
			AccountSID:       strings.TrimSpace(getenv("TWILIO_ACCOUNT_SID", "")),
			AuthToken:        strings.TrimSpace(getenv("TWILIO_AUTH_TOKEN", "")),
			VerifyServiceSID: strings.TrimSpace(getenv("TWILIO_VERIFY_SERVICE_SID", "")),
			BaseURL:          getenv("TWILIO_VERIFY_BASE_URL", "https://verify.twilio.com"),
		},
		Leads: LeadConfig{
			CodeTTL:          getenvDuration("LEAD_CODE_TTL", 10*time.Minute),
			ResendPerMinute:  int(getenvInt64("LEAD_RESEND_PER_MINUTE", 3)),
			ResendBurst:      int(getenvInt64("LEAD_RESEND_BURST", 3)),
			VerifyPerMinute:  int(getenvInt64("LEAD_VERIFY_PER_MINUTE", 1)),
			VerifyBurst:      int(getenvInt64("LEAD_VERIFY_BURST", 5)),
			MaxCandidates:    int(getenvInt64("LEAD_MAX_CANDIDATES", 10)),
			DashboardBaseURL: getenv("RETAILER_DASHBOARD_URL", "http://localhost:5173/retailer"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Pricing: PricingFileConfig{
			Name:  getenv("PRICING_CONFIG_NAME", "pricing"),
			Paths: splitList(getenv("PRICING_CONFIG_PATHS", "/etc/floorquote,.")),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getenvBool("SCHEDULER_ENABLED", true),
			Interval:           getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:          int(getenvInt64("SCHEDULER_BATCH_SIZE", 50)),
			PendingLeadTTL:     getenvDuration("LEAD_PENDING_TTL", 72*time.Hour),
			DistributeLookback: getenvDuration("LEAD_AUTO_DISTRIBUTE_WINDOW", 24*time.Hour),
			PushgatewayURL:     strings.TrimSpace(getenv("SCHEDULER_PUSHGATEWAY_URL", "")),
		},
		Currency: strings.ToUpper(getenv("LEAD_CURRENCY", "CAD")),
	}

	cfg.Telemetry = TelemetryConfig{
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
		OtelEnabled:   getenvBool("OTEL_ENABLED", false),
		OtelEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		SamplingRatio: getenvRatio("OTEL_SAMPLING_RATIO", 0.1),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvRatio(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
