package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Plans         PlansConfig
	Email         EmailConfig
	Render        RenderConfig
	Usage         UsageConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FILMFUSION_APP_ENV" required:"true"`
	Port         string `envconfig:"FILMFUSION_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FILMFUSION_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FILMFUSION_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FILMFUSION_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FILMFUSION_DB_DSN"`
	Driver string `envconfig:"FILMFUSION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FILMFUSION_DB_HOST"`
	LegacyPort     int    `envconfig:"FILMFUSION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FILMFUSION_DB_USER"`
	LegacyPassword string `envconfig:"FILMFUSION_DB_PASSWORD"`
	LegacyName     string `envconfig:"FILMFUSION_DB_NAME"`
	LegacySSLMode  string `envconfig:"FILMFUSION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FILMFUSION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FILMFUSION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FILMFUSION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FILMFUSION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FILMFUSION_REDIS_URL"`
	Address      string        `envconfig:"FILMFUSION_REDIS_ADDR"`
	Password     string        `envconfig:"FILMFUSION_REDIS_PASSWORD"`
	DB           int           `envconfig:"FILMFUSION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FILMFUSION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FILMFUSION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FILMFUSION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FILMFUSION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FILMFUSION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FILMFUSION_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FILMFUSION_JWT_ISSUER" default:"filmfusion"`
	ExpirationMinutes      int    `envconfig:"FILMFUSION_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"FILMFUSION_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FILMFUSION_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FILMFUSION_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FILMFUSION_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FILMFUSION_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FILMFUSION_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FILMFUSION_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FILMFUSION_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FILMFUSION_AUTO_MIGRATE" default:"false"`
	// UseMemoryStore swaps the Redis-backed shared store for the
	// single-process implementation. Single-node deployments only.
	UseMemoryStore bool `envconfig:"FILMFUSION_USE_MEMORY_STORE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FILMFUSION_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FILMFUSION_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FILMFUSION_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RenderTopic        string `envconfig:"FILMFUSION_PUBSUB_RENDER_TOPIC" default:"ff-render-events"`
	RenderSubscription string `envconfig:"FILMFUSION_PUBSUB_RENDER_SUBSCRIPTION" default:"ff-render-events-notifications"`
	UsageTopic         string `envconfig:"FILMFUSION_PUBSUB_USAGE_TOPIC" default:"ff-usage-events"`
	UsageSubscription  string `envconfig:"FILMFUSION_PUBSUB_USAGE_SUBSCRIPTION" default:"ff-usage-events-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"FILMFUSION_BIGQUERY_DATASET" default:"filmfusion"`
	UsageEventsTable string `envconfig:"FILMFUSION_BIGQUERY_USAGE_TABLE" default:"usage_events"`
}

type StripeConfig struct {
	APIKey          string `envconfig:"FILMFUSION_STRIPE_API_KEY"`
	WebhookSecret   string `envconfig:"FILMFUSION_STRIPE_WEBHOOK_SECRET"`
	Env             string `envconfig:"FILMFUSION_STRIPE_ENV" default:"test"`
	SuccessURL      string `envconfig:"FILMFUSION_STRIPE_CHECKOUT_SUCCESS_URL"`
	CancelURL       string `envconfig:"FILMFUSION_STRIPE_CHECKOUT_CANCEL_URL"`
	PortalReturnURL string `envconfig:"FILMFUSION_STRIPE_PORTAL_RETURN_URL"`
}

// PlansConfig maps Stripe price ids onto the compiled plan catalog.
type PlansConfig struct {
	ProPriceID        string `envconfig:"FILMFUSION_STRIPE_PRO_PRICE_ID"`
	EnterprisePriceID string `envconfig:"FILMFUSION_STRIPE_ENTERPRISE_PRICE_ID"`
}

type EmailConfig struct {
	APIKey      string        `envconfig:"FILMFUSION_EMAIL_API_KEY"`
	BaseURL     string        `envconfig:"FILMFUSION_EMAIL_BASE_URL" default:"https://api.resend.com"`
	DefaultFrom string        `envconfig:"FILMFUSION_EMAIL_FROM" default:"FilmFusion <noreply@filmfusion.ai>"`
	SendTimeout time.Duration `envconfig:"FILMFUSION_EMAIL_SEND_TIMEOUT" default:"10s"`
}

type RenderConfig struct {
	MaxConcurrent   int           `envconfig:"FILMFUSION_RENDER_MAX_CONCURRENT" default:"4"`
	PollInterval    time.Duration `envconfig:"FILMFUSION_RENDER_POLL_INTERVAL" default:"2s"`
	StageDelay      time.Duration `envconfig:"FILMFUSION_RENDER_STAGE_DELAY" default:"3s"`
	StaleAfter      time.Duration `envconfig:"FILMFUSION_RENDER_STALE_AFTER" default:"30m"`
	OutputURLPrefix string        `envconfig:"FILMFUSION_RENDER_OUTPUT_URL_PREFIX" default:"https://cdn.filmfusion.ai/renders"`
}

type UsageConfig struct {
	WarningThresholdPct int `envconfig:"FILMFUSION_USAGE_WARNING_THRESHOLD_PCT" default:"80"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"FILMFUSION_CRON_INTERVAL" default:"1m"`
	LockTTL     time.Duration `envconfig:"FILMFUSION_CRON_LOCK_TTL" default:"5m"`
	MetricsPort string        `envconfig:"FILMFUSION_CRON_METRICS_PORT" default:"9100"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
