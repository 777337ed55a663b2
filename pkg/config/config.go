package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace for every GatsisHub setting.
const EnvPrefix = "GATSISHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "GATSISHUB_DB_DSN"
	EnvDBHost = "GATSISHUB_DB_HOST"
	EnvDBUser = "GATSISHUB_DB_USER"
	EnvDBName = "GATSISHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Google        GoogleConfig
	FeatureFlags  FeatureFlagsConfig
	Messaging     MessagingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Changefeed    ChangefeedConfig
	Eventing      EventingConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"GATSISHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"GATSISHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GATSISHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GATSISHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GATSISHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GATSISHUB_DB_DSN"`
	Driver string `envconfig:"GATSISHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GATSISHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"GATSISHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GATSISHUB_DB_USER"`
	LegacyPassword string `envconfig:"GATSISHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"GATSISHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"GATSISHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GATSISHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GATSISHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GATSISHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GATSISHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GATSISHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GATSISHUB_REDIS_ADDR"`
	Password     string        `envconfig:"GATSISHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"GATSISHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GATSISHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GATSISHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GATSISHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GATSISHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GATSISHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GATSISHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GATSISHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"GATSISHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"GATSISHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GATSISHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GATSISHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GATSISHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GATSISHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GATSISHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
	VerifyWindow     time.Duration `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_VERIFY_WINDOW" default:"10m"`
	VerifyEmailLimit int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_VERIFY_EMAIL_LIMIT" default:"5"`
	VerifyIPLimit    int           `envconfig:"GATSISHUB_AUTH_RATE_LIMIT_VERIFY_IP_LIMIT" default:"20"`
}

type GoogleConfig struct {
	OAuthClientID string `envconfig:"GATSISHUB_GOOGLE_OAUTH_CLIENT_ID"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GATSISHUB_AUTO_MIGRATE" default:"false"`
}

type MessagingConfig struct {
	MaxAttachmentMB int `envconfig:"GATSISHUB_MESSAGING_MAX_ATTACHMENT_MB" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GATSISHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GATSISHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GATSISHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"GATSISHUB_PUBSUB_ORDERS_TOPIC" required:"true"`
	MessagingTopic        string `envconfig:"GATSISHUB_PUBSUB_MESSAGING_TOPIC" required:"true"`
	ProductionTopic       string `envconfig:"GATSISHUB_PUBSUB_PRODUCTION_TOPIC" required:"true"`
	WorkerSubscription    string `envconfig:"GATSISHUB_PUBSUB_WORKER_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription string `envconfig:"GATSISHUB_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset              string `envconfig:"GATSISHUB_BIGQUERY_DATASET" default:"gatsishub"`
	ProductionFactsTable string `envconfig:"GATSISHUB_BIGQUERY_PRODUCTION_TABLE" default:"production_events"`
}

type ChangefeedConfig struct {
	Channel        string `envconfig:"GATSISHUB_CHANGEFEED_CHANNEL" default:"gh:changefeed"`
	SendBufferSize int    `envconfig:"GATSISHUB_CHANGEFEED_SEND_BUFFER" default:"16"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"GATSISHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GATSISHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GATSISHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GATSISHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"GATSISHUB_OUTBOX_RETENTION_DAYS" default:"14"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"GATSISHUB_CRON_INTERVAL" default:"24h"`
	NotificationRetention int           `envconfig:"GATSISHUB_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	DeadlineWindowHours   int           `envconfig:"GATSISHUB_CRON_DEADLINE_WINDOW_HOURS" default:"48"`
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
