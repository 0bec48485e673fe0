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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cart          CartConfig
	Cron          CronConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SELLERHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SELLERHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SELLERHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SELLERHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SELLERHUB_DB_DSN"`
	Driver string `envconfig:"SELLERHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SELLERHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"SELLERHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SELLERHUB_DB_USER"`
	LegacyPassword string `envconfig:"SELLERHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"SELLERHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"SELLERHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SELLERHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SELLERHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SELLERHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SELLERHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SELLERHUB_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SELLERHUB_REDIS_URL"`
	Address      string        `envconfig:"SELLERHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SELLERHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SELLERHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SELLERHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SELLERHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SELLERHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SELLERHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SELLERHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SELLERHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SELLERHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SELLERHUB_JWT_EXPIRATION_MINUTES" default:"720"`
}

// SessionTTL returns the lifetime of a seller session token.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SELLERHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SELLERHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SELLERHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SELLERHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SELLERHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	SignInWindow      time.Duration `envconfig:"SELLERHUB_AUTH_RATE_LIMIT_SIGN_IN_WINDOW" default:"1m"`
	SignInSellerLimit int           `envconfig:"SELLERHUB_AUTH_RATE_LIMIT_SIGN_IN_SELLER_LIMIT" default:"10"`
	SignInIPLimit     int           `envconfig:"SELLERHUB_AUTH_RATE_LIMIT_SIGN_IN_IP_LIMIT" default:"30"`
	SignUpWindow      time.Duration `envconfig:"SELLERHUB_AUTH_RATE_LIMIT_SIGN_UP_WINDOW" default:"5m"`
	SignUpIPLimit     int           `envconfig:"SELLERHUB_AUTH_RATE_LIMIT_SIGN_UP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SELLERHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SELLERHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SELLERHUB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SELLERHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"SELLERHUB_PUBSUB_DOMAIN_TOPIC" default:"sellerhub-domain-events"`
	// Ordering publishes events of one aggregate in outbox order.
	Ordering bool `envconfig:"SELLERHUB_PUBSUB_ORDERING" default:"true"`
	// CreateTopic creates a missing domain topic at startup (emulator, dev).
	CreateTopic bool `envconfig:"SELLERHUB_PUBSUB_CREATE_TOPIC" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SELLERHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SELLERHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SELLERHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CartConfig struct {
	MaxCASAttempts int `envconfig:"SELLERHUB_CART_MAX_CAS_ATTEMPTS" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"SELLERHUB_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"SELLERHUB_CORS_MAX_AGE" default:"5m"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SELLERHUB_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays int           `envconfig:"SELLERHUB_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
