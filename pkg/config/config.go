package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mgallardo/edustack-backend/pkg/enums"
)

const (
	EnvPrefix = "EDUSTACK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "EDUSTACK_APP_ENV"
	EnvPort     = "EDUSTACK_APP_PORT"
	EnvDBDSN    = "EDUSTACK_DB_DSN"
	EnvDBHost   = "EDUSTACK_DB_HOST"
	EnvDBUser   = "EDUSTACK_DB_USER"
	EnvDBName   = "EDUSTACK_DB_NAME"
	EnvRedisURL = "EDUSTACK_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Entitlements EntitlementsConfig
	Retention    RetentionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Entitlements.ParsedEnvironment(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EDUSTACK_APP_ENV" required:"true"`
	Port         string `envconfig:"EDUSTACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EDUSTACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EDUSTACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EDUSTACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EDUSTACK_DB_DSN"`
	Driver string `envconfig:"EDUSTACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EDUSTACK_DB_HOST"`
	LegacyPort     int    `envconfig:"EDUSTACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EDUSTACK_DB_USER"`
	LegacyPassword string `envconfig:"EDUSTACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"EDUSTACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"EDUSTACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EDUSTACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EDUSTACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EDUSTACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EDUSTACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EDUSTACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EDUSTACK_REDIS_ADDR"`
	Password     string        `envconfig:"EDUSTACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"EDUSTACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EDUSTACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EDUSTACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EDUSTACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EDUSTACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EDUSTACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// EntitlementsConfig tunes the resolver cache and pins the environment tag
// that usage events carry. The environment is config, never read from
// ambient process state at call sites.
type EntitlementsConfig struct {
	SnapshotTTL time.Duration `envconfig:"EDUSTACK_ENTITLEMENTS_SNAPSHOT_TTL" default:"24h"`
	Environment string        `envconfig:"EDUSTACK_ENTITLEMENTS_ENVIRONMENT" default:"development"`
}

// ParsedEnvironment validates and returns the configured environment enum.
func (e EntitlementsConfig) ParsedEnvironment() (enums.Environment, error) {
	env, err := enums.ParseEnvironment(e.Environment)
	if err != nil {
		return "", fmt.Errorf("parsing entitlements environment: %w", err)
	}
	return env, nil
}

type RetentionConfig struct {
	UsageEventMaxAge  time.Duration `envconfig:"EDUSTACK_RETENTION_USAGE_MAX_AGE" default:"2160h"`
	SnapshotGrace     time.Duration `envconfig:"EDUSTACK_RETENTION_SNAPSHOT_GRACE" default:"48h"`
	CleanupBatchLimit int           `envconfig:"EDUSTACK_RETENTION_BATCH_LIMIT" default:"5000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"EDUSTACK_AUTO_MIGRATE" default:"false"`
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
