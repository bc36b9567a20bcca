package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	JWT   JWTConfig
	Queue WorkQueueConfig
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
	Env          string `envconfig:"SCRAPLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"SCRAPLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SCRAPLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCRAPLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SCRAPLINE_DB_DSN"`
	Driver string `envconfig:"SCRAPLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SCRAPLINE_DB_HOST"`
	Port     int    `envconfig:"SCRAPLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"SCRAPLINE_DB_USER"`
	Password string `envconfig:"SCRAPLINE_DB_PASSWORD"`
	Name     string `envconfig:"SCRAPLINE_DB_NAME"`
	SSLMode  string `envconfig:"SCRAPLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCRAPLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCRAPLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCRAPLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCRAPLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"SCRAPLINE_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCRAPLINE_REDIS_URL"`
	Address      string        `envconfig:"SCRAPLINE_REDIS_ADDR"`
	Password     string        `envconfig:"SCRAPLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCRAPLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCRAPLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCRAPLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCRAPLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCRAPLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCRAPLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SCRAPLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCRAPLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SCRAPLINE_JWT_EXPIRATION_MINUTES" default:"720"`
}

type WorkQueueConfig struct {
	DefaultRadiusKm float64 `envconfig:"SCRAPLINE_QUEUE_DEFAULT_RADIUS_KM" default:"50"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
