package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

type Config struct {
	Env             string `yaml:"env" env:"APP_ENV" validate:"oneof=dev stage prod"`
	LogLevel        string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	ShortCodeLength int    `yaml:"short_code_length" validate:"min=4,max=32"`
	HTTPServer      `yaml:"http_server"`
	Postgres        `yaml:"postgres"`
	Redis           `yaml:"redis"`
	Cache           `yaml:"cache"`
	JWT             `yaml:"jwt"`
	Cleanup         `yaml:"cleanup"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" env:"HTTP_PORT" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user" env:"POSTGRES_USER" validate:"required"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	Host            string        `yaml:"host" env:"POSTGRES_HOST" validate:"required"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT"`
	DB              string        `yaml:"db" env:"POSTGRES_DB" validate:"required"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnectRetries  uint64        `yaml:"connect_retries"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	ConnectRetries:  5,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

var defaultRedis = Redis{
	Addr:         "localhost:6379",
	DialTimeout:  2 * time.Second,
	ReadTimeout:  500 * time.Millisecond,
	WriteTimeout: 500 * time.Millisecond,
}

type Cache struct {
	Backend   string        `yaml:"backend" env:"CACHE_BACKEND" validate:"oneof=redis memory none"`
	OpTimeout time.Duration `yaml:"op_timeout"`
	URLTTL    time.Duration `yaml:"url_ttl" validate:"gt=0"`
	UserTTL   time.Duration `yaml:"user_ttl" validate:"gt=0"`
}

var defaultCache = Cache{
	Backend:   CacheRedis,
	OpTimeout: 200 * time.Millisecond,
	URLTTL:    30 * 24 * time.Hour,
	UserTTL:   time.Hour,
}

type JWT struct {
	Secret         string        `yaml:"secret" env:"JWT_SECRET" validate:"required,min=16"`
	Issuer         string        `yaml:"issuer"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" validate:"gt=0"`
}

var defaultJWT = JWT{
	Issuer:         "shortlink",
	AccessTokenTTL: 30 * time.Minute,
}

type Cleanup struct {
	Enabled      bool          `yaml:"enabled"`
	Schedule     string        `yaml:"schedule" validate:"required_if=Enabled true"`
	InactiveDays int           `yaml:"inactive_days" validate:"min=1"`
	Timeout      time.Duration `yaml:"timeout"`
	RunOnStart   bool          `yaml:"run_on_start"`
}

var defaultCleanup = Cleanup{
	Enabled:      true,
	Schedule:     "@hourly",
	InactiveDays: 90,
	Timeout:      5 * time.Minute,
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse environment: %w", op, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.ShortCodeLength = 6
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Cache = defaultCache
	cfg.JWT = defaultJWT
	cfg.Cleanup = defaultCleanup
}
