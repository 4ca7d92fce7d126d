package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const EnvPrefix = "SERVERMONITOR"

const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Check CheckConfig `mapstructure:"check"`
	Store StoreConfig `mapstructure:"store"`
	API   APIConfig   `mapstructure:"api"`
	Seeds []Seed      `mapstructure:"seeds"`
}

type LogConfig struct {
	Dir     string `mapstructure:"dir"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"` // also log to stderr
}

type CheckConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxRedirects  int           `mapstructure:"max_redirects"`
	Method        string        `mapstructure:"method"`
	UserAgent     string        `mapstructure:"user_agent"`
	AutoCheck     bool          `mapstructure:"auto_check"`
	DiagnoseDNS   bool          `mapstructure:"diagnose_dns"`
	DNSServer     string        `mapstructure:"dns_server"` // host:port; empty uses the OS resolver
}

type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	Path          string        `mapstructure:"path"` // file driver; empty means next to the executable
	DatabaseURL   string        `mapstructure:"database_url"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisKey      string        `mapstructure:"redis_key"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
}

// APIConfig configures the loopback JSON API. An empty Addr disables it.
type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	PublicKeys     []string `mapstructure:"public_keys"`
	AdminKeys      []string `mapstructure:"admin_keys"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminPerMinute int      `mapstructure:"admin_per_minute"` // rate limit on mutations; 0 disables
	AdminBurst     int      `mapstructure:"admin_burst"`
}

type Seed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", LogLevelInfo)
	v.SetDefault("log.console", false)

	v.SetDefault("check.interval", "30s")
	v.SetDefault("check.timeout", "5s")
	v.SetDefault("check.max_concurrent", 0)
	v.SetDefault("check.max_redirects", 5)
	v.SetDefault("check.method", "GET")
	v.SetDefault("check.user_agent", "servermonitor/1.0")
	v.SetDefault("check.auto_check", true)
	v.SetDefault("check.diagnose_dns", false)
	v.SetDefault("check.dns_server", "")

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_key", "servermonitor:targets")
	v.SetDefault("store.save_timeout", "3s")

	v.SetDefault("api.addr", "")
	v.SetDefault("api.public_keys", []string{})
	v.SetDefault("api.admin_keys", []string{})
	v.SetDefault("api.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("api.admin_per_minute", 120)
	v.SetDefault("api.admin_burst", 30)
}

// Load reads path, or config.yaml from . and ./config when path is empty,
// applies SERVERMONITOR_* overrides and validates the result. A missing
// default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Check.Method = strings.ToUpper(strings.TrimSpace(cfg.Check.Method))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if !cfg.Check.AutoCheck {
		cfg.Check.Interval = 0
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Log),
		validation.Field(&c.Check),
		validation.Field(&c.Store),
		validation.Field(&c.API),
		validation.Field(&c.Seeds),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Dir, validation.Required),
		validation.Field(&l.Level, validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
	)
}

func (c CheckConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxConcurrent, validation.Min(0)),
		validation.Field(&c.MaxRedirects, validation.Min(0)),
		validation.Field(&c.Method, validation.Required, validation.In("GET", "HEAD")),
		validation.Field(&c.DNSServer, validation.By(validateHostPort)),
	)
}

func (s StoreConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required,
			validation.In(DriverFile, DriverMemory, DriverPostgres, DriverRedis)),
		validation.Field(&s.DatabaseURL, validation.When(s.Driver == DriverPostgres, validation.Required)),
		validation.Field(&s.RedisAddr,
			validation.When(s.Driver == DriverRedis, validation.Required),
			validation.By(validateHostPort)),
		validation.Field(&s.RedisKey, validation.When(s.Driver == DriverRedis, validation.Required)),
		validation.Field(&s.RedisDB, validation.Min(0)),
		validation.Field(&s.SaveTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (a APIConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Addr, validation.By(validateHostPort)),
		validation.Field(&a.AdminPerMinute, validation.Min(0)),
		validation.Field(&a.AdminBurst, validation.Min(0)),
	)
}

func (s Seed) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.URL, validation.Required),
	)
}

// APIOpen reports whether the API would accept requests without a key.
func (a APIConfig) APIOpen() bool {
	return len(a.PublicKeys) == 0 && len(a.AdminKeys) == 0
}

// Loopback reports whether Addr binds only to the local machine.
func (a APIConfig) Loopback() bool {
	host, _, err := net.SplitHostPort(a.Addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}
