package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/serenity.yaml"
	environmentENV    = "ENVIRONMENT"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	Environment               string        `koanf:"environment"`
	Hostname                  string        `koanf:"-"`
	JWTSecret                 string        `koanf:"jwt_secret"`
	ServerHost                string        `koanf:"server_host"`
	ServerPort                int           `koanf:"server_port"`
	TokenExpiry               time.Duration `koanf:"token_expiry"`

	// Circulation rules.
	FineRatePerDay       string `koanf:"fine_rate_per_day"`
	LoanPeriodDays       int    `koanf:"loan_period_days"`
	MaxBooksPerUser      int    `koanf:"max_books_per_user"`
	PrebookingPickupDays int    `koanf:"prebooking_pickup_days"`

	// Background work.
	SchedulerInterval time.Duration `koanf:"scheduler_interval"`
	WorkerProcesses   int           `koanf:"worker_processes"`

	// OTP store.
	OTPTTL        time.Duration `koanf:"otp_ttl"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisDB       int           `koanf:"redis_db"`
	RedisPassword string        `koanf:"redis_password"`

	// Outbound mail and receipts. Mail is only logged when SMTPHost is empty.
	ReceiptDir   string `koanf:"receipt_dir"`
	SMTPFrom     string `koanf:"smtp_from"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
}

func defaultConfig() *Config {
	return &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Environment:               "production",
		ServerHost:                "0.0.0.0",
		ServerPort:                3689,
		TokenExpiry:               24 * time.Hour,
		FineRatePerDay:            "5",
		LoanPeriodDays:            10,
		MaxBooksPerUser:           5,
		PrebookingPickupDays:      2,
		SchedulerInterval:         time.Minute,
		WorkerProcesses:           2,
		OTPTTL:                    10 * time.Minute,
		RedisAddr:                 "localhost:6379",
		ReceiptDir:                os.TempDir(),
		SMTPFrom:                  "noreply@serenity.local",
		SMTPPort:                  587,
	}
}

// New loads the configuration. Values are layered as defaults, then the YAML
// file at $CONFIG_FILE, then environment variables named after the upper snake
// case of each key (e.g. DATABASE_FILE_PATH).
func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	err = k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment config")
	}

	cfg := defaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.Hostname = hostname

	if cfg.Environment == "development" {
		loadDevelopmentConfig(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for unit tests without touching the
// environment or the filesystem.
func NewForTest() *Config {
	cfg := defaultConfig()
	cfg.DatabaseFilePath = ":memory:"
	cfg.Environment = "test"
	cfg.JWTSecret = "test-secret"
	cfg.ServerHost = "127.0.0.1"
	cfg.Hostname = "test"
	return cfg
}

func (cfg *Config) validate() error {
	required := map[string]string{
		"DatabaseFilePath": cfg.DatabaseFilePath,
		"JWTSecret":        cfg.JWTSecret,
	}
	for _, name := range []string{"DatabaseFilePath", "JWTSecret"} {
		if required[name] != "" {
			continue
		}
		key := toSnakeCase(name)
		return errors.New(fmt.Sprintf("missing required config: %s (env %s)", key, strings.ToUpper(key)))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"LoanPeriodDays", cfg.LoanPeriodDays},
		{"MaxBooksPerUser", cfg.MaxBooksPerUser},
		{"PrebookingPickupDays", cfg.PrebookingPickupDays},
		{"WorkerProcesses", cfg.WorkerProcesses},
	}
	for _, p := range positive {
		if p.value < 1 {
			return errors.Errorf("%s must be at least 1, got %d", toSnakeCase(p.name), p.value)
		}
	}
	if cfg.OTPTTL <= 0 {
		return errors.New("otp_ttl must be positive")
	}
	return nil
}

func toSnakeCase(s string) string {
	// strcase splits "JWTSecret" into "jwt_secret", matching the koanf tags.
	return strcase.ToSnake(s)
}
