package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration. Values come from defaults, then the
// optional YAML file, then environment variables.
type Config struct {
	Port     string `yaml:"port"`
	DSN      string `yaml:"db_dsn"`
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`

	JWTSecret  string        `yaml:"jwt_secret"`
	JWTTTL     time.Duration `yaml:"jwt_ttl"`
	CORSOrigin string        `yaml:"cors_origin"`
	// TrustedProxies lists proxy IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`

	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`

	SMTP SMTP `yaml:"smtp"`

	NotifySweepInterval time.Duration `yaml:"notify_sweep_interval"`
	NotifyMaxAttempts   int           `yaml:"notify_max_attempts"`

	ReportBucket string `yaml:"report_bucket"`
	ReportDir    string `yaml:"report_dir"`

	// ReportSchedule is daily, weekly or monthly; empty disables it.
	ReportSchedule       string `yaml:"report_schedule"`
	ReportScheduleTime   string `yaml:"report_schedule_time"`
	ReportScheduleFormat string `yaml:"report_schedule_format"`

	SeedAdminEmail    string `yaml:"seed_admin_email"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func defaults() Config {
	return Config{
		Port:                "8080",
		AppEnv:              "production",
		LogLevel:            "info",
		Timezone:            "Local",
		JWTTTL:              7 * 24 * time.Hour,
		CORSOrigin:          "*",
		LoginRateLimit:      10,
		LoginRateWindow:     time.Minute,
		SMTP:                SMTP{Port: 587},
		NotifySweepInterval: 30 * time.Second,
		NotifyMaxAttempts:   5,
		ReportDir:           "./reports",
		ReportScheduleTime:  "01:00",
	}
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Location resolves Timezone; "Local" and empty mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads .env, the YAML file named by CONFIG_FILE (default config.yaml,
// skipped when absent) and the environment. requireDB demands DB_DSN.
func Load(requireDB bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	path := getenv("CONFIG_FILE", "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("no config file, using environment", "path", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireDB); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// applyEnv overrides cfg with any variables that are set.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                   &cfg.Port,
		"DB_DSN":                 &cfg.DSN,
		"APP_ENV":                &cfg.AppEnv,
		"LOG_LEVEL":              &cfg.LogLevel,
		"TIMEZONE":               &cfg.Timezone,
		"JWT_SECRET":             &cfg.JWTSecret,
		"CORS_ORIGIN":            &cfg.CORSOrigin,
		"REDIS_ADDR":             &cfg.RedisAddr,
		"REDIS_PASSWORD":         &cfg.RedisPassword,
		"SMTP_HOST":              &cfg.SMTP.Host,
		"SMTP_USER":              &cfg.SMTP.User,
		"SMTP_PASSWORD":          &cfg.SMTP.Password,
		"SMTP_FROM":              &cfg.SMTP.From,
		"REPORT_BUCKET":          &cfg.ReportBucket,
		"REPORT_DIR":             &cfg.ReportDir,
		"REPORT_SCHEDULE":        &cfg.ReportSchedule,
		"REPORT_SCHEDULE_TIME":   &cfg.ReportScheduleTime,
		"REPORT_SCHEDULE_FORMAT": &cfg.ReportScheduleFormat,
		"SEED_ADMIN_EMAIL":       &cfg.SeedAdminEmail,
		"SEED_ADMIN_PASSWORD":    &cfg.SeedAdminPassword,
	}
	for k, dst := range strs {
		*dst = getenv(k, *dst)
	}

	if raw := getenv("TRUSTED_PROXIES", ""); raw != "" {
		cfg.TrustedProxies = strings.Split(raw, ",")
	}

	ints := map[string]*int{
		"SMTP_PORT":           &cfg.SMTP.Port,
		"LOGIN_RATE_LIMIT":    &cfg.LoginRateLimit,
		"NOTIFY_MAX_ATTEMPTS": &cfg.NotifyMaxAttempts,
	}
	for k, dst := range ints {
		raw := getenv(k, "")
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", k, raw)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"JWT_TTL":               &cfg.JWTTTL,
		"LOGIN_RATE_WINDOW":     &cfg.LoginRateWindow,
		"NOTIFY_SWEEP_INTERVAL": &cfg.NotifySweepInterval,
	}
	for k, dst := range durations {
		raw := getenv(k, "")
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s must be a duration like 30s or 1h, got %q", k, raw)
		}
		*dst = d
	}
	return nil
}

// Validate checks required keys and ranges.
func (c *Config) Validate(requireDB bool) error {
	var errs []error
	if requireDB && c.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"))
	}
	if c.NotifySweepInterval <= 0 {
		errs = append(errs, errors.New("NOTIFY_SWEEP_INTERVAL must be positive"))
	}
	if c.NotifyMaxAttempts <= 0 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be positive"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	if (c.SeedAdminEmail == "") != (c.SeedAdminPassword == "") {
		errs = append(errs, errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	switch c.ReportSchedule {
	case "", "daily", "weekly", "monthly":
	default:
		errs = append(errs, fmt.Errorf("REPORT_SCHEDULE must be daily, weekly or monthly, got %q", c.ReportSchedule))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
