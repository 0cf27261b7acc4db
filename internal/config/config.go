package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	EnvPrefix = "LMSEXPORT_"

	defaultListen         = ":8080"
	defaultArchiveName    = "lms-export.zip"
	defaultProgressBuffer = 16
	defaultKeepAlive      = 15 * time.Second
	defaultJobTTL         = 24 * time.Hour
	defaultTimeout        = 60 * time.Second
	defaultPerPage        = 100
	defaultRPS            = 5
	defaultBurst          = 5
	defaultMinCourses     = 1
	defaultMaxBodySize    = 1 << 20
	defaultEnrollmentType = "StudentEnrollment"
)

var defaultEnrollmentStates = []string{"active", "completed", "inactive"}

type LMSConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	PerPage           int           `yaml:"per_page"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	EnrollmentStates  []string      `yaml:"enrollment_states"`
	EnrollmentType    string        `yaml:"enrollment_type"`
	MinCourses        int           `yaml:"min_courses"`
}

type ExportConfig struct {
	ArchiveName    string        `yaml:"archive_name"`
	Manifest       bool          `yaml:"manifest"`
	ProgressBuffer int           `yaml:"progress_buffer"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

type HandlerConfig struct {
	StaticDir   string `yaml:"static_dir"`
	MaxBodySize int64  `yaml:"max_body_size"`
}

type Config struct {
	Listen        string        `yaml:"listen"`
	LogLevel      LogLevel      `yaml:"log_level"`
	RedisURL      string        `yaml:"redis_url"`
	JobTTL        time.Duration `yaml:"job_ttl"`
	LMSConfig     LMSConfig     `yaml:"lms"`
	ExportConfig  ExportConfig  `yaml:"export"`
	HandlerConfig HandlerConfig `yaml:"handler"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.LogLevel = LogLevelInfo
	c.JobTTL = defaultJobTTL

	c.LMSConfig = LMSConfig{
		Timeout:           defaultTimeout,
		PerPage:           defaultPerPage,
		RequestsPerSecond: defaultRPS,
		Burst:             defaultBurst,
		EnrollmentStates:  append([]string(nil), defaultEnrollmentStates...),
		EnrollmentType:    defaultEnrollmentType,
		MinCourses:        defaultMinCourses,
	}

	c.ExportConfig = ExportConfig{
		ArchiveName:    defaultArchiveName,
		ProgressBuffer: defaultProgressBuffer,
		KeepAlive:      defaultKeepAlive,
	}

	c.HandlerConfig = HandlerConfig{
		MaxBodySize: defaultMaxBodySize,
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.LMSConfig.PerPage < 1 {
		return fmt.Errorf("lms.per_page must be positive")
	}

	if len(c.LMSConfig.EnrollmentStates) < 1 {
		return fmt.Errorf("lms.enrollment_states must not be empty")
	}

	if c.ExportConfig.ArchiveName == "" {
		return fmt.Errorf("export.archive_name must not be empty")
	}

	if c.ExportConfig.ProgressBuffer < 0 {
		return fmt.Errorf("export.progress_buffer must not be negative")
	}

	return nil
}

/*
Load reads the yaml file at path (a missing file means defaults only), then applies
variables from .env and the process environment.
*/
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(afero.NewOsFs(), path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvPrefix + "LISTEN"); v != "" {
		c.Listen = v
	}

	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = LogLevel(strings.ToLower(v))
	}

	if v := getenv(EnvPrefix + "REDIS_URL"); v != "" {
		c.RedisURL = v
	}

	if v := getenv(EnvPrefix + "STATIC_DIR"); v != "" {
		c.HandlerConfig.StaticDir = v
	}
}
