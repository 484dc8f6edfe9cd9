package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Lookup   LookupConfig   `yaml:"lookup"`
	Parser   ParserConfig   `yaml:"parser"`
	Render   RenderConfig   `yaml:"render"`
	Spool    SpoolConfig    `yaml:"spool"`
	Log      LogConfig      `yaml:"log"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr             string `yaml:"addr"`
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	LookupTTLSeconds int    `yaml:"lookup_ttl_seconds"`
}

func (r RedisConfig) LookupTTL() time.Duration {
	return time.Duration(r.LookupTTLSeconds) * time.Second
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	ListsTopic   string   `yaml:"lists_topic"`
	ResultsTopic string   `yaml:"results_topic"`
	GroupID      string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LookupConfig struct {
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
	UserAgent          string   `yaml:"user_agent"`
	RatePerSecond      float64  `yaml:"rate_per_second"`
	Burst              int      `yaml:"burst"`
	Workers            int      `yaml:"workers"`
	RetryAttempts      int      `yaml:"retry_attempts"`
	Sources            []string `yaml:"sources"`
	FlightViewBaseURL  string   `yaml:"flightview_base_url"`
	FlightStatsBaseURL string   `yaml:"flightstats_base_url"`
	SearchPreviousDay  *bool    `yaml:"search_previous_day"`
}

func (l LookupConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (l LookupConfig) PreviousDay() bool {
	return l.SearchPreviousDay == nil || *l.SearchPreviousDay
}

type ParserConfig struct {
	SchemaPath string `yaml:"schema_path"`
}

type RenderConfig struct {
	MarkdownHeader string `yaml:"markdown_header"`
	MarkdownRow    string `yaml:"markdown_row"`
}

type SpoolConfig struct {
	Dir          string `yaml:"dir"`
	PrintCommand string `yaml:"print_command"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type WorkerConfig struct {
	RefreshMinutes     int `yaml:"refresh_minutes"`
	RefreshWindowHours int `yaml:"refresh_window_hours"`
	// MetricsAddress serves /metrics and /healthz for the worker; "-" disables it.
	MetricsAddress string `yaml:"metrics_address"`
}

// Default returns a configuration that runs locally against a SQLite file
// with no Redis or Kafka.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "flights.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.LookupTTLSeconds == 0 {
		c.Redis.LookupTTLSeconds = 900
	}
	if c.Kafka.ListsTopic == "" {
		c.Kafka.ListsTopic = "jcsy.lists"
	}
	if c.Kafka.ResultsTopic == "" {
		c.Kafka.ResultsTopic = "jcsy.results"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "jcsy-worker"
	}
	if c.Lookup.TimeoutSeconds == 0 {
		c.Lookup.TimeoutSeconds = 5
	}
	if c.Lookup.UserAgent == "" {
		c.Lookup.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if c.Lookup.RatePerSecond == 0 {
		c.Lookup.RatePerSecond = 2
	}
	if c.Lookup.Burst == 0 {
		c.Lookup.Burst = 2
	}
	if c.Lookup.Workers == 0 {
		c.Lookup.Workers = 4
	}
	if c.Lookup.RetryAttempts == 0 {
		c.Lookup.RetryAttempts = 2
	}
	if c.Lookup.FlightViewBaseURL == "" {
		c.Lookup.FlightViewBaseURL = "https://www.flightview.com/flight-tracker"
	}
	if c.Lookup.FlightStatsBaseURL == "" {
		c.Lookup.FlightStatsBaseURL = "https://www.flightstats.com/v2/flight-tracker"
	}
	if len(c.Lookup.Sources) == 0 {
		c.Lookup.Sources = []string{"flightview", "flightstats"}
	}
	if c.Spool.Dir == "" {
		c.Spool.Dir = "spool"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Worker.RefreshMinutes <= 0 {
		c.Worker.RefreshMinutes = 15
	}
	if c.Worker.RefreshWindowHours <= 0 {
		c.Worker.RefreshWindowHours = 36
	}
	if c.Worker.MetricsAddress == "" {
		c.Worker.MetricsAddress = ":9091"
	}
}

// LoadEnv loads a .env file from the working directory when one exists.
func LoadEnv() {
	_ = godotenv.Load()
}

// PathFromEnv returns CONFIG_PATH or the default path.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.setDefaults()

	return &cfg, nil
}
