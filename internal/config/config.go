// Package config loads runtime settings from defaults, an optional YAML file,
// an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// TargetLayout is the wall-clock layout of target.date.
const TargetLayout = "2006-01-02T15:04:05"

// Config is the full runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Target   TargetConfig   `mapstructure:"target"`
	Trip     TripConfig     `mapstructure:"trip"`
	Share    ShareConfig    `mapstructure:"share"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Insight  InsightConfig  `mapstructure:"insight"`
	Tick     TickConfig     `mapstructure:"tick"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Offline  OfflineConfig  `mapstructure:"offline"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Log      LogConfig      `mapstructure:"log"`

	// TargetTime is target.date resolved in target.timezone.
	TargetTime time.Time `mapstructure:"-"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig holds the bearer token guarding write routes.
type AuthConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
}

// TargetConfig is the countdown target as a wall-clock date and zone.
type TargetConfig struct {
	Date     string `mapstructure:"date"`
	Timezone string `mapstructure:"timezone"`
}

// TripConfig names the destination used in prompts and share text.
type TripConfig struct {
	Destination string `mapstructure:"destination"`
	Location    string `mapstructure:"location"`
}

// ShareConfig holds the share title and page URL.
type ShareConfig struct {
	Title string `mapstructure:"title"`
	URL   string `mapstructure:"url"`
}

// GeminiConfig configures the insight provider.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// InsightConfig bounds the insight fetch.
type InsightConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TickConfig sets the countdown refresh interval.
type TickConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DatabaseConfig points at the optional Postgres database.
type DatabaseConfig struct {
	URL        string `mapstructure:"url"`
	Migrations string `mapstructure:"migrations"`
}

// RedisConfig points at the optional Redis asset cache.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// OfflineConfig names the versioned offline cache.
type OfflineConfig struct {
	CacheName string `mapstructure:"cache_name"`
}

// MQTTConfig configures the optional MQTT publisher.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. configPath may be empty, in which case
// ./config.yaml is used when present.
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	target, err := ParseTarget(cfg.Target.Date, cfg.Target.Timezone)
	if err != nil {
		return nil, err
	}
	cfg.TargetTime = target

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return nil, fmt.Errorf("invalid http.port %d", cfg.HTTP.Port)
	}
	if cfg.Tick.Interval <= 0 {
		return nil, fmt.Errorf("invalid tick.interval %s", cfg.Tick.Interval)
	}
	if cfg.Insight.Timeout <= 0 {
		return nil, fmt.Errorf("invalid insight.timeout %s", cfg.Insight.Timeout)
	}

	return &cfg, nil
}

// ParseTarget resolves a wall-clock date in the named zone.
func ParseTarget(date, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading target.timezone %q: %w", zone, err)
	}

	t, err := time.ParseInLocation(TargetLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing target.date %q: %w", date, err)
	}
	return t, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("auth.bearer_token", "")
	v.SetDefault("target.date", "2026-01-11T00:00:00")
	v.SetDefault("target.timezone", "Local")
	v.SetDefault("trip.destination", "Aruba")
	v.SetDefault("trip.location", "Oranjestad, Aruba")
	v.SetDefault("share.title", "Vacaciones Familia Rubilar")
	v.SetDefault("share.url", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-3-flash-preview")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/")
	v.SetDefault("insight.timeout", "8s")
	v.SetDefault("tick.interval", "1s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("offline.cache_name", "rubilar-aruba-v2")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "aruba")
	v.SetDefault("mqtt.client_id", "aruba-countdown")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("log.level", "info")
}
