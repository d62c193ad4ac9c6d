// Package config loads the card service configuration from an optional TOML
// file, a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	DefaultAddr             = ":8080"
	DefaultProfileAPIURL    = "https://nyxcodeapi.onrender.com/discord/user"
	DefaultAvatarProxyURL   = "https://nyxcodeapi.onrender.com/discord/camilo404/avatar"
	DefaultLanyardSocketURL = "wss://api.lanyard.rest/socket"
	DefaultLanyardAPIURL    = "https://api.lanyard.rest/v1/users/"
	DefaultProfileRefresh   = "@every 15m"
	DefaultZipkinURL        = "http://localhost:9411/api/v2/spans"
)

// Config holds all configuration for the application.
type Config struct {
	DiscordUserID    string   `toml:"discord_user_id" validate:"required,numeric"`
	Addr             string   `toml:"addr" validate:"required"`
	ProfileAPIURL    string   `toml:"profile_api_url" validate:"required,url"`
	AvatarProxyURL   string   `toml:"avatar_proxy_url" validate:"omitempty,url"`
	LanyardSocketURL string   `toml:"lanyard_socket_url" validate:"required,url"`
	LanyardAPIURL    string   `toml:"lanyard_api_url" validate:"required,url"`
	ProfileRefresh   string   `toml:"profile_refresh" validate:"omitempty,cronspec"`
	StaticDir        string   `toml:"static_dir"`
	AllowedOrigins   []string `toml:"allowed_origins"`

	Log     LogConfig     `toml:"log"`
	Tracing TracingConfig `toml:"tracing"`
}

// LogConfig holds logging level and format.
type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

// TracingConfig controls span export for bus traffic.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	ZipkinURL   string `toml:"zipkin_url" validate:"omitempty,url"`
}

// Default returns the configuration used before any source is applied.
func Default() Config {
	return Config{
		Addr:             DefaultAddr,
		ProfileAPIURL:    DefaultProfileAPIURL,
		AvatarProxyURL:   DefaultAvatarProxyURL,
		LanyardSocketURL: DefaultLanyardSocketURL,
		LanyardAPIURL:    DefaultLanyardAPIURL,
		ProfileRefresh:   DefaultProfileRefresh,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "profilecard",
			ZipkinURL:   DefaultZipkinURL,
		},
	}
}

// New loads .env, then the TOML file named by CONFIG_FILE (if any), then
// environment overrides.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.DiscordUserID, "DISCORD_USER_ID")
	setString(&cfg.Addr, "APP_ADDR")
	setString(&cfg.ProfileAPIURL, "PROFILE_API_URL")
	setString(&cfg.AvatarProxyURL, "AVATAR_PROXY_URL")
	setString(&cfg.LanyardSocketURL, "LANYARD_SOCKET_URL")
	setString(&cfg.LanyardAPIURL, "LANYARD_API_URL")
	setString(&cfg.StaticDir, "STATIC_DIR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setString(&cfg.Tracing.ZipkinURL, "ZIPKIN_URL")

	// An explicitly empty PROFILE_REFRESH disables the schedule.
	if v, ok := os.LookupEnv("PROFILE_REFRESH"); ok {
		cfg.ProfileRefresh = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = enabled
		} else {
			slog.Warn("Ignoring invalid TRACING_ENABLED", "value", v)
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
