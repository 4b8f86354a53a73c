package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// StateStoreType selects where pending OAuth state values are kept.
type StateStoreType string

const (
	StateStoreMemory StateStoreType = "memory"
	StateStoreRedis  StateStoreType = "redis"
)

// EnvPrefix is prepended to every environment variable, e.g. PAGEPOST_HTTP_PORT.
const EnvPrefix = "PAGEPOST"

// ServerConfig holds all configuration for the service and the CLI.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// LinkedIn app registration. RedirectURI must match the app settings exactly.
	ClientID     string   `mapstructure:"LINKEDIN_CLIENT_ID"`
	ClientSecret string   `mapstructure:"LINKEDIN_CLIENT_SECRET"`
	RedirectURI  string   `mapstructure:"LINKEDIN_REDIRECT_URI"`
	Scopes       []string `mapstructure:"LINKEDIN_SCOPES"`

	HTTPTimeout    time.Duration `mapstructure:"HTTP_TIMEOUT"`
	UploadTimeout  time.Duration `mapstructure:"UPLOAD_TIMEOUT"`
	UploadDir      string        `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes int64         `mapstructure:"UPLOAD_MAX_BYTES"`

	ValidateState bool           `mapstructure:"OAUTH_VALIDATE_STATE"`
	StateTTL      time.Duration  `mapstructure:"OAUTH_STATE_TTL"`
	StateStore    StateStoreType `mapstructure:"STATE_STORE"`
	RedisAddr     string         `mapstructure:"REDIS_ADDR"`
	RedisPassword string         `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int            `mapstructure:"REDIS_DB"`

	// Older deployments posted to the first administered page straight from the callback.
	CallbackAutoPost     bool   `mapstructure:"CALLBACK_AUTO_POST"`
	CallbackAutoPostText string `mapstructure:"CALLBACK_AUTO_POST_TEXT"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
}

// Credentials is the immutable client registration handed to the LinkedIn client.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Credentials returns a copy of the LinkedIn app credentials.
func (c *ServerConfig) Credentials() Credentials {
	scopes := make([]string, len(c.Scopes))
	copy(scopes, c.Scopes)

	return Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		Scopes:       scopes,
	}
}

// Validate reports settings the server cannot start without.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("LINKEDIN_CLIENT_ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("LINKEDIN_CLIENT_SECRET is required"))
	}
	if c.RedirectURI == "" {
		errs = append(errs, errors.New("LINKEDIN_REDIRECT_URI is required"))
	}
	switch c.StateStore {
	case StateStoreMemory:
	case StateStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when STATE_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STATE_STORE %q", c.StateStore))
	}

	return errors.Join(errs...)
}

// LoadConfig reads configuration from an optional .env file, an optional
// pagepost.yaml, environment variables and defaults, in increasing precedence
// for env over file.
func LoadConfig() (*ServerConfig, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("pagepost")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/pagepost/")
	v.AddConfigPath("$HOME/.pagepost")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Comma separated lists from env arrive as a single element.
	cfg.Scopes = splitScopes(v.GetStringSlice("LINKEDIN_SCOPES"))
	cfg.StateStore = StateStoreType(strings.ToLower(v.GetString("STATE_STORE")))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	v.SetDefault("LINKEDIN_CLIENT_ID", "")
	v.SetDefault("LINKEDIN_CLIENT_SECRET", "")
	v.SetDefault("LINKEDIN_REDIRECT_URI", "http://localhost:3000/linkedin/callback")
	v.SetDefault("LINKEDIN_SCOPES", DefaultScopes)

	v.SetDefault("HTTP_TIMEOUT", "5s")
	v.SetDefault("UPLOAD_TIMEOUT", "10s")
	v.SetDefault("UPLOAD_DIR", os.TempDir())
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)

	v.SetDefault("OAUTH_VALIDATE_STATE", true)
	v.SetDefault("OAUTH_STATE_TTL", "10m")
	v.SetDefault("STATE_STORE", string(StateStoreMemory))
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CALLBACK_AUTO_POST", false)
	v.SetDefault("CALLBACK_AUTO_POST_TEXT", "Hello from LinkedIn API!")

	v.SetDefault("OTEL_SERVICE_NAME", "pagepost")
	v.SetDefault("TRACING_ENABLED", false)
}

// DefaultScopes are the permissions requested on the authorization screen.
var DefaultScopes = []string{
	"openid",
	"profile",
	"email",
	"rw_organization_admin",
	"r_basicprofile",
	"w_organization_social",
	"r_organization_social",
}

func splitScopes(raw []string) []string {
	var scopes []string
	for _, entry := range raw {
		for _, s := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
