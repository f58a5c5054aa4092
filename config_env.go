package tierauth

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envConfig mirrors the environment variable layout understood by
// [LoadConfigFromEnv]. Key material may be inline PEM or a path to a PEM file.
type envConfig struct {
	SigningMethod string `mapstructure:"TIERAUTH_SIGNING_METHOD"`
	PrivateKey    string `mapstructure:"TIERAUTH_PRIVATE_KEY"`
	PublicKey     string `mapstructure:"TIERAUTH_PUBLIC_KEY"`

	UpdateExpiration  string `mapstructure:"TIERAUTH_UPDATE_EXPIRATION"`
	SessionExpiration string `mapstructure:"TIERAUTH_SESSION_EXPIRATION"`
	AuthExpiration    string `mapstructure:"TIERAUTH_AUTH_EXPIRATION"`
	VisitorExpiration string `mapstructure:"TIERAUTH_VISITOR_EXPIRATION"`

	CookieName   string `mapstructure:"TIERAUTH_COOKIE_NAME"`
	CookiePath   string `mapstructure:"TIERAUTH_COOKIE_PATH"`
	CookieDomain string `mapstructure:"TIERAUTH_COOKIE_DOMAIN"`
	CookieSecure bool   `mapstructure:"TIERAUTH_COOKIE_SECURE"`

	AuditEnabled    bool `mapstructure:"TIERAUTH_AUDIT_ENABLED"`
	AuditBufferSize int  `mapstructure:"TIERAUTH_AUDIT_BUFFER_SIZE"`
	MetricsEnabled  bool `mapstructure:"TIERAUTH_METRICS_ENABLED"`
}

// LoadConfigFromEnv reads .env (if present), then builds and validates a
// [Config] from the environment via Viper. Missing .env is ignored (e.g. in
// CI). Env vars override .env. Returns an error if required fields are
// missing or invalid; per the error handling contract, a configuration error
// is fatal and must prevent the lifecycle from initializing.
func LoadConfigFromEnv() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("TIERAUTH_SIGNING_METHOD", MethodEd25519)
	v.SetDefault("TIERAUTH_PRIVATE_KEY", "")
	v.SetDefault("TIERAUTH_PUBLIC_KEY", "")
	v.SetDefault("TIERAUTH_UPDATE_EXPIRATION", "")
	v.SetDefault("TIERAUTH_SESSION_EXPIRATION", "")
	v.SetDefault("TIERAUTH_AUTH_EXPIRATION", "")
	v.SetDefault("TIERAUTH_VISITOR_EXPIRATION", "")
	v.SetDefault("TIERAUTH_COOKIE_NAME", "SESSID")
	v.SetDefault("TIERAUTH_COOKIE_PATH", "/")
	v.SetDefault("TIERAUTH_COOKIE_DOMAIN", "")
	v.SetDefault("TIERAUTH_COOKIE_SECURE", false)
	v.SetDefault("TIERAUTH_AUDIT_ENABLED", false)
	v.SetDefault("TIERAUTH_AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("TIERAUTH_METRICS_ENABLED", false)

	var env envConfig
	if err := v.Unmarshal(&env); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	cfg.Token.SigningMethod = env.SigningMethod
	cfg.Cookie = CookieConfig{
		Name:   env.CookieName,
		Path:   env.CookiePath,
		Domain: env.CookieDomain,
		Secure: env.CookieSecure,
	}
	cfg.Audit.Enabled = env.AuditEnabled
	if env.AuditBufferSize > 0 {
		cfg.Audit.BufferSize = env.AuditBufferSize
	}
	cfg.Metrics.Enabled = env.MetricsEnabled

	priv, err := resolveKeyMaterial(env.PrivateKey)
	if err != nil {
		return Config{}, fmt.Errorf("config: TIERAUTH_PRIVATE_KEY: %w", err)
	}
	pub, err := resolveKeyMaterial(env.PublicKey)
	if err != nil {
		return Config{}, fmt.Errorf("config: TIERAUTH_PUBLIC_KEY: %w", err)
	}
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub

	tiers := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"TIERAUTH_UPDATE_EXPIRATION", env.UpdateExpiration, &cfg.Token.UpdateExpiration},
		{"TIERAUTH_SESSION_EXPIRATION", env.SessionExpiration, &cfg.Token.SessionExpiration},
		{"TIERAUTH_AUTH_EXPIRATION", env.AuthExpiration, &cfg.Token.AuthExpiration},
		{"TIERAUTH_VISITOR_EXPIRATION", env.VisitorExpiration, &cfg.Token.VisitorExpiration},
	}
	for _, tier := range tiers {
		if tier.raw == "" {
			return Config{}, fmt.Errorf("config: %s must be set: %w", tier.name, ErrExpirationsNotConfigured)
		}
		d, err := time.ParseDuration(tier.raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: %s must be a positive duration: %w", tier.name, ErrExpirationsNotConfigured)
		}
		*tier.field = d
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveKeyMaterial returns the value verbatim when it looks like inline
// PEM, otherwise treats it as a file path. Whitespace is trimmed only for
// the classification; inline PEM bytes are passed through untouched.
func resolveKeyMaterial(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, ErrKeysNotConfigured
	}
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, err
	}
	return data, nil
}
