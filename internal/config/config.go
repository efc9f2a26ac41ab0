// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for the revocation list (e.g. localhost:6379). Empty disables Redis; revocation falls back to Postgres.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// JWTKeysDir is the directory containing <kid>.pem private keys for the signing key ring.
	JWTKeysDir string `mapstructure:"JWT_KEYS_DIR"`
	// JWTKeyIDs is a comma-separated list of key IDs to load from JWTKeysDir, oldest first.
	JWTKeyIDs string `mapstructure:"JWT_KEY_IDS"`
	// JWTActiveKID is the key ID used to sign new tokens. Must appear in JWTKeyIDs.
	JWTActiveKID string `mapstructure:"JWT_ACTIVE_KID"`
	// JWTIssuer is the iss claim (e.g. "atg-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "atg-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// ResetTokenTTL is the password reset token lifetime (e.g. "1h").
	ResetTokenTTL string `mapstructure:"RESET_TOKEN_TTL"`
	// PruneInterval is how often the pruner sweeps expired rows (e.g. "1h").
	PruneInterval string `mapstructure:"PRUNE_INTERVAL"`
	// PruneGrace is how long expired rows are retained before deletion. Defaults to the refresh TTL or 24h, whichever is larger.
	PruneGrace string `mapstructure:"PRUNE_GRACE"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for security alerts and metrics (e.g. localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_KEYS_DIR", "keys")
	v.SetDefault("JWT_KEY_IDS", "")
	v.SetDefault("JWT_ACTIVE_KID", "")
	v.SetDefault("JWT_ISSUER", "atg-auth")
	v.SetDefault("JWT_AUDIENCE", "atg-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("PRUNE_INTERVAL", "1h")
	v.SetDefault("PRUNE_GRACE", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTActiveKID != "" {
		found := false
		for _, kid := range cfg.JWTKeyIDList() {
			if kid == cfg.JWTActiveKID {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New("config: JWT_ACTIVE_KID must appear in JWT_KEY_IDS")
		}
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ResetTTL parses ResetTokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	d, err := time.ParseDuration(c.ResetTokenTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// PruneEvery parses PruneInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) PruneEvery() time.Duration {
	d, err := time.ParseDuration(c.PruneInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// PruneGraceTTL parses PruneGrace as a time.Duration. When unset or invalid it
// returns the refresh TTL or 24h, whichever is larger, so expired rows outlive
// any token that could still name them in a reuse-detection chain.
func (c *Config) PruneGraceTTL() time.Duration {
	if d, err := time.ParseDuration(c.PruneGrace); err == nil && d > 0 {
		return d
	}
	if r := c.RefreshTTL(); r > 24*time.Hour {
		return r
	}
	return 24 * time.Hour
}

// JWTKeyIDList returns key IDs from the comma-separated JWTKeyIDs value.
func (c *Config) JWTKeyIDList() []string {
	if c == nil || c.JWTKeyIDs == "" {
		return nil
	}
	parts := strings.Split(c.JWTKeyIDs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
