package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything needed to run the API server. Values can come
// from flags or from DATADICT_* environment variables.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	// Relational version index. Dialect is "postgres" or "sqlite"; sqlite
	// with DSN ":memory:" is the development default.
	DatabaseDialect string `mapstructure:"database_dialect"`
	DatabaseDSN     string `mapstructure:"database_dsn"`

	// Document store. Leave MongoURI empty to use the in-memory store.
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		DatabaseDialect: "sqlite",
		DatabaseDSN:     ":memory:",
		MongoDatabase:   "datadict",
		AllowedOrigins:  []string{"http://localhost:3000"},
	}
}

// LoadConfig builds the runtime configuration from defaults overlaid with
// DATADICT_* environment variables and any values already bound on v.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	v.SetEnvPrefix("DATADICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can resolve it during
	// Unmarshal.
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("database_dialect", cfg.DatabaseDialect)
	v.SetDefault("database_dsn", cfg.DatabaseDSN)
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", cfg.MongoDatabase)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("debug", false)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that cannot produce a working server.
func (c Config) Validate() error {
	switch c.DatabaseDialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database dialect %q", c.DatabaseDialect)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.MongoURI != "" && c.MongoDatabase == "" {
		return fmt.Errorf("mongo database name is required when a mongo URI is set")
	}
	return nil
}
