// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package config loads Keyward configuration from defaults, an optional YAML
// file, environment variables and command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/keyward/keyward/internal/auth"
)

// Environment variables consulted when the matching value is empty.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSigningKey  = "KEYWARD_SIGNING_KEY"
)

// Store kinds.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the root configuration.
type Config struct {
	DatabaseURL string       `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	LogFormat   string       `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	Store       string       `koanf:"store" json:"store,omitempty" jsonschema:"enum=postgres,enum=memory"`
	Token       TokenConfig  `koanf:"token" json:"token,omitempty"`
	Hasher      HasherConfig `koanf:"hasher" json:"hasher,omitempty"`
}

// TokenConfig configures session tokens.
type TokenConfig struct {
	Issuer     string        `koanf:"issuer" json:"issuer,omitempty"`
	TTL        time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"type=string,description=Go duration such as 1h or 30m"`
	SigningKey string        `koanf:"signing_key" json:"signing_key,omitempty" jsonschema:"minLength=32"`
	Leeway     time.Duration `koanf:"leeway" json:"leeway,omitempty" jsonschema:"type=string"`
}

// HasherConfig configures the argon2id work factor and hash concurrency.
type HasherConfig struct {
	Time          uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1,maximum=32"`
	MemoryKiB     uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=8192,maximum=1048576"`
	Threads       uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
	SaltLen       uint32 `koanf:"salt_len" json:"salt_len,omitempty" jsonschema:"minimum=16"`
	KeyLen        uint32 `koanf:"key_len" json:"key_len,omitempty" jsonschema:"minimum=16"`
	MaxConcurrent int    `koanf:"max_concurrent" json:"max_concurrent,omitempty" jsonschema:"minimum=0"`
}

// Argon2Params converts the hasher section.
func (h HasherConfig) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Time:      h.Time,
		MemoryKiB: h.MemoryKiB,
		Threads:   h.Threads,
		SaltLen:   h.SaltLen,
		KeyLen:    h.KeyLen,
	}
}

// JWTConfig converts the token section.
func (t TokenConfig) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		SigningKey: []byte(t.SigningKey),
		Issuer:     t.Issuer,
		TTL:        t.TTL,
		Leeway:     t.Leeway,
	}
}

func defaults() map[string]any {
	p := auth.DefaultArgon2Params
	return map[string]any{
		"log_format":            "json",
		"store":                 StorePostgres,
		"token.issuer":          "keyward",
		"token.ttl":             auth.DefaultTokenTTL,
		"token.leeway":          time.Duration(0),
		"hasher.time":           p.Time,
		"hasher.memory_kib":     p.MemoryKiB,
		"hasher.threads":        p.Threads,
		"hasher.salt_len":       p.SaltLen,
		"hasher.key_len":        p.KeyLen,
		"hasher.max_concurrent": 0,
	}
}

// flagKeys maps command-line flag names to configuration keys. Other flags
// are ignored.
var flagKeys = map[string]string{
	"database-url": "database_url",
	"log-format":   "log_format",
	"store":        "store",
}

// Load builds a Config. path may be empty; flags may be nil. Values apply in
// order: defaults, the YAML file at path, changed flags, then environment
// variables for values still empty. The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.Token.SigningKey == "" {
		cfg.Token.SigningKey = os.Getenv(EnvSigningKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return invalid("log_format", "log format must be json or text, got %q", c.LogFormat)
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return invalid("database_url", "database URL is required for the postgres store (set %s)", EnvDatabaseURL)
		}
	case StoreMemory:
	default:
		return invalid("store", "store must be postgres or memory, got %q", c.Store)
	}

	if len(c.Token.SigningKey) < auth.MinSigningKeyLength {
		return invalid("token.signing_key", "signing key must be at least %d bytes (set %s)", auth.MinSigningKeyLength, EnvSigningKey)
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "token TTL must be positive")
	}
	if c.Token.Leeway < 0 {
		return invalid("token.leeway", "token leeway cannot be negative")
	}
	if c.Hasher.Time > auth.MaxArgon2Time {
		return invalid("hasher.time", "hasher time cannot exceed %d", auth.MaxArgon2Time)
	}
	if c.Hasher.MemoryKiB > auth.MaxArgon2MemoryKiB {
		return invalid("hasher.memory_kib", "hasher memory cannot exceed %d KiB", auth.MaxArgon2MemoryKiB)
	}
	if c.Hasher.MaxConcurrent < 0 {
		return invalid("hasher.max_concurrent", "max concurrent hashes cannot be negative")
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}
