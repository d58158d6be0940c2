// Package config loads deployment-level configuration (data directory,
// external tool paths, optional S3 export target, optional Postgres
// mirror) from a JSON file. Catalog-level, versioned settings (regions,
// languages, layout policy — §3/§6 of the spec) are a different concern
// and live in the Catalog Store's Setting table (see internal/store).
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config describes the application level configuration loaded from json.
// Every section is optional; absence just disables the corresponding
// capability (no S3 section ⇒ export-roms can't target s3://, no Postgres
// DSN ⇒ the webapi serves straight off the SQLite catalog).
type Config struct {
	DataDir  string         `json:"data_dir,omitempty"`
	Tools    ToolPaths      `json:"tools,omitempty"`
	S3       *S3Config      `json:"s3,omitempty"`
	Postgres *PostgresConfig `json:"postgres,omitempty"`
}

// ToolPaths carries explicit overrides for external tool discovery (§4.9
// "explicit path in config → $PATH"). An empty string falls back to PATH
// lookup at probe time.
type ToolPaths struct {
	SevenZip   string `json:"sevenzip,omitempty"`
	Chdman     string `json:"chdman,omitempty"`
	Maxcso     string `json:"maxcso,omitempty"`
	DolphinTool string `json:"dolphin_tool,omitempty"`
	Flips      string `json:"flips,omitempty"`
	Wit        string `json:"wit,omitempty"`
	Bchunk     string `json:"bchunk,omitempty"`
	Xdelta3    string `json:"xdelta3,omitempty"`
	Nsz        string `json:"nsz,omitempty"`
	Ctrtool    string `json:"ctrtool,omitempty"`
}

// S3Config holds the options for the optional export-roms S3 target.
type S3Config struct {
	Host            string `json:"host"`
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	ForcePathStyle  bool   `json:"force_path_style"`
}

// PostgresConfig holds the DSN for the optional webapi read mirror.
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// LoadFirst tries to load configuration from the given paths, returning the
// first successfully decoded configuration. A missing config everywhere is
// not an error — Config{} with defaults is returned so the CLI can run
// with no config file at all.
func LoadFirst(paths ...string) (*Config, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := Load(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return &Config{}, nil
}

// Load reads configuration from a single json file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate performs basic validation of the optional sections actually
// present.
func (c *Config) Validate() error {
	if c.S3 != nil {
		if c.S3.Host == "" {
			return fmt.Errorf("config.s3.host must be set when s3 is configured")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("config.s3.bucket must be set when s3 is configured")
		}
	}
	if c.Postgres != nil && c.Postgres.DSN == "" {
		return fmt.Errorf("config.postgres.dsn must be set when postgres is configured")
	}
	return nil
}
