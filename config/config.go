// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads msgstore settings from a key = value file, the
// process environment, and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	TransportMemory = "memory"
	TransportDir    = "dir"
	TransportRPC    = "rpc"

	CatalogBolt   = "bolt"
	CatalogSQLite = "sqlite"

	// MaxPartSize is the largest part the remote side accepts.
	MaxPartSize int64 = 2_000_000_000

	// DefaultCacheSize is the transfer cache capacity in bytes.
	DefaultCacheSize int64 = 5_000_000_000
)

// Config holds all msgstore settings.
type Config struct {
	DataDir       string
	Transport     string
	Endpoint      string
	APIID         int
	APIHash       string
	Session       string
	Channel       string
	EncryptionKey string
	Compression   string
	PartSize      int64
	CacheSize     int64
	Catalog       string
	CatalogPath   string
	DNSUpstream   string
	LogLevel      string
	LogFile       string
}

// DefaultDataDir returns ~/.msgstore, or .msgstore in the working directory
// when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".msgstore"
	}
	return filepath.Join(home, ".msgstore")
}

// DefaultConfig returns a configuration that stores everything under the
// default data directory.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultDataDir(),
		Transport:   TransportDir,
		Session:     "msgstore",
		Channel:     "local",
		Compression: "none",
		PartSize:    MaxPartSize,
		CacheSize:   DefaultCacheSize,
		Catalog:     CatalogBolt,
		LogLevel:    "info",
	}
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// ResolveCatalogPath returns CatalogPath, or a backend-specific file under
// DataDir when it is unset.
func (c Config) ResolveCatalogPath() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	if c.Catalog == CatalogSQLite {
		return filepath.Join(c.DataDir, "catalog.sqlite")
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// LoadConfig reads a config file of "key = value" lines on top of
// DefaultConfig. Blank lines and lines starting with '#' are skipped;
// unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "transport":
		c.Transport = strings.ToLower(value)
	case "endpoint":
		c.Endpoint = value
	case "apiid":
		c.APIID, err = parseInt(key, value)
	case "apihash":
		c.APIHash = value
	case "session":
		c.Session = value
	case "channel":
		c.Channel = value
	case "encryptionkey":
		c.EncryptionKey = value
	case "compression":
		c.Compression = strings.ToLower(value)
	case "partsize":
		c.PartSize, err = parseInt64(key, value)
	case "cachesize":
		c.CacheSize, err = parseInt64(key, value)
	case "catalog":
		c.Catalog = strings.ToLower(value)
	case "catalogpath":
		c.CatalogPath = value
	case "dnsupstream":
		c.DNSUpstream = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %q", ErrInvalidNumber, key, value)
	}
	return n, nil
}

func parseInt64(key, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %q", ErrInvalidNumber, key, value)
	}
	return n, nil
}

// SaveConfig writes cfg to path, creating parent directories. The file is
// private to the owner since it may hold credentials.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# msgstore Configuration\n\n")
	for _, kv := range [][2]string{
		{"datadir", cfg.DataDir},
		{"transport", cfg.Transport},
		{"endpoint", cfg.Endpoint},
		{"apiid", strconv.Itoa(cfg.APIID)},
		{"apihash", cfg.APIHash},
		{"session", cfg.Session},
		{"channel", cfg.Channel},
		{"encryptionkey", cfg.EncryptionKey},
		{"compression", cfg.Compression},
		{"partsize", strconv.FormatInt(cfg.PartSize, 10)},
		{"cachesize", strconv.FormatInt(cfg.CacheSize, 10)},
		{"catalog", cfg.Catalog},
		{"catalogpath", cfg.CatalogPath},
		{"dnsupstream", cfg.DNSUpstream},
		{"loglevel", cfg.LogLevel},
		{"logfile", cfg.LogFile},
	} {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// envKeys maps environment variable names to config keys.
var envKeys = []struct{ env, key string }{
	{"APP_ID", "apiid"},
	{"APP_HASH", "apihash"},
	{"SESSION_NAME", "session"},
	{"CHANNEL_LINK", "channel"},
	{"ENCRYPTION_KEY", "encryptionkey"},
	{"FILE_MAX_SIZE_BYTES", "partsize"},
	{"CACHE_MAXSIZE", "cachesize"},
	{"WEB_DB_PATH", "catalogpath"},
	{"MSGSTORE_DATADIR", "datadir"},
	{"MSGSTORE_TRANSPORT", "transport"},
	{"MSGSTORE_ENDPOINT", "endpoint"},
	{"MSGSTORE_COMPRESSION", "compression"},
	{"MSGSTORE_CATALOG", "catalog"},
	{"MSGSTORE_DNS_UPSTREAM", "dnsupstream"},
	{"MSGSTORE_LOGLEVEL", "loglevel"},
	{"MSGSTORE_LOGFILE", "logfile"},
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, env map[string]string) error {
	for _, e := range envKeys {
		v := strings.TrimSpace(env[e.env])
		if v == "" {
			continue
		}
		if err := cfg.set(e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// LoadDotEnv loads variables from a .env file into the process
// environment. Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
