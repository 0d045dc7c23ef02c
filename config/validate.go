// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCompressions = map[string]bool{
	"":     true,
	"none": true,
	"lzw":  true,
	"gzip": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	switch cfg.Transport {
	case TransportMemory, TransportDir:
	case TransportRPC:
		// An empty endpoint defers to MSGSTORE_RPC_URL or the local default.
		if cfg.Endpoint != "" {
			if err := validateEndpoint(cfg.Endpoint); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
			}
		}
	default:
		return ErrInvalidTransport
	}

	if strings.TrimSpace(cfg.Channel) == "" {
		return ErrEmptyChannel
	}

	if cfg.Catalog != CatalogBolt && cfg.Catalog != CatalogSQLite {
		return ErrInvalidCatalog
	}

	if !validCompressions[strings.ToLower(cfg.Compression)] {
		return ErrInvalidCompression
	}

	if cfg.PartSize <= 0 || cfg.PartSize > MaxPartSize {
		return fmt.Errorf("%w: %d", ErrInvalidPartSize, cfg.PartSize)
	}

	if cfg.CacheSize < 0 {
		return ErrInvalidCacheSize
	}

	if cfg.DNSUpstream != "" {
		if err := validateAddr(cfg.DNSUpstream); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDNSUpstream, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}

// validateEndpoint checks that endpoint is an absolute http(s) URL.
func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", endpoint)
	}
	return nil
}
