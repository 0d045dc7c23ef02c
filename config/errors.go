// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidTransport indicates the transport name is not recognized.
	ErrInvalidTransport = errors.New("config: invalid transport (must be \"memory\", \"dir\", or \"rpc\")")

	// ErrInvalidEndpoint indicates a malformed gateway endpoint.
	ErrInvalidEndpoint = errors.New("config: invalid endpoint")

	// ErrEmptyChannel indicates no channel link is configured.
	ErrEmptyChannel = errors.New("config: channel must not be empty")

	// ErrInvalidCatalog indicates the catalog backend is not recognized.
	ErrInvalidCatalog = errors.New("config: invalid catalog (must be \"bolt\" or \"sqlite\")")

	// ErrInvalidCompression indicates the compression scheme is not recognized.
	ErrInvalidCompression = errors.New("config: invalid compression (must be \"none\", \"lzw\", or \"gzip\")")

	// ErrInvalidPartSize indicates the part size is outside (0, MaxPartSize].
	ErrInvalidPartSize = errors.New("config: invalid part size")

	// ErrInvalidCacheSize indicates a negative cache size.
	ErrInvalidCacheSize = errors.New("config: cache size must not be negative")

	// ErrInvalidDNSUpstream indicates the DNS upstream is not host:port.
	ErrInvalidDNSUpstream = errors.New("config: invalid DNS upstream address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidNumber indicates a numeric setting could not be parsed.
	ErrInvalidNumber = errors.New("config: invalid numeric value")
)
