package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/libmsgstore-go/catalog"
	"github.com/bitfsorg/libmsgstore-go/config"
	"github.com/bitfsorg/libmsgstore-go/envelope"
	"github.com/bitfsorg/libmsgstore-go/logging"
	"github.com/bitfsorg/libmsgstore-go/storage"
	"github.com/bitfsorg/libmsgstore-go/transfer"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// loadConfig resolves settings from defaults, the config file, the dotenv
// file and the environment, in increasing priority. A missing default config
// file is not an error; a missing explicit one is unless allowMissing.
func loadConfig(g globals, allowMissing bool) (config.Config, error) {
	if g.envPath != "" {
		if err := config.LoadDotEnv(g.envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, err
		}
	}
	env := config.Environ()

	path := g.configPath
	if path == "" {
		dataDir := config.DefaultDataDir()
		if v := env["MSGSTORE_DATADIR"]; v != "" {
			dataDir = v
		}
		path = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	if errors.Is(err, config.ErrConfigNotFound) && g.configPath != "" && !allowMissing {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app holds the wired components for one command invocation.
type app struct {
	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
	engine    *transfer.Engine
	catalog   catalog.Store
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, logCloser: closer}

	tr, err := newTransport(cfg, config.Environ())
	if err != nil {
		a.Close()
		return nil, err
	}

	sealer, err := envelope.NewSealerFromString(cfg.EncryptionKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	compression, err := storage.ParseCompression(cfg.Compression)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := transfer.Options{
		Credentials: transport.Credentials{
			APIID:   cfg.APIID,
			APIHash: cfg.APIHash,
			Session: cfg.Session,
		},
		ChannelLink: cfg.Channel,
		PartSize:    cfg.PartSize,
		CacheSize:   cfg.CacheSize,
		Sealer:      sealer,
		Compression: compression,
		Logger:      &log,
	}
	if cfg.DNSUpstream != "" {
		opts.DNSResolver = transport.NewDNSSECResolver(cfg.DNSUpstream)
	}

	a.engine, err = transfer.New(ctx, tr, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.catalog, err = catalog.Open(cfg.Catalog, cfg.ResolveCatalogPath())
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Debug().
		Str("transport", cfg.Transport).
		Str("catalog", cfg.Catalog).
		Bool("encrypted", sealer.Enabled()).
		Str("compression", compression.String()).
		Msg("msgstore ready")
	return a, nil
}

func newTransport(cfg config.Config, env map[string]string) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return transport.NewMemory(), nil
	case config.TransportDir:
		return transport.NewDir(filepath.Join(cfg.DataDir, "channel"))
	case config.TransportRPC:
		rc, err := transport.ResolveConfig(&transport.RPCConfig{URL: cfg.Endpoint}, env)
		if err != nil {
			return nil, err
		}
		return transport.NewRPC(*rc)
	default:
		return nil, config.ErrInvalidTransport
	}
}

// Close releases every component that was opened.
func (a *app) Close() {
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close catalog")
		}
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close engine")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
