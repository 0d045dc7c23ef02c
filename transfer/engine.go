// Package transfer stores byte payloads as ordered sequences of messages in
// a remote channel and reads them back.
//
// Upload encrypts (optionally), splits and sends a payload, rolling back
// every sent message if any part fails. Download fetches the messages,
// reassembles and decrypts them, and keeps the result in an LRU cache keyed
// by caller-supplied handle.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bitfsorg/libmsgstore-go/bridge"
	"github.com/bitfsorg/libmsgstore-go/cache"
	"github.com/bitfsorg/libmsgstore-go/envelope"
	"github.com/bitfsorg/libmsgstore-go/storage"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// Handle identifies a logical file to the cache. Handles are allocated by
// the caller's metadata store.
type Handle int64

// Address is the ordered list of messages holding one uploaded payload. It
// is the only state a caller must persist to download the payload later.
type Address struct {
	// IDs are the message ids in part order.
	IDs []transport.MessageID `json:"ids"`

	// Size is the number of bytes stored remotely, summed over all parts.
	Size int64 `json:"size"`

	// Digest is SHA256 of the stored bytes in part order. Nil skips
	// verification on download.
	Digest []byte `json:"digest,omitempty"`
}

// Options configures an Engine.
type Options struct {
	// Credentials authenticate the transport session.
	Credentials transport.Credentials

	// ChannelLink names the target channel. A "dns:<domain>" link is
	// resolved through DNSResolver first.
	ChannelLink string

	// PartSize is the largest part sent as one message. Default
	// storage.DefaultPartSize.
	PartSize int64

	// PartSizeKB is the transport upload block size. Default storage.PartSizeKB.
	PartSizeKB int

	// CacheSize is the byte capacity of the download cache. Default
	// cache.DefaultCapacity.
	CacheSize int64

	// Sealer encrypts payloads. Nil disables encryption.
	Sealer *envelope.Sealer

	// Compression is applied to the whole payload before encryption.
	Compression storage.Compression

	// CacheOnUpload stores a successfully uploaded payload in the cache.
	CacheOnUpload bool

	// DNSResolver resolves dns: channel links. Nil uses the system resolver.
	DNSResolver transport.DNSResolver

	// Logger receives engine logs. The zero value is replaced by zerolog.Nop().
	Logger *zerolog.Logger
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Bridge       bridge.Stats
	CacheEntries int
	CacheBytes   int64
	Uploads      uint64
	Downloads    uint64
	CacheHits    uint64
	Rollbacks    uint64
}

// Engine runs upload and download pipelines against one channel.
// All methods are safe for concurrent use.
type Engine struct {
	opts   Options
	tr     transport.Transport
	bridge *bridge.Bridge
	target transport.Target
	cache  *cache.LRU[Handle]
	locks  *lockTable
	flight singleflight.Group
	log    zerolog.Logger

	indexMu sync.RWMutex
	index   map[string]*Address

	// lifeMu orders begin against Close so no pipeline joins inflight
	// after Close starts waiting.
	lifeMu   sync.RWMutex
	inflight sync.WaitGroup
	closed   atomic.Bool

	uploads   atomic.Uint64
	downloads atomic.Uint64
	hits      atomic.Uint64
	rollbacks atomic.Uint64
}

// New starts an engine on tr. It connects, authenticates and resolves the
// target channel through the bridge before returning.
func New(ctx context.Context, tr transport.Transport, opts Options) (*Engine, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: transport is nil", ErrTransport)
	}
	if opts.PartSize <= 0 {
		opts.PartSize = storage.DefaultPartSize
	}
	if opts.PartSizeKB <= 0 {
		opts.PartSizeKB = storage.PartSizeKB
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = cache.DefaultCapacity
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("component", "transfer").Logger()

	e := &Engine{
		opts:   opts,
		tr:     tr,
		bridge: bridge.New(log, 0),
		cache:  cache.New[Handle](opts.CacheSize),
		locks:  newLockTable(),
		log:    log,
		index:  make(map[string]*Address),
	}
	e.cache.OnEvict = func(h Handle, cost int64) {
		e.log.Debug().Int64("handle", int64(h)).Int64("bytes", cost).Msg("cache evict")
	}

	target, err := bridge.Call(ctx, e.bridge, func(ctx context.Context) (transport.Target, error) {
		link, err := transport.ResolveChannelLink(opts.ChannelLink, opts.DNSResolver)
		if err != nil {
			return transport.Target{}, err
		}
		if err := tr.Connect(ctx, opts.Credentials); err != nil {
			return transport.Target{}, err
		}
		return tr.ResolveTarget(ctx, link)
	})
	if err != nil {
		_ = e.bridge.Close()
		return nil, classify("connect", err)
	}
	e.target = target

	e.log.Info().
		Int64("channel", target.ID).
		Str("title", target.Title).
		Bool("encrypted", opts.Sealer.Enabled()).
		Str("compression", opts.Compression.String()).
		Int64("part_size", opts.PartSize).
		Msg("engine ready")

	return e, nil
}

// Target returns the resolved channel.
func (e *Engine) Target() transport.Target {
	return e.target
}

// Lookup returns the address of the most recent successful upload under
// name in this process.
func (e *Engine) Lookup(name string) (*Address, bool) {
	e.indexMu.RLock()
	defer e.indexMu.RUnlock()
	addr, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return addr.clone(), true
}

// CachedFile returns the cached payload for h, if any. The returned buffer
// is shared with the cache and must not be modified.
func (e *Engine) CachedFile(h Handle) ([]byte, bool) {
	buf, ok := e.cache.Get(h)
	if !ok || len(buf) == 0 {
		return nil, false
	}
	return buf, true
}

// Delete removes the messages ids from the channel and drops h from the
// cache. The cache entry is dropped even if the remote delete fails.
func (e *Engine) Delete(ctx context.Context, h Handle, ids []transport.MessageID) error {
	done, err := e.begin()
	if err != nil {
		return err
	}
	defer done()
	unlock := e.locks.lock(h)
	defer unlock()

	e.cache.Invalidate(h)
	e.forget(ids)

	if len(ids) == 0 {
		return nil
	}
	err = e.bridge.Do(ctx, func(ctx context.Context) error {
		return e.tr.DeleteMessages(ctx, e.target, ids)
	})
	if err != nil {
		return classify("delete", err)
	}
	e.log.Info().Int64("handle", int64(h)).Int("messages", len(ids)).Msg("deleted")
	return nil
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Bridge:       e.bridge.Stats(),
		CacheEntries: e.cache.Len(),
		CacheBytes:   e.cache.Size(),
		Uploads:      e.uploads.Load(),
		Downloads:    e.downloads.Load(),
		CacheHits:    e.hits.Load(),
		Rollbacks:    e.rollbacks.Load(),
	}
}

// Close rejects new calls, waits for running uploads, downloads and
// deletes (including any rollback) to finish, then stops the bridge.
// Safe to call more than once.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	if e.closed.Load() {
		e.lifeMu.Unlock()
		return nil
	}
	e.closed.Store(true)
	e.lifeMu.Unlock()

	e.inflight.Wait()
	err := e.bridge.Close()
	e.cache.Clear()
	return err
}

// begin registers a running pipeline. The returned func must be called
// when the pipeline ends.
func (e *Engine) begin() (func(), error) {
	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.inflight.Add(1)
	return e.inflight.Done, nil
}

func (e *Engine) remember(name string, addr *Address) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	e.index[name] = addr.clone()
}

// forget drops index entries that point at any of ids.
func (e *Engine) forget(ids []transport.MessageID) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[transport.MessageID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}

	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	for name, addr := range e.index {
		for _, id := range addr.IDs {
			if _, ok := gone[id]; ok {
				delete(e.index, name)
				break
			}
		}
	}
}

func (a *Address) clone() *Address {
	return &Address{
		IDs:    append([]transport.MessageID(nil), a.IDs...),
		Size:   a.Size,
		Digest: append([]byte(nil), a.Digest...),
	}
}
