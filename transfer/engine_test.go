package transfer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmsgstore-go/envelope"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// --- Helper functions ---

const testPartSize = 16

func newTestEngine(t *testing.T, tr transport.Transport, mod func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		Credentials: transport.Credentials{APIID: 1, APIHash: "hash", Session: "test"},
		ChannelLink: "https://t.me/+test",
		PartSize:    testPartSize,
		CacheSize:   1 << 20,
	}
	if mod != nil {
		mod(&opts)
	}
	e, err := New(context.Background(), tr, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestSealer(t *testing.T) *envelope.Sealer {
	t.Helper()
	key, err := envelope.GenerateKey()
	require.NoError(t, err)
	s, err := envelope.NewSealerFromString(key)
	require.NoError(t, err)
	return s
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func upload(t *testing.T, e *Engine, h Handle, data []byte, name string) *Address {
	t.Helper()
	addr, err := e.Upload(context.Background(), h, bytes.NewReader(data), name, nil)
	require.NoError(t, err)
	require.NotNil(t, addr)
	return addr
}

// fakeResolver returns canned TXT records.
type fakeResolver map[string][]string

func (f fakeResolver) LookupTXT(name string) ([]string, error) {
	if txts, ok := f[name]; ok {
		return txts, nil
	}
	return nil, errors.New("NXDOMAIN")
}

// --- New tests ---

func TestNew_ResolvesTarget(t *testing.T) {
	mem := transport.NewMemory()
	e := newTestEngine(t, mem, nil)

	assert.Equal(t, "https://t.me/+test", e.Target().Link)
	assert.NotZero(t, e.Target().ID)
	assert.Equal(t, uint64(1), e.Stats().Bridge.Completed, "startup runs as one bridged operation")
}

func TestNew_DNSLink(t *testing.T) {
	mem := transport.NewMemory()
	e := newTestEngine(t, mem, func(o *Options) {
		o.ChannelLink = "dns:files.example.com"
		o.DNSResolver = fakeResolver{"_msgstore.files.example.com": {"channel=https://t.me/+dns"}}
	})
	assert.Equal(t, "https://t.me/+dns", e.Target().Link)
}

func TestNew_ConnectFailure(t *testing.T) {
	mock := transport.NewMockFrom(transport.NewMemory())
	mock.ConnectFn = func(ctx context.Context, creds transport.Credentials) error {
		return transport.ErrAuthFailed
	}

	_, err := New(context.Background(), mock, Options{ChannelLink: "x"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrAuthFailed)
}

func TestNew_TargetNotFound(t *testing.T) {
	mock := transport.NewMockFrom(transport.NewMemory())
	mock.ResolveTargetFn = func(ctx context.Context, link string) (transport.Target, error) {
		return transport.Target{}, transport.ErrTargetNotFound
	}

	_, err := New(context.Background(), mock, Options{ChannelLink: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_NilTransport(t *testing.T) {
	_, err := New(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestNew_InvalidLink(t *testing.T) {
	_, err := New(context.Background(), transport.NewMemory(), Options{})
	assert.ErrorIs(t, err, transport.ErrInvalidLink)
}

// --- Lookup / Delete / Close tests ---

func TestLookup(t *testing.T) {
	e := newTestEngine(t, transport.NewMemory(), nil)

	_, ok := e.Lookup("report.pdf")
	assert.False(t, ok)

	addr := upload(t, e, 1, payload(40), "report.pdf")
	got, ok := e.Lookup("report.pdf")
	require.True(t, ok)
	assert.Equal(t, addr, got)

	// Returned addresses are copies.
	got.IDs[0] = -1
	again, _ := e.Lookup("report.pdf")
	assert.Equal(t, addr.IDs, again.IDs)
}

func TestDelete(t *testing.T) {
	mem := transport.NewMemory()
	e := newTestEngine(t, mem, nil)
	ctx := context.Background()

	addr := upload(t, e, 7, payload(40), "gone.bin")
	_, err := e.Download(ctx, 7, addr, nil, 0)
	require.NoError(t, err)
	_, cached := e.CachedFile(7)
	require.True(t, cached)

	require.NoError(t, e.Delete(ctx, 7, addr.IDs))

	assert.Equal(t, 0, mem.Len())
	_, cached = e.CachedFile(7)
	assert.False(t, cached)
	_, ok := e.Lookup("gone.bin")
	assert.False(t, ok)

	_, err = e.Download(ctx, 7, addr, nil, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_InvalidatesEvenOnFailure(t *testing.T) {
	mem := transport.NewMemory()
	mock := transport.NewMockFrom(mem)
	e := newTestEngine(t, mock, func(o *Options) { o.CacheOnUpload = true })

	addr := upload(t, e, 3, payload(10), "f")
	mock.DeleteMessagesFn = func(ctx context.Context, target transport.Target, ids []transport.MessageID) error {
		return transport.ErrRateLimited
	}

	err := e.Delete(context.Background(), 3, addr.IDs)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrRateLimited)
	_, cached := e.CachedFile(3)
	assert.False(t, cached)
}

func TestClose(t *testing.T) {
	e, err := New(context.Background(), transport.NewMemory(), Options{ChannelLink: "x"})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Upload(context.Background(), 1, bytes.NewReader(nil), "x", nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.Download(context.Background(), 1, &Address{IDs: []transport.MessageID{1}}, nil, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Delete(context.Background(), 1, nil), ErrClosed)
}

// --- Lock table tests ---

func TestLockTable_SerializesHandle(t *testing.T) {
	lt := newLockTable()
	var inFlight, maxInFlight atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lt.lock(5)
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			inFlight.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, 0, lt.len(), "released locks are dropped")
}

func TestLockTable_IndependentHandles(t *testing.T) {
	lt := newLockTable()
	unlockA := lt.lock(1)
	unlockB := lt.lock(2) // must not block
	assert.Equal(t, 2, lt.len())
	unlockA()
	unlockB()
	assert.Equal(t, 0, lt.len())
}
