package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves the gateway API on top of a Memory transport.
type fakeGateway struct {
	t       *testing.T
	mem     *Memory
	mu      sync.Mutex
	maxPart int64
	uploads []string // upload ids seen
}

type gwRequest struct {
	ID     int64             `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{t: t, mem: NewMemory()}
	require.NoError(t, g.mem.Connect(context.Background(), Credentials{}))
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "gw" || pass != "secret" {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/rpc":
		g.serveRPC(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/upload/"):
		g.serveUpload(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/media/"):
		g.serveMedia(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (g *fakeGateway) serveRPC(w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()
	var req gwRequest
	require.NoError(g.t, json.NewDecoder(r.Body).Decode(&req))

	reply := func(result any, rerr *rpcError) {
		raw, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: raw, Error: rerr})
	}

	if req.Method != "auth.signIn" && r.Header.Get(headerSession) != "tok" {
		reply(nil, &rpcError{Code: 401, Message: "no session"})
		return
	}

	var channel int64
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params[0], &channel)
	}

	switch req.Method {
	case "auth.signIn":
		var hash string
		require.NoError(g.t, json.Unmarshal(req.Params[1], &hash))
		if hash == "bad" {
			reply(nil, &rpcError{Code: 401, Message: "API_ID_INVALID"})
			return
		}
		reply(signInResult{Token: "tok"}, nil)

	case "channels.resolve":
		var link string
		require.NoError(g.t, json.Unmarshal(req.Params[0], &link))
		if link == "missing" {
			reply(nil, &rpcError{Code: 404, Message: "CHANNEL_INVALID"})
			return
		}
		target, err := g.mem.ResolveTarget(ctx, link)
		require.NoError(g.t, err)
		reply(target, nil)

	case "messages.sendMedia":
		var partID int64
		var name string
		require.NoError(g.t, json.Unmarshal(req.Params[1], &partID))
		require.NoError(g.t, json.Unmarshal(req.Params[2], &name))
		msg, err := g.mem.Send(ctx, Target{ID: channel}, PartRef{ID: partID, Name: name})
		if err != nil {
			reply(nil, &rpcError{Code: 400, Message: err.Error()})
			return
		}
		reply(msg, nil)

	case "channels.getMessages":
		var ids []MessageID
		require.NoError(g.t, json.Unmarshal(req.Params[1], &ids))
		msgs, err := g.mem.GetMessages(ctx, Target{ID: channel}, ids)
		require.NoError(g.t, err)
		reply(msgs, nil)

	case "channels.deleteMessages":
		var ids []MessageID
		require.NoError(g.t, json.Unmarshal(req.Params[1], &ids))
		require.NoError(g.t, g.mem.DeleteMessages(ctx, Target{ID: channel}, ids))
		reply(true, nil)

	default:
		reply(nil, &rpcError{Code: -32601, Message: "method not found"})
	}
}

func (g *fakeGateway) serveUpload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerSession) != "tok" {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	g.uploads = append(g.uploads, r.Header.Get(headerUploadID))

	data, err := io.ReadAll(r.Body)
	require.NoError(g.t, err)
	if g.maxPart > 0 && int64(len(data)) > g.maxPart {
		http.Error(w, "FILE_PARTS_INVALID", http.StatusRequestEntityTooLarge)
		return
	}
	kb, _ := strconv.Atoi(r.Header.Get(headerPartSizeKB))
	name := strings.TrimPrefix(r.URL.Path, "/upload/")
	ref, err := g.mem.UploadPart(context.Background(), data, name, kb, nil)
	require.NoError(g.t, err)
	_ = json.NewEncoder(w).Encode(ref)
}

func (g *fakeGateway) serveMedia(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/media/"), "/")
	require.Len(g.t, parts, 2)
	channel, _ := strconv.ParseInt(parts[0], 10, 64)
	id, _ := strconv.ParseInt(parts[1], 10, 64)

	msgs, err := g.mem.GetMessages(context.Background(), Target{ID: channel}, []MessageID{MessageID(id)})
	require.NoError(g.t, err)
	if msgs[0] == nil {
		http.Error(w, "MESSAGE_ID_INVALID", http.StatusNotFound)
		return
	}
	data, err := g.mem.DownloadMedia(context.Background(), msgs[0], nil)
	require.NoError(g.t, err)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func newTestRPC(t *testing.T, url string) *RPC {
	t.Helper()
	r, err := NewRPC(RPCConfig{URL: url, User: "gw", Password: "secret"})
	require.NoError(t, err)
	return r
}

func connectRPC(t *testing.T, r *RPC) Target {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, Credentials{APIID: 7, APIHash: "good", Session: "s"}))
	target, err := r.ResolveTarget(ctx, "https://t.me/+abc")
	require.NoError(t, err)
	return target
}

// --- RPC transport tests ---

func TestNewRPC_BadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "ftp://host", "http://"} {
		_, err := NewRPC(RPCConfig{URL: u})
		assert.ErrorIs(t, err, ErrConnectionFailed, u)
	}
}

func TestRPC_RoundTrip(t *testing.T) {
	g, srv := newFakeGateway(t)
	r := newTestRPC(t, srv.URL+"/")
	target := connectRPC(t, r)
	ctx := context.Background()

	data := []byte(strings.Repeat("gateway bytes ", 5000))
	var upDone, upTotal int64
	ref, err := r.UploadPart(ctx, data, "doc.pdf_part0.txt", 512, func(done, total int64) {
		upDone, upTotal = done, total
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), upDone)
	assert.Equal(t, int64(len(data)), upTotal)
	assert.Equal(t, "doc.pdf_part0.txt", ref.Name)

	msg, err := r.Send(ctx, target, ref)
	require.NoError(t, err)

	msgs, err := r.GetMessages(ctx, target, []MessageID{msg.ID, 999})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0])
	assert.Nil(t, msgs[1])

	var dlDone int64
	got, err := r.DownloadMedia(ctx, msgs[0], func(done, total int64) {
		assert.LessOrEqual(t, done, total)
		dlDone = done
	})
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), dlDone)

	require.NoError(t, r.DeleteMessages(ctx, target, []MessageID{msg.ID}))
	assert.False(t, g.mem.Has(target, msg.ID))

	_, err = r.DownloadMedia(ctx, msg, nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	require.Len(t, g.uploads, 1)
	assert.NotEmpty(t, g.uploads[0])
}

func TestRPC_EmptyPart(t *testing.T) {
	_, srv := newFakeGateway(t)
	r := newTestRPC(t, srv.URL)
	target := connectRPC(t, r)
	ctx := context.Background()

	ref, err := r.UploadPart(ctx, []byte{}, "empty_part0.txt", 512, nil)
	require.NoError(t, err)
	msg, err := r.Send(ctx, target, ref)
	require.NoError(t, err)

	got, err := r.DownloadMedia(ctx, msg, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRPC_NotConnected(t *testing.T) {
	_, srv := newFakeGateway(t)
	r := newTestRPC(t, srv.URL)
	_, err := r.ResolveTarget(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRPC_AuthFailures(t *testing.T) {
	_, srv := newFakeGateway(t)

	bad, err := NewRPC(RPCConfig{URL: srv.URL, User: "gw", Password: "wrong"})
	require.NoError(t, err)
	err = bad.Connect(context.Background(), Credentials{APIHash: "good"})
	assert.ErrorIs(t, err, ErrAuthFailed, "HTTP 401")

	r := newTestRPC(t, srv.URL)
	err = r.Connect(context.Background(), Credentials{APIHash: "bad"})
	assert.ErrorIs(t, err, ErrAuthFailed, "rpc error 401")
}

func TestRPC_TargetNotFound(t *testing.T) {
	_, srv := newFakeGateway(t)
	r := newTestRPC(t, srv.URL)
	require.NoError(t, r.Connect(context.Background(), Credentials{APIHash: "good"}))

	_, err := r.ResolveTarget(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRPC_PartTooLarge(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.maxPart = 8
	r := newTestRPC(t, srv.URL)
	connectRPC(t, r)

	_, err := r.UploadPart(context.Background(), []byte("123456789"), "big", 512, nil)
	assert.ErrorIs(t, err, ErrPartTooLarge)
}

func TestRPC_SendRejected(t *testing.T) {
	_, srv := newFakeGateway(t)
	r := newTestRPC(t, srv.URL)
	target := connectRPC(t, r)

	_, err := r.Send(context.Background(), target, PartRef{ID: 31337, Name: "ghost"})
	assert.ErrorIs(t, err, ErrRejected)
}

// --- RPCClient tests ---

func TestRPCClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusNotFound, ErrMessageNotFound},
		{http.StatusRequestEntityTooLarge, ErrPartTooLarge},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewRPCClient(srv.URL, RPCConfig{}, nil)
			err := c.Call(context.Background(), "any", nil, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRPCClient_IDMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rpcResponse{ID: 99999, Result: json.RawMessage(`1`)})
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, RPCConfig{}, nil)
	var out int
	err := c.Call(context.Background(), "any", nil, &out)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRPCClient_ConnectionError(t *testing.T) {
	c := NewRPCClient("http://localhost:1", RPCConfig{}, nil)
	err := c.Call(context.Background(), "any", nil, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestRPCClient_SendsParamsAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v", r.Header.Get("X-Extra"))

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1.0", req.JSONRPC)
		assert.Equal(t, "channels.resolve", req.Method)
		assert.Equal(t, []any{"link"}, req.Params)

		_ = json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`{"id":5}`)})
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, RPCConfig{User: "u", Password: "p"}, nil)
	c.SetHeader("X-Extra", "v")
	var target Target
	require.NoError(t, c.Call(context.Background(), "channels.resolve", []any{"link"}, &target))
	assert.Equal(t, int64(5), target.ID)
}
