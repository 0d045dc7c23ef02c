package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxMediaResponseSize caps a media download body (2 GiB, above the largest
// part the channel accepts). This prevents memory exhaustion from a
// misbehaving gateway.
const MaxMediaResponseSize int64 = 1 << 31

// Gateway endpoints.
const (
	rpcPath    = "/rpc"
	uploadPath = "/upload/"
	mediaPath  = "/media/"

	headerSession    = "X-Session-Token"
	headerUploadID   = "X-Upload-Id"
	headerPartSizeKB = "X-Part-Size-KB"
)

// RPC is a Transport that talks to a message gateway. Control operations are
// JSON-RPC calls; part bytes travel over plain HTTP PUT and GET.
type RPC struct {
	base      string
	rpc       *RPCClient
	http      *http.Client
	connected bool
}

var _ Transport = (*RPC)(nil)

// NewRPC creates a gateway transport. cfg.URL is the gateway base URL.
func NewRPC(cfg RPCConfig) (*RPC, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: bad gateway URL %q", ErrConnectionFailed, cfg.URL)
	}
	base := strings.TrimRight(cfg.URL, "/")
	hc := newHTTPClient()
	return &RPC{
		base: base,
		rpc:  NewRPCClient(base+rpcPath, cfg, hc),
		http: hc,
	}, nil
}

type signInResult struct {
	Token string `json:"token"`
}

func (r *RPC) Connect(ctx context.Context, creds Credentials) error {
	var res signInResult
	err := r.rpc.Call(ctx, "auth.signIn", []any{creds.APIID, creds.APIHash, creds.Session}, &res)
	if err != nil {
		return err
	}
	if res.Token == "" {
		return fmt.Errorf("%w: empty session token", ErrAuthFailed)
	}
	r.rpc.SetHeader(headerSession, res.Token)
	r.connected = true
	return nil
}

func (r *RPC) ResolveTarget(ctx context.Context, link string) (Target, error) {
	if !r.connected {
		return Target{}, ErrNotConnected
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return Target{}, ErrInvalidLink
	}

	var t Target
	if err := r.rpc.Call(ctx, "channels.resolve", []any{link}, &t); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return Target{}, fmt.Errorf("%w: %s", ErrTargetNotFound, link)
		}
		return Target{}, err
	}
	if t.ID == 0 {
		return Target{}, fmt.Errorf("%w: channel without id", ErrInvalidResponse)
	}
	if t.Link == "" {
		t.Link = link
	}
	return t, nil
}

func (r *RPC) UploadPart(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error) {
	if !r.connected {
		return PartRef{}, ErrNotConnected
	}
	size := int64(len(data))
	body := &progressReader{r: bytes.NewReader(data), total: size, fn: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.base+uploadPath+url.PathEscape(name), body)
	if err != nil {
		return PartRef{}, fmt.Errorf("transport: create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(headerUploadID, uuid.NewString())
	req.Header.Set(headerPartSizeKB, strconv.Itoa(partSizeKB))
	r.rpc.auth(req)

	resp, err := r.http.Do(req)
	if err != nil {
		return PartRef{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return PartRef{}, err
	}

	var ref PartRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return PartRef{}, fmt.Errorf("%w: decode part: %w", ErrInvalidResponse, err)
	}
	if ref.Size != size {
		return PartRef{}, fmt.Errorf("%w: gateway stored %d of %d bytes", ErrInvalidResponse, ref.Size, size)
	}
	if size == 0 && progress != nil {
		progress(0, 0)
	}
	return ref, nil
}

func (r *RPC) Send(ctx context.Context, target Target, part PartRef) (*Message, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}
	var msg Message
	if err := r.rpc.Call(ctx, "messages.sendMedia", []any{target.ID, part.ID, part.Name}, &msg); err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, fmt.Errorf("%w: message without id", ErrInvalidResponse)
	}
	if msg.Target == 0 {
		msg.Target = target.ID
	}
	return &msg, nil
}

func (r *RPC) GetMessages(ctx context.Context, target Target, ids []MessageID) ([]*Message, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}
	if len(ids) == 0 {
		return []*Message{}, nil
	}
	var msgs []*Message
	if err := r.rpc.Call(ctx, "channels.getMessages", []any{target.ID, ids}, &msgs); err != nil {
		return nil, err
	}
	if len(msgs) != len(ids) {
		return nil, fmt.Errorf("%w: asked for %d messages, got %d", ErrInvalidResponse, len(ids), len(msgs))
	}
	for i, m := range msgs {
		if m == nil {
			continue
		}
		if m.ID != ids[i] {
			return nil, fmt.Errorf("%w: message %d at position of %d", ErrInvalidResponse, m.ID, ids[i])
		}
		if m.Target == 0 {
			m.Target = target.ID
		}
	}
	return msgs, nil
}

func (r *RPC) DownloadMedia(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Media == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNoMedia, msg.ID)
	}

	u := fmt.Sprintf("%s%s%d/%d", r.base, mediaPath, msg.Target, msg.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	r.rpc.auth(req)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	total := msg.Media.Size
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}
	body := &progressReader{r: io.LimitReader(resp.Body, MaxMediaResponseSize+1), total: total, fn: progress}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read media: %w", ErrConnectionFailed, err)
	}
	if int64(len(data)) > MaxMediaResponseSize {
		return nil, fmt.Errorf("%w: media exceeds %d bytes", ErrInvalidResponse, MaxMediaResponseSize)
	}
	if len(data) == 0 && progress != nil {
		progress(0, 0)
	}
	return data, nil
}

func (r *RPC) DeleteMessages(ctx context.Context, target Target, ids []MessageID) error {
	if !r.connected {
		return ErrNotConnected
	}
	if len(ids) == 0 {
		return nil
	}
	return r.rpc.Call(ctx, "channels.deleteMessages", []any{target.ID, ids}, nil)
}

// progressReader reports cumulative bytes read.
type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		if p.fn != nil {
			p.fn(p.done, max(p.total, p.done))
		}
	}
	return n, err
}
