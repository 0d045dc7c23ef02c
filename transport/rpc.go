package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// RPC error codes the gateway uses. They mirror the HTTP statuses of the
// byte endpoints.
const (
	codeUnauthorized    = 401
	codeNotFound        = 404
	codeEntityTooLarge  = 413
	codeTooManyRequests = 429
)

// RPCClient is a JSON-RPC 1.0 client for the message gateway's control API.
// It handles request serialization, authentication, and response parsing.
type RPCClient struct {
	url    string
	user   string
	pass   string
	client *http.Client
	header http.Header
	nextID atomic.Int64
}

// rpcRequest represents a JSON-RPC 1.0 request payload.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse represents a JSON-RPC 1.0 response payload.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError represents an error returned by the JSON-RPC server.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCClient creates a new JSON-RPC client posting to url. The client uses
// HTTP Basic Auth when cfg.User is non-empty.
func NewRPCClient(url string, cfg RPCConfig, client *http.Client) *RPCClient {
	if client == nil {
		client = newHTTPClient()
	}
	return &RPCClient{
		url:    url,
		user:   cfg.User,
		pass:   cfg.Password,
		client: client,
		header: make(http.Header),
	}
}

// SetHeader adds a header sent with every request. Not safe to call
// concurrently with requests.
func (c *RPCClient) SetHeader(key, value string) {
	c.header.Set(key, value)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Minute, // parts can be up to 2 GB
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}
}

// Call invokes a JSON-RPC method on the gateway. If params is nil, an empty
// params array is sent. If result is nil, the response result is discarded.
//
// Gateway error codes 401, 404, 413 and 429 map to ErrAuthFailed,
// ErrMessageNotFound, ErrPartTooLarge and ErrRateLimited.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("transport: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}

	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if rpcResp.Error != nil {
		return codeError(rpcResp.Error.Code, fmt.Sprintf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message), ErrRejected)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}

	return nil
}

func (c *RPCClient) auth(req *http.Request) {
	for k, v := range c.header {
		req.Header[k] = v
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
}

// statusError maps a non-2xx HTTP response to a transport error.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return codeError(resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)), ErrConnectionFailed)
}

func codeError(code int, detail string, fallback error) error {
	switch code {
	case codeUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, detail)
	case codeNotFound:
		return fmt.Errorf("%w: %s", ErrMessageNotFound, detail)
	case codeEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrPartTooLarge, detail)
	case codeTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	default:
		return fmt.Errorf("%w: %s", fallback, detail)
	}
}
