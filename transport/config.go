package transport

import "fmt"

// RPCConfig holds the connection parameters for a message gateway.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// DefaultGatewayURL is used when no other layer sets a URL.
const DefaultGatewayURL = "http://localhost:8750"

// ResolveConfig merges gateway configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (MSGSTORE_RPC_URL, MSGSTORE_RPC_USER, MSGSTORE_RPC_PASS)
//  3. Defaults (lowest priority, local gateway without auth)
func ResolveConfig(flags *RPCConfig, env map[string]string) (*RPCConfig, error) {
	result := RPCConfig{URL: DefaultGatewayURL}

	// Layer 2: environment variables override defaults.
	if env != nil {
		if v, ok := env["MSGSTORE_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["MSGSTORE_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["MSGSTORE_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
	}

	// Layer 3: CLI flags have highest priority.
	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
	}

	if result.Password != "" && result.User == "" {
		return nil, fmt.Errorf("transport: gateway password set without a user (set --rpc-user or MSGSTORE_RPC_USER)")
	}

	return &result, nil
}
