package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultExecuteTimeout = 30 * time.Second

// HTTPGateway executes actions against a payment-enabled action endpoint.
// The endpoint handles protocol-level payment negotiation itself; this
// client only posts the call and reads the settled result.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPGateway builds a gateway with a bounded default client.
func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: defaultExecuteTimeout},
	}
}

type executeRequest struct {
	ActionID   string         `json:"action_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (g *HTTPGateway) Execute(ctx context.Context, actionID string, parameters map[string]any) (*Result, error) {
	body, err := json.Marshal(executeRequest{ActionID: actionID, Parameters: parameters})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: execute %s: %w", actionID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: execute %s: status %d", actionID, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gateway: decode result for %s: %w", actionID, err)
	}
	return &result, nil
}
