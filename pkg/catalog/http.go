package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultListTimeout = 15 * time.Second

// HTTPProvider fetches the catalog from a discovery endpoint returning
// `{"actions": [...]}`.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPProvider builds a provider with a bounded default client.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: defaultListTimeout},
	}
}

type listResponse struct {
	Actions []Action `json:"actions"`
}

func (p *HTTPProvider) ListActions(ctx context.Context) ([]Action, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/actions", nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: list actions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	return body.Actions, nil
}
