// Package mandate registers pre-authorized spending envelopes with an
// external authorization endpoint.
//
// Both operations are best-effort: the orchestrator survives any failure
// here and falls back to per-call risk gating alone.
package mandate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnvelopeSpec describes the requested spending scope.
type EnvelopeSpec struct {
	AmountUSD  float64   `json:"amount_usd"`
	Categories []string  `json:"categories,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Reference  string    `json:"reference,omitempty"` // run id
}

// Envelope is the registered authorization.
type Envelope struct {
	ID         string    `json:"id"`
	AmountUSD  float64   `json:"amount_usd"`
	Categories []string  `json:"categories,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Client is the authorization endpoint boundary.
type Client interface {
	CreateEnvelope(ctx context.Context, spec EnvelopeSpec) (*Envelope, error)
	Fulfill(ctx context.Context, envelopeID, summary string) error
}

const defaultRequestTimeout = 15 * time.Second

// HTTPClient talks to an envelope endpoint, authenticating each request with
// a short-lived HS256 token minted from a shared secret.
type HTTPClient struct {
	BaseURL string
	Issuer  string
	Secret  []byte
	Client  *http.Client
	clock   func() time.Time
}

// NewHTTPClient builds an envelope client.
func NewHTTPClient(baseURL, issuer string, secret []byte) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Issuer:  issuer,
		Secret:  secret,
		Client:  &http.Client{Timeout: defaultRequestTimeout},
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (c *HTTPClient) WithClock(clock func() time.Time) *HTTPClient {
	c.clock = clock
	return c
}

func (c *HTTPClient) CreateEnvelope(ctx context.Context, spec EnvelopeSpec) (*Envelope, error) {
	var envelope Envelope
	if err := c.post(ctx, "/v1/envelopes", spec, &envelope); err != nil {
		return nil, fmt.Errorf("mandate: create envelope: %w", err)
	}
	return &envelope, nil
}

func (c *HTTPClient) Fulfill(ctx context.Context, envelopeID, summary string) error {
	payload := map[string]string{"summary": summary}
	path := fmt.Sprintf("/v1/envelopes/%s/fulfill", envelopeID)
	if err := c.post(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("mandate: fulfill envelope %s: %w", envelopeID, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	token, err := c.mintToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// mintToken issues a 5-minute HS256 bearer for one request.
func (c *HTTPClient) mintToken() (string, error) {
	now := c.clock()
	claims := jwt.RegisteredClaims{
		Issuer:    c.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
}
