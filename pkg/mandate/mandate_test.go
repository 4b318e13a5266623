package mandate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/mandate"
)

func TestCreateEnvelope(t *testing.T) {
	secret := []byte("test-secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/envelopes", r.URL.Path)

		// The bearer token must verify against the shared secret.
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		require.NoError(t, err)
		claims := token.Claims.(*jwt.RegisteredClaims)
		assert.Equal(t, "steward-test", claims.Issuer)

		var spec mandate.EnvelopeSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		_ = json.NewEncoder(w).Encode(mandate.Envelope{
			ID:        "env-42",
			AmountUSD: spec.AmountUSD,
			ExpiresAt: spec.ExpiresAt,
		})
	}))
	defer srv.Close()

	client := mandate.NewHTTPClient(srv.URL, "steward-test", secret)
	env, err := client.CreateEnvelope(context.Background(), mandate.EnvelopeSpec{
		AmountUSD: 1.5,
		ExpiresAt: time.Now().Add(time.Hour),
		Reference: "run-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "env-42", env.ID)
	assert.Equal(t, 1.5, env.AmountUSD)
}

func TestFulfill(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := mandate.NewHTTPClient(srv.URL, "steward-test", []byte("s"))
	require.NoError(t, client.Fulfill(context.Background(), "env-42", "done"))
	assert.Equal(t, "/v1/envelopes/env-42/fulfill", path)
}

func TestCreateEnvelopeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := mandate.NewHTTPClient(srv.URL, "steward-test", []byte("s"))
	_, err := client.CreateEnvelope(context.Background(), mandate.EnvelopeSpec{AmountUSD: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
