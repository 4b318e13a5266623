package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/config"
)

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"steward", "frobnicate"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"steward"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Usage:")
}

func TestRunCmdRequiresObjective(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"steward", "run"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "--objective is required")
}

func TestReplayEmptyMemoryLedger(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"steward", "replay"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "\"totals\"")
	assert.Contains(t, errOut.String(), "Chain verified")
}

func TestExportWritesPack(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "evidence.zip")

	var out, errOut bytes.Buffer
	code := Run([]string{"steward", "export", "-out", outPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Contains(t, out.String(), "Evidence pack written")
}

func TestRunCmdEndToEnd(t *testing.T) {
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"actions": [{"id": "market.snapshot", "description": "snapshot", "cost_usd": 0.05, "category": "data"}]}`))
	}))
	defer catalogSrv.Close()

	gatewaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": {"price_change_h24": 3.0}}`))
	}))
	defer gatewaySrv.Close()

	// A dead signal endpoint: the provider must be constructed and then
	// omitted from the aggregate, never failing the run.
	newsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer newsSrv.Close()

	profile := filepath.Join(t.TempDir(), "steward.yaml")
	body := `
version: 1.0.0
log_level: error
catalog:
  base_url: ` + catalogSrv.URL + `
gateway:
  base_url: ` + gatewaySrv.URL + `
signals:
  news_url: ` + newsSrv.URL + `
`
	require.NoError(t, os.WriteFile(profile, []byte(body), 0o600))

	var out, errOut bytes.Buffer
	code := Run([]string{"steward", "run", "-config", profile, "-objective", "evaluate WIF", "-budget", "1"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), `"status": "completed"`)
	assert.Contains(t, out.String(), "market.snapshot")
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Backend = "etched-stone"
	_, err := openStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ledger backend")
}
