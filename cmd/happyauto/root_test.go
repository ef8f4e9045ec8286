package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happyauto/internal/modules/pricing"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "bench", "rates"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestLoadConfig_FromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  driver: memory\nmatching:\n  radius_km: 4\n"), 0o600))

	old := cfgPath
	cfgPath = path
	t.Cleanup(func() { cfgPath = old })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 4.0, cfg.Matching.RadiusKm)
}

func TestSortedRates(t *testing.T) {
	got := sortedRates(map[string]pricing.Rate{
		"truck": {VehicleClass: "truck"},
		"auto":  {VehicleClass: "auto"},
		"bike":  {VehicleClass: "bike"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "auto", got[0].VehicleClass)
	assert.Equal(t, "bike", got[1].VehicleClass)
	assert.Equal(t, "truck", got[2].VehicleClass)
}

func TestRunner_RunAllWritesToOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	r := &Runner{
		cfg:   benchConfig{BaseURL: srv.URL, Concurrency: 1, Duration: time.Millisecond},
		httpc: srv.Client(),
		out:   &buf,
	}
	results := r.RunAll(context.Background())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(results))
	assert.Equal(t, "FAIL  Env: Postgres connect - db not configured", lines[0])
	assert.Equal(t, "SKIP  Env: Redis connect - redis not configured", lines[1])
	assert.True(t, strings.HasPrefix(lines[4], "PASS  HTTP: health ("), lines[4])
}
