package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soupbadger/rpi-space/internal/config"
	"github.com/soupbadger/rpi-space/internal/journal"
	"github.com/soupbadger/rpi-space/internal/logging"
)

func upstream(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func acceleratedConfig(t *testing.T, start string, duration time.Duration) *config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	cfg.Clock.Mode = "accelerated"
	cfg.Clock.Start = start
	cfg.Clock.Duration = duration
	cfg.Clock.FrameInterval = 500 * time.Millisecond
	cfg.Geocode.APIKey = "test-key"
	cfg.Server = config.ServerConfig{}
	cfg.Journal = config.JournalConfig{
		Driver: journal.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "fixes.db"),
	}
	return cfg
}

func journalRows(t *testing.T, cfg *config.Config, source string) int {
	t.Helper()
	j, err := journal.Open(context.Background(), journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN}, nil)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	var n int
	require.NoError(t, j.DB().QueryRow(`SELECT COUNT(*) FROM fixes WHERE source = ?`, source).Scan(&n))
	return n
}

func TestRunAcceleratedWithAPISource(t *testing.T) {
	positions, positionHits := upstream(t,
		`{"message":"success","timestamp":1,"iss_position":{"latitude":"51.5","longitude":"-0.12"}}`)
	geocode, geocodeHits := upstream(t, `{"display_name":"London, Greater London, England","address":{"city":"London"}}`)

	cfg := acceleratedConfig(t, "2025-01-01T00:00:00Z", 10*time.Second)
	cfg.Position.URL = positions.URL
	cfg.Geocode.URL = geocode.URL
	require.NoError(t, cfg.Validate())

	require.NoError(t, Run(context.Background(), cfg, logging.Noop()))

	// Frames run from 0.5s to 10s; position fetches land at 0.5, 3.0, 5.5 and 8.0.
	assert.Equal(t, int32(4), positionHits.Load())
	assert.Equal(t, int32(1), geocodeHits.Load())
	assert.Equal(t, 4, journalRows(t, cfg, "api"))
}

func TestRunAcceleratedWithTLESource(t *testing.T) {
	geocode, _ := upstream(t, `{"display_name":""}`)

	cfg := acceleratedConfig(t, "2008-09-20T12:25:40Z", 4*time.Second)
	cfg.Position.Source = "tle"
	cfg.Satellite.TLELine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	cfg.Satellite.TLELine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
	cfg.Geocode.URL = geocode.URL
	require.NoError(t, cfg.Validate())

	require.NoError(t, Run(context.Background(), cfg, logging.Noop()))
	assert.Equal(t, 2, journalRows(t, cfg, "tle"))
}

func TestRunStopsOnCancel(t *testing.T) {
	positions, _ := upstream(t, `{"message":"failure"}`)
	geocode, geocodeHits := upstream(t, `{}`)

	cfg := acceleratedConfig(t, "2025-01-01T00:00:00Z", 0)
	cfg.Clock.Mode = "realtime"
	cfg.Clock.FrameInterval = 10 * time.Millisecond
	cfg.Position.URL = positions.URL
	cfg.Geocode.URL = geocode.URL
	cfg.Journal = config.JournalConfig{}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, Run(ctx, cfg, logging.Noop()))
	assert.Equal(t, int32(0), geocodeHits.Load(), "no city lookups without a position")
}
