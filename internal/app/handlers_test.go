package app

import (
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipwatch/clipwatch/internal/config"
)

func newReloadApp(t *testing.T, body string) (*App, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	a := New(Options{
		Logger:     log.New(io.Discard, "", 0),
		Cfg:        config.Default(),
		ConfigPath: path,
	})
	return a, path
}

func TestReloadSwapsConfigAndAnnouncesLag(t *testing.T) {
	a, _ := newReloadApp(t, `
[motion]
high_threshold = 0.3
`)

	req := httptest.NewRequest("POST", "/api/reload", nil)
	rr := httptest.NewRecorder()
	a.handleReload(rr, req)

	require.Equal(t, 200, rr.Code, rr.Body.String())
	assert.Equal(t, 0.3, a.getConfig().Motion.HighThreshold)

	// The response and the log ring both say the watcher lags until its
	// next reconnect, so nobody mistakes the swap for a live retune.
	assert.Contains(t, rr.Body.String(), "next reconnect")

	a.logBufMu.Lock()
	defer a.logBufMu.Unlock()
	require.NotEmpty(t, a.logBuf)
	last := a.logBuf[len(a.logBuf)-1]
	assert.Equal(t, "info", last.Level)
	assert.Contains(t, last.Message, "next reconnect")
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	a, _ := newReloadApp(t, `
[motion]
low_threshold = 0.5
high_threshold = 0.1
`)
	before := a.getConfig()

	req := httptest.NewRequest("POST", "/api/reload", nil)
	rr := httptest.NewRecorder()
	a.handleReload(rr, req)

	assert.Equal(t, 500, rr.Code)
	assert.Equal(t, before, a.getConfig(), "a failed reload must not touch the running config")
}

func TestReloadUnknownProfile(t *testing.T) {
	t.Setenv("CLIPWATCH_CONFIG_DIR", t.TempDir())
	a, _ := newReloadApp(t, "")

	req := httptest.NewRequest("POST", "/api/reload", strings.NewReader(`{"profile":"nope"}`))
	rr := httptest.NewRecorder()
	a.handleReload(rr, req)

	assert.Equal(t, 404, rr.Code)
}

func TestReloadMethodNotAllowed(t *testing.T) {
	a, _ := newReloadApp(t, "")

	req := httptest.NewRequest("GET", "/api/reload", nil)
	rr := httptest.NewRecorder()
	a.handleReload(rr, req)

	assert.Equal(t, 405, rr.Code)
}
