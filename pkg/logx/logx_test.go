package logx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	assert.NotPanics(t, func() { l.Info("hello", String("k", "v")) })
	assert.False(t, l.OrNop().IsZero())
}

func TestWithDoesNotShareFields(t *testing.T) {
	base := Nop().With(String("a", "1"))
	x := base.With(String("b", "2"))
	y := base.With(String("c", "3"))
	assert.Len(t, base.fields, 1)
	assert.Len(t, x.fields, 2)
	assert.Len(t, y.fields, 2)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug", zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" warning ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nope", zerolog.InfoLevel))
	assert.True(t, ValidLevel(""))
	assert.False(t, ValidLevel("verbose"))
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.Component("test").Info("written", Int("n", 3))
	log.Debug("filtered")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"written"`)
	assert.Contains(t, string(raw), `"comp":"test"`)
	assert.NotContains(t, string(raw), "filtered")
}

func TestAlertSinkForwardsAboveMinLevel(t *testing.T) {
	got := make(chan Alert, 4)
	sender := AlertFunc(func(_ context.Context, a Alert) error {
		got <- a
		return nil
	})
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level:  "debug",
		File:   FileConfig{Enabled: true, Path: path},
		Alerts: AlertConfig{Enabled: true, MinLevel: "warn", RatePerSec: 5},
	}, sender)
	defer svc.Close()

	log.Info("not an alert")
	log.Error("job failed", String("job", "expiry"))

	select {
	case a := <-got:
		assert.Equal(t, "error", a.Level)
		assert.Equal(t, "job failed", a.Message)
		assert.Equal(t, "expiry", a.Fields["job"])
	case <-time.After(time.Second):
		t.Fatal("alert not delivered")
	}
	assert.Empty(t, got)
}

func TestCallerAndStackFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.Info("plain", Stack("  "))
	log.Error("panicked", Stack("main.go:1"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"caller":"logx_test.go:`)
	assert.NotContains(t, lines[0], `"stack"`)
	assert.Contains(t, lines[1], `"stack":"main.go:1"`)
}
