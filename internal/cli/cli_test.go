package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
)

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fileConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agendad.yaml")
	data := fmt.Sprintf("logging:\n  console: false\nstorage:\n  driver: file\n  path: %s\n", filepath.Join(dir, "agenda.json"))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestViewDay_JSON(t *testing.T) {
	out, err := run(t, "", "view", "day", "2026-10-17", "--tz", "UTC", "--json")
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "day", v["mode"])
	assert.Equal(t, "2026-10-17", v["dateKey"])
	assert.Equal(t, true, v["isEmpty"])
}

func TestView_Errors(t *testing.T) {
	_, err := run(t, "", "view", "year", "2026-10-17")
	assert.ErrorContains(t, err, "unknown view")

	_, err = run(t, "", "view", "week", "2026-10-17", "--tz", "Mars/Olympus")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = run(t, "", "view", "month", "2026-13-01", "--tz", "UTC")
	assert.Error(t, err)
}

func TestItemLifecycle_FileStore(t *testing.T) {
	cfg := fileConfig(t)

	out, err := run(t, cfg, "item", "add", "2026-10-17", "--title", "Write report", "--start", "09:00", "--duration", "60", "--json")
	require.NoError(t, err)
	var it domain.AgendaItem
	require.NoError(t, json.Unmarshal([]byte(out), &it))
	require.NotEmpty(t, it.ID)
	assert.Equal(t, domain.ItemPending, it.Status)
	assert.Equal(t, 60, *it.Duration)

	out, err = run(t, cfg, "view", "day", "2026-10-17", "--tz", "UTC", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, it.ID)

	out, err = run(t, cfg, "item", "complete", it.ID, "--notes", "sent", "--json")
	require.NoError(t, err)
	var done domain.AgendaItem
	require.NoError(t, json.Unmarshal([]byte(out), &done))
	assert.Equal(t, domain.ItemCompleted, done.Status)
	assert.Equal(t, "sent", done.Notes)

	out, err = run(t, cfg, "item", "reschedule", it.ID, "2026-10-18", "--all-day", "--no-duration", "--json")
	require.NoError(t, err)
	var moved domain.AgendaItem
	require.NoError(t, json.Unmarshal([]byte(out), &moved))
	assert.Nil(t, moved.StartAt)
	assert.Nil(t, moved.Duration)
	assert.NotEqual(t, it.AgendaID, moved.AgendaID)

	out, err = run(t, cfg, "expire")
	require.NoError(t, err)
	assert.Equal(t, "marked 0 item(s) unfinished\n", out)
}

func TestItemAdd_RequiresTitle(t *testing.T) {
	_, err := run(t, "", "item", "add", "2026-10-17")
	assert.ErrorContains(t, err, "--title")
}

func TestItemComplete_Missing(t *testing.T) {
	_, err := run(t, "", "item", "complete", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoutineAdd(t *testing.T) {
	cfg := fileConfig(t)

	_, err := run(t, cfg, "routine", "add", "--name", "Walk", "--type", "step", "--target", "lots")
	assert.ErrorIs(t, err, domain.ErrValidation)

	out, err := run(t, cfg, "routine", "add", "--name", "Walk", "--type", "step", "--target", "10000", "--separate-into", "4", "--json")
	require.NoError(t, err)
	var r domain.Routine
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, domain.RoutineStep, r.Type)
	require.Len(t, r.Tasks, 4)

	out, err = run(t, cfg, "routine", "log", r.Tasks[0].ID, "1200")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "logged 1200"))

	out, err = run(t, cfg, "routine", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Walk [STEP]")
	assert.Contains(t, out, "Steps segment 1")
}

func TestAlarmsList_Empty(t *testing.T) {
	out, err := run(t, "", "alarms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alarm plans")
	assert.Contains(t, out, "none")
}
