package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
)

func mustZone(t *testing.T, name string) Zone {
	t.Helper()
	z, err := LoadZone(name)
	require.NoError(t, err)
	return z
}

func TestLoadZoneRejectsUnsupported(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "  ", "Local", "Mars/Olympus_Mons"} {
		_, err := LoadZone(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrConfiguration), name)
		assert.False(t, errors.Is(err, domain.ErrValidation), name)
	}
}

func TestZoneStartOfDay(t *testing.T) {
	t.Parallel()
	jakarta := mustZone(t, "Asia/Jakarta")
	start, err := jakarta.StartOfDay("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 4, 17, 0, 0, 0, time.UTC), start.UTC())

	ny := mustZone(t, "America/New_York")
	start, err = ny.StartOfDay("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 5, 5, 0, 0, 0, time.UTC), start.UTC())
}

func TestZoneAcrossSpringForward(t *testing.T) {
	t.Parallel()
	ny := mustZone(t, "America/New_York")

	// 2026-03-08 loses an hour at 02:00 local.
	start, err := ny.StartOfDay("2026-03-08")
	require.NoError(t, err)
	end, err := ny.EndOfDay("2026-03-08")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 8, 5, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, 23*time.Hour-time.Millisecond, end.Sub(start))

	wake, err := ny.TimeOn("2026-03-08", "07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 8, 11, 0, 0, 0, time.UTC), wake.UTC())
	h, m := ny.TimeParts(wake)
	assert.Equal(t, 7, h)
	assert.Equal(t, 0, m)
}

func TestZoneAcrossFallBack(t *testing.T) {
	t.Parallel()
	berlin := mustZone(t, "Europe/Berlin")

	// 2026-10-25 gains an hour at 03:00 local.
	start, err := berlin.StartOfDay("2026-10-25")
	require.NoError(t, err)
	end, err := berlin.EndOfDay("2026-10-25")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 24, 22, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, 25*time.Hour-time.Millisecond, end.Sub(start))

	evening, err := berlin.TimeOn("2026-10-25", "22:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 25, 21, 30, 0, 0, time.UTC), evening.UTC())
	assert.Equal(t, 22*60+30, berlin.MinuteOfDay(evening))
}

func TestZoneToday(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 5, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-06", mustZone(t, "Asia/Tokyo").Today(now))
	assert.Equal(t, "2026-02-05", mustZone(t, "America/Los_Angeles").Today(now))
	assert.Equal(t, "2026-02-05", UTC().Today(now))
}

func TestTimeOnValidatesClock(t *testing.T) {
	t.Parallel()
	z := UTC()
	for _, clock := range []string{"", "7", "24:00", "07:60", "7:5", "aa:bb"} {
		_, err := z.TimeOn("2026-02-05", clock)
		require.Error(t, err, clock)
		assert.True(t, errors.Is(err, domain.ErrValidation), clock)
	}

	got, err := z.TimeOn("2026-02-05", "7:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 5, 7, 5, 0, 0, time.UTC), got)
}
