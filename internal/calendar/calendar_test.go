package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
)

func TestParseDateKeyRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "2026-2-5", "2026-02-30", "20260205", "2026-02-05T10:00"} {
		_, err := ParseDateKey(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, domain.ErrValidation), raw)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "dateKey", ve.Field)
	}
}

func TestDayBoundsUTC(t *testing.T) {
	t.Parallel()
	start, err := StartOfDayUTC("2026-02-05")
	require.NoError(t, err)
	end, err := EndOfDayUTC("2026-02-05")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 2, 5, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
	assert.Equal(t, "2026-02-05", FormatDateKey(end))
}

func TestAddDays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key  string
		n    int
		want string
	}{
		{"2026-02-05", 1, "2026-02-06"},
		{"2026-02-28", 1, "2026-03-01"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2026-01-01", -1, "2025-12-31"},
		{"2026-02-02", 7, "2026-02-09"},
	}
	for _, tt := range tests {
		got, err := AddDays(tt.key, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %+d", tt.key, tt.n)
	}
}

func TestAddMonthsClamps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key  string
		n    int
		want string
	}{
		{"2026-01-31", 1, "2026-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2026-03-31", -1, "2026-02-28"},
		{"2026-01-15", -1, "2025-12-15"},
		{"2026-12-01", 1, "2027-01-01"},
		{"2026-05-31", -17, "2024-12-31"},
		{"2026-02-01", 12, "2027-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := AddMonths(tt.key, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddMonthsRoundTrip(t *testing.T) {
	t.Parallel()
	// Without clamping the round trip is exact; with clamping it lands on a last day.
	got, err := AddMonths("2026-01-15", 3)
	require.NoError(t, err)
	back, err := AddMonths(got, -3)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", back)

	got, err = AddMonths("2026-01-31", 1)
	require.NoError(t, err)
	back, err = AddMonths(got, -1)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-28", back)
}

func TestWeekRangeStartsMonday(t *testing.T) {
	t.Parallel()
	r, err := WeekRange("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: "2026-02-02", End: "2026-02-08"}, r)

	// Sunday belongs to the week that started six days earlier.
	r, err = WeekRange("2026-02-08")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-02", r.Start)

	r, err = WeekRange("2026-01-01")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: "2025-12-29", End: "2026-01-04"}, r)

	days, err := WeekDays("2026-02-05")
	require.NoError(t, err)
	require.Len(t, days, DaysPerWeek)
	assert.Equal(t, "2026-02-02", days[0])
	assert.Equal(t, "2026-02-08", days[6])
}

func TestWeekdayIndex(t *testing.T) {
	t.Parallel()
	idx, err := WeekdayIndex("2026-02-02")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = WeekdayIndex("2026-02-08")
	require.NoError(t, err)
	assert.Equal(t, 6, idx)
}

func TestMonthGridAlwaysHas42Days(t *testing.T) {
	t.Parallel()
	// February 2021 starts on Monday and fits four rows; the grid still has six.
	for _, key := range []string{"2021-02-10", "2026-02-05", "2026-03-31", "2025-06-01", "2024-12-31"} {
		days, err := MonthGridDays(key)
		require.NoError(t, err)
		require.Len(t, days, MonthGridSize, key)

		idx, err := WeekdayIndex(days[0])
		require.NoError(t, err)
		assert.Equal(t, 0, idx, key)
	}

	days, err := MonthGridDays("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-26", days[0])
	assert.Equal(t, "2026-03-08", days[41])

	days, err = MonthGridDays("2021-02-10")
	require.NoError(t, err)
	assert.Equal(t, "2021-02-01", days[0])
}

func TestMonthRange(t *testing.T) {
	t.Parallel()
	r, err := MonthRange("2024-02-10")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: "2024-02-01", End: "2024-02-29"}, r)
	assert.True(t, SameMonth("2024-02-29", r.Start))
	assert.False(t, SameMonth("2024-03-01", r.Start))
}

func TestLabels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "12 AM", HourLabel(0))
	assert.Equal(t, "9 AM", HourLabel(9))
	assert.Equal(t, "12 PM", HourLabel(12))
	assert.Equal(t, "1 PM", HourLabel(13))
	assert.Equal(t, "11 PM", HourLabel(23))

	day, err := DayLabel("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, "Thursday, February 5, 2026", day)

	month, err := MonthLabel("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, "February 2026", month)

	short, err := WeekdayShortLabel("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, "Thu", short)

	num, err := DayNumberLabel("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, "5", num)

	labels := WeekdayLabels()
	require.Len(t, labels, 7)
	assert.Equal(t, "Mon", labels[0])
	assert.Equal(t, "Sun", labels[6])
}

func TestWeekLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		start, end string
		want       string
	}{
		{"2026-02-02", "2026-02-08", "Feb 2 - 8, 2026"},
		{"2026-01-26", "2026-02-01", "Jan 26 - Feb 1, 2026"},
		{"2025-12-29", "2026-01-04", "Dec 29, 2025 - Jan 4, 2026"},
	}
	for _, tt := range tests {
		got, err := WeekLabel(tt.start, tt.end)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
