package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "12:00 AM", want: 0},
		{in: "02:30 PM", want: 870},
		{in: "12:15 PM", want: 735},
		{in: "9:05 am", want: 545},
		{in: "11:59 PM", want: 1439},
		{in: "14:30", want: 870},
		{in: "00:00", want: 0},
		{in: "13:00 PM", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinutesSinceMidnightFallsBackToZero(t *testing.T) {
	assert.Equal(t, 0, MinutesSinceMidnight("later"))
	assert.Equal(t, 660, MinutesSinceMidnight("11:00 AM"))
}

func TestHourOf(t *testing.T) {
	h, err := HourOf("10:45 AM")
	require.NoError(t, err)
	assert.Equal(t, 10, h)

	h, err = HourOf("12:30 AM")
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}

func TestTo12Hour(t *testing.T) {
	tests := map[string]string{
		"14:30":    "02:30 PM",
		"09:00":    "09:00 AM",
		"00:15":    "12:15 AM",
		"12:00":    "12:00 PM",
		"02:30 pm": "02:30 PM",
		"":         "",
	}
	for in, want := range tests {
		got, err := To12Hour(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := To12Hour("7pm")
	assert.Error(t, err)
}

func TestTo24Hour(t *testing.T) {
	got, err := To24Hour("02:30 PM")
	require.NoError(t, err)
	assert.Equal(t, "14:30", got)
}

func TestFromMinutesWraps(t *testing.T) {
	assert.Equal(t, "12:00 AM", FromMinutes(1440))
	assert.Equal(t, "11:45 PM", FromMinutes(-15))
}

func TestFormatDisplayDate(t *testing.T) {
	assert.Equal(t, "Wed, Jan 15, 2025", FormatDisplayDate("2025-01-15"))
	assert.Equal(t, "", FormatDisplayDate(""))
	assert.Equal(t, "", FormatDisplayDate("15/01/2025"))
}

func TestParseDateKeepsCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*60*60)
	d, err := ParseDate("2025-01-15", loc)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", ISO(d))
}

func TestAt(t *testing.T) {
	got, err := At("2025-01-15", "02:30 PM", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC), got)

	_, err = At("2025-01-15", "", time.UTC)
	assert.Error(t, err)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "02:05:09 PM", FormatClock(time.Date(2025, 1, 15, 14, 5, 9, 0, time.UTC)))
}
