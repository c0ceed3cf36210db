package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestParseMuteWindow(t *testing.T) {
	w, err := ParseMuteWindow(" 23:00-07:30 ")
	require.NoError(t, err)
	assert.Equal(t, MuteWindow{Start: 23 * 60, End: 7*60 + 30}, w)

	w, err = ParseMuteWindow("12:00-24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*60, w.End)

	for _, s := range []string{"", "23:00", "25:00-07:00", "ab-cd", "08:00-08:00", "8-9"} {
		_, err = ParseMuteWindow(s)
		assert.ErrorIs(t, err, ErrInvalidMuteWindow, s)
	}
}

func TestMuteWindow_Contains(t *testing.T) {
	overnight := MuteWindow{Start: 22 * 60, End: 7 * 60}
	assert.True(t, overnight.Contains(at(22, 0)))
	assert.True(t, overnight.Contains(at(23, 59)))
	assert.True(t, overnight.Contains(at(0, 0)))
	assert.True(t, overnight.Contains(at(6, 59)))
	assert.False(t, overnight.Contains(at(7, 0)))
	assert.False(t, overnight.Contains(at(21, 59)))

	lunch := MuteWindow{Start: 12 * 60, End: 13 * 60}
	assert.True(t, lunch.Contains(at(12, 30)))
	assert.False(t, lunch.Contains(at(13, 0)))
	assert.False(t, lunch.Contains(at(11, 59)))
}

func TestParseMuteWindows(t *testing.T) {
	windows, err := ParseMuteWindows([]string{"22:00-07:00", " ", "12:00-13:00"})
	require.NoError(t, err)
	assert.Len(t, windows, 2)
	assert.True(t, InMuteHours(windows, at(12, 15)))
	assert.True(t, InMuteHours(windows, at(3, 0)))
	assert.False(t, InMuteHours(windows, at(9, 0)))

	_, err = ParseMuteWindows([]string{"22:00-07:00", "bad"})
	assert.ErrorIs(t, err, ErrInvalidMuteWindow)

	assert.False(t, InMuteHours(nil, at(3, 0)))
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	_, err = ParseClock("8h")
	assert.Error(t, err)
}
