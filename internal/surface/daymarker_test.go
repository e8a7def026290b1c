package surface

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayMarker(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2 Jan 2026", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"Feb 14, 2026", time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), true},
		{"14 ก.พ. 2026", time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), true},
		{"14 ก.พ. 2569", time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), true},
		{"Jan 2026", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"14:02", time.Time{}, false},
		{"Nueng", time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := parseDayMarker(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		if ok {
			assert.True(t, got.Equal(tc.want), "%s parsed as %s", tc.in, got)
		}
	}
}

func TestOldestDayMarkerPicksEarliest(t *testing.T) {
	got := oldestDayMarker([]string{"noise", "14 Feb 2026", "2 Jan 2026", "13:30"})
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestOldestDayMarkerEmpty(t *testing.T) {
	assert.True(t, oldestDayMarker([]string{"no dates here"}).IsZero())
}
