package surface

import (
	"strings"
	"time"
)

// Day markers in the message pane come in a handful of shapes depending on
// the account locale: "2 Jan 2026", "Jan 2, 2026", "02/01/2026" or the Thai
// "2 ม.ค. 2569" (Buddhist era). The cutoff check compares parsed dates, not
// raw substrings, so it keeps working after any hard-coded period elapses.

var thaiMonths = map[string]string{
	"ม.ค.":  "Jan",
	"ก.พ.":  "Feb",
	"มี.ค.": "Mar",
	"เม.ย.": "Apr",
	"พ.ค.":  "May",
	"มิ.ย.": "Jun",
	"ก.ค.":  "Jul",
	"ส.ค.":  "Aug",
	"ก.ย.":  "Sep",
	"ต.ค.":  "Oct",
	"พ.ย.":  "Nov",
	"ธ.ค.":  "Dec",
}

var dayMarkerLayouts = []string{
	"2 Jan 2006",
	"Jan 2, 2006",
	"2 Jan, 2006",
	"02/01/2006",
	"Jan 2006",
}

// parseDayMarker attempts to read a calendar date out of one candidate
// text. Buddhist-era years are converted to Gregorian.
func parseDayMarker(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	for th, en := range thaiMonths {
		if strings.Contains(s, th) {
			s = strings.ReplaceAll(s, th, en)
			break
		}
	}

	for _, layout := range dayMarkerLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() > 2400 {
			t = t.AddDate(-543, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// oldestDayMarker returns the earliest parseable date among the candidates,
// zero when none parse.
func oldestDayMarker(candidates []string) time.Time {
	var oldest time.Time
	for _, c := range candidates {
		t, ok := parseDayMarker(c)
		if !ok {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	return oldest
}
