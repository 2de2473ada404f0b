package validate

import (
	"strings"
	"time"
)

// DateLayouts are tried in order and the first successful parse wins.
// Day/month/year precedes month/day/year, so "01/02/2020" is the 1st of February.
var DateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
}

// ParseDate parses raw against DateLayouts in the location loc.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date reports whether raw is a parseable date that is not in the future.
func Date(raw string) bool {
	return DateAt(raw, time.Now())
}

// DateAt is Date evaluated against a fixed current moment.
func DateAt(raw string, now time.Time) bool {
	t, ok := ParseDate(raw, now.Location())
	if !ok {
		return false
	}
	return !t.After(now)
}
