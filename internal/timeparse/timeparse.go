// Package timeparse normalizes the free-text dates found in code feeds.
//
// Feed dates arrive in many shapes ("11 Jan 14:00 Sunday", "08 JUNE",
// "2 JUN 07:59 UTC", "20 APR 23:59 PST", "26 May 2022 17:30:00 -0400"),
// frequently without a year and sometimes with a named US time zone that the
// standard library cannot resolve to an offset. Normalize turns any of these
// into a UTC instant, or reports that the string is not a date at all.
package timeparse

import (
	"strings"
	"time"
)

// namedZones maps US time-zone abbreviations to their numeric UTC offsets.
// The abbreviations are ambiguous to the parser, so they are rewritten into
// the string before any layout is tried.
var namedZones = []struct {
	abbr   string
	offset string
}{
	{"PST", "-0800"},
	{"PDT", "-0700"},
	{"MST", "-0700"},
	{"MDT", "-0600"},
	{"CST", "-0600"},
	{"CDT", "-0500"},
	{"EST", "-0500"},
	{"EDT", "-0400"},
}

// layouts are tried in order; the first full match wins. hasYear marks the
// layouts that carry their own year, everything else gets the current one.
var layouts = []struct {
	layout  string
	hasYear bool
}{
	{"2 Jan 2006 15:04 MST", true},
	{"2 Jan 15:04 Monday", false},
	{"2 Jan 15:04", false},
	{"2 Jan", false},
	{"2 January", false},
	{"2 Jan 15:04 MST", false},
	{"2 Jan 15:04 -0700", false},
	{"2 Jan 2006 15:04:05 -0700", true},
}

// Normalize parses a free-text date fragment into a UTC instant.
//
// Named zone abbreviations are replaced by their numeric offsets first, then
// the layouts above are tried in priority order. A parsed value carrying an
// offset is converted to UTC before the missing year (if any) is filled in
// from now, so an offset that crosses midnight lands on the next calendar
// day. Returns ok=false when no layout matches; it never panics.
func Normalize(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, z := range namedZones {
		if strings.Contains(s, z.abbr) {
			s = strings.ReplaceAll(s, z.abbr, z.offset)
		}
	}

	for _, l := range layouts {
		dt, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		dt = dt.UTC()
		if !l.hasYear {
			dt = time.Date(now.Year(), dt.Month(), dt.Day(),
				dt.Hour(), dt.Minute(), dt.Second(), 0, time.UTC)
		}
		return dt, true
	}

	return time.Time{}, false
}
