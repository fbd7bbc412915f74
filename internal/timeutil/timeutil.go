// Package timeutil parses the reference time a generation run ages its
// records against.
package timeutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrBadTime = errors.New("time must be RFC3339, YYYY-MM-DD or a signed offset like -30d")

var offsetRe = regexp.MustCompile(`^([+-])(\d+)([dwmy])$`)

// ParseRelativeTime accepts RFC3339, a bare date, or a signed calendar offset
// from now in days, weeks, months or years ("-30d", "+2w", "-6m", "-1y").
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	if m[1] == "-" {
		n = -n
	}

	switch m[3] {
	case "d":
		return now.AddDate(0, 0, n), nil
	case "w":
		return now.AddDate(0, 0, 7*n), nil
	case "m":
		return now.AddDate(0, n, 0), nil
	default:
		return now.AddDate(n, 0, 0), nil
	}
}
