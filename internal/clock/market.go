package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MarketHours is a daily trading window expressed in venue-local minutes
// since midnight. Offset is the venue's fixed distance from UTC.
type MarketHours struct {
	Open   int
	Close  int
	Offset time.Duration
}

// LocalMinutes returns minutes since venue-local midnight for t. It only uses
// the UTC instant of t, so the host time zone never leaks in.
func (h MarketHours) LocalMinutes(t time.Time) int {
	local := t.UTC().Add(h.Offset)
	return local.Hour()*60 + local.Minute()
}

// IsOpen reports whether t falls inside [Open, Close].
func (h MarketHours) IsOpen(t time.Time) bool {
	m := h.LocalMinutes(t)
	return m >= h.Open && m <= h.Close
}

// ParseHHMM parses "09:15" into minutes since midnight.
func ParseHHMM(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh*60 + mm, nil
}

// ParseOffset parses a UTC offset such as "+05:30", "-04:00" or "0".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || s == "Z" {
		return 0, nil
	}
	sign := time.Duration(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return 0, fmt.Errorf("invalid offset %q, want ±HH:MM", s)
	}
	minutes, err := ParseHHMM(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset: %w", err)
	}
	if minutes > 14*60 {
		return 0, fmt.Errorf("offset %q out of range", s)
	}
	return sign * time.Duration(minutes) * time.Minute, nil
}
