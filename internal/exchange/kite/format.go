package kite

import (
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

func formatPrice(val float64) string {
	formatted := strconv.FormatFloat(val, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	if formatted == "" || formatted == "-0" {
		return "0"
	}
	return formatted
}

// parseTimestamp reads Kite's zone-less exchange-local timestamps.
func (c *Client) parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timestampLayout, s, c.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
