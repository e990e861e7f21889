package http

import (
	"time"

	xutil "FinCast/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseDate parses YYYY-MM-DD (or RFC3339) into midnight UTC.
func ParseDate(s string) (time.Time, error) { return xutil.ParseDate(s) }
