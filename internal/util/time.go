package util

import (
	"fmt"
	"strconv"
	"time"
)

// CreatedAtLayout is the timestamp format stamped on every pipeline event.
const CreatedAtLayout = "2006-01-02 15:04:05"

// ParseTimeFlexible accepts RFC 3339, the event created_at layout (read as
// UTC) or epoch milliseconds.
func ParseTimeFlexible(timeStr string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, timeStr); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(CreatedAtLayout, timeStr, time.UTC); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}
