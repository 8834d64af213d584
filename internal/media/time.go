package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ParseTime reads a position as m:ss, h:mm:ss, plain seconds or a Go
// duration such as 1m30s.
func ParseTime(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("time required")
	}
	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		var total float64
		for i, part := range parts {
			value, err := strconv.ParseFloat(part, 64)
			if err != nil || value < 0 || (i > 0 && value >= 60) {
				return 0, fmt.Errorf("invalid time %q", raw)
			}
			total = total*60 + value
		}
		return total, nil
	}
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		return value, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil || dur < 0 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return dur.Seconds(), nil
}
