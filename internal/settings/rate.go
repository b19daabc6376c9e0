package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a parsed rate limit such as "100 per hour".
type Rate struct {
	Max    int
	Window time.Duration
}

// ParseRate accepts "N per unit" and "N/unit" with unit second, minute, hour or day,
// singular or plural.
func ParseRate(s string) (Rate, error) {
	var count, unit string

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))

	switch {
	case len(fields) == 3 && fields[1] == "per":
		count, unit = fields[0], fields[2]
	case len(fields) == 1 && strings.Count(fields[0], "/") == 1:
		count, unit, _ = strings.Cut(fields[0], "/")
	default:
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	var window time.Duration

	switch strings.TrimSuffix(unit, "s") {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	case "day":
		window = 24 * time.Hour //nolint:mnd
	default:
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	return Rate{Max: n, Window: window}, nil
}
