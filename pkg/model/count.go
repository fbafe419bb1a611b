package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MissingSentinel is the value the demographic source uses for "not reported/suppressed"
const MissingSentinel int64 = -9

// ErrInvalidCount is returned when a count field is neither an integer nor blank
var ErrInvalidCount = errors.New("invalid count")

// integralDecimal matches integers written with an all-zero fraction, e.g. "88.0"
var integralDecimal = regexp.MustCompile(`^[+-]?[0-9]+\.0*$`)

// Count is a non-negative population count or a missing marker.
// A missing count keeps the raw reserve code it was parsed from so
// pass-through aggregation can reproduce the source arithmetic.
type Count struct {
	value   int64
	missing bool
}

// Known returns a reported count
func Known(v int64) Count {
	return Count{value: v}
}

// Missing returns a count that was not reported; raw is the source's reserve code
func Missing(raw int64) Count {
	return Count{value: raw, missing: true}
}

// IsMissing reports whether the count was suppressed or not reported
func (c Count) IsMissing() bool {
	return c.missing
}

// Value returns the reported count and true, or 0 and false when missing
func (c Count) Value() (int64, bool) {
	if c.missing {
		return 0, false
	}
	return c.value, true
}

// Raw returns the number as stored in the source, including reserve codes
func (c Count) Raw() int64 {
	return c.value
}

// String returns the reported value or "missing(<code>)"
func (c Count) String() string {
	if c.missing {
		return fmt.Sprintf("missing(%d)", c.value)
	}
	return strconv.FormatInt(c.value, 10)
}

// ParseCount parses a raw count field.
// Negative values are reserve codes (-9 being the documented one) and become
// Missing; blank fields are Missing with the standard sentinel.
func ParseCount(raw string) (Count, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing(MissingSentinel), nil
	}

	// Numeric exports sometimes carry an integral ".0"
	if integralDecimal.MatchString(s) {
		s = s[:strings.IndexByte(s, '.')]
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Count{}, fmt.Errorf("%w: %q", ErrInvalidCount, raw)
	}

	if v < 0 {
		return Missing(v), nil
	}
	return Known(v), nil
}
