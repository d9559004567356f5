package link

import (
	"errors"
	"fmt"
	"time"
)

// LocalLayout matches the value of an <input type="datetime-local"> with minute precision.
const LocalLayout = "2006-01-02T15:04"

var (
	ErrNonexistentLocalTime = errors.New("local time does not exist in time zone")
	ErrAmbiguousLocalTime   = errors.New("local time is ambiguous in time zone")
)

const day = 24 * 60 * 60

// ParseLocal interprets a zone-less date/time in loc and returns the instant
// with loc's offset at that moment fixed into the result. Wall times skipped
// or repeated by a clock transition are rejected.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	naive, err := time.Parse(LocalLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse local date/time: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	wall := naive.Unix()
	seen := make(map[int]bool, 3)
	var matches []time.Time

	// Offsets in effect around the wall time cover any single transition.
	for _, instant := range []int64{wall - day, wall, wall + day} {
		_, offset := time.Unix(instant, 0).In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := time.Unix(wall-int64(offset), 0).In(loc)
		if _, actual := candidate.Zone(); actual == offset {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return time.Time{}, fmt.Errorf("%s in %s: %w", value, loc, ErrNonexistentLocalTime)
	case 1:
	default:
		return time.Time{}, fmt.Errorf("%s in %s: %w", value, loc, ErrAmbiguousLocalTime)
	}

	t := matches[0]
	_, offset := t.Zone()
	return t.In(time.FixedZone("", offset)), nil
}

// LoadLocation resolves an IANA zone name, falling back when name is empty or unknown.
func LoadLocation(name string, fallback *time.Location) (*time.Location, error) {
	if fallback == nil {
		fallback = time.Local
	}
	if name == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return loc, nil
}
