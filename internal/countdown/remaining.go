package countdown

import (
	"fmt"
	"math"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerWeek   = 7 * secondsPerDay
)

// Remaining is the signed number of whole seconds left until a target. It is
// negative once the target has passed.
type Remaining int64

// Compute returns target minus now, with now truncated to the whole second.
// The difference is taken on Unix seconds so it holds for targets beyond the
// range of time.Duration.
func Compute(target, now time.Time) Remaining {
	secs := target.Unix() - now.Truncate(time.Second).Unix()
	// A fractional target second moves a negative difference toward zero.
	if secs < 0 && target.Nanosecond() > 0 {
		secs++
	}
	return Remaining(secs)
}

func (r Remaining) Seconds() int64 {
	return int64(r)
}

// Duration converts to a time.Duration, saturating at its bounds.
func (r Remaining) Duration() time.Duration {
	switch {
	case int64(r) > math.MaxInt64/int64(time.Second):
		return time.Duration(math.MaxInt64)
	case int64(r) < math.MinInt64/int64(time.Second):
		return time.Duration(math.MinInt64)
	}
	return time.Duration(r) * time.Second
}

// Parts is the display decomposition of a Remaining. Every component
// truncates toward zero and carries the sign of the whole duration.
type Parts struct {
	Weeks    int64 `json:"weeks"`
	Days     int64 `json:"days"`
	Hours    int64 `json:"hours"`
	Minutes  int64 `json:"minutes"`
	Seconds  int64 `json:"seconds"`
	Negative bool  `json:"negative"`
}

func (r Remaining) Parts() Parts {
	secs := r.Seconds()
	return Parts{
		Weeks:    secs / secondsPerWeek,
		Days:     secs / secondsPerDay % 7,
		Hours:    secs / secondsPerHour % 24,
		Minutes:  secs / secondsPerMinute % 60,
		Seconds:  secs % 60,
		Negative: r < 0,
	}
}

// String renders the parts as WW:DD:HH:MM:SS.
func (r Remaining) String() string {
	p := r.Parts()
	return fmt.Sprintf("%02d:%02d:%02d:%02d:%02d", p.Weeks, p.Days, p.Hours, p.Minutes, p.Seconds)
}
