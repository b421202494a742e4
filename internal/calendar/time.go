package calendar

import (
	"fmt"
	"math"
)

const secondsPerDay = 86400

// TimeOfDay is a local time-of-day expressed as seconds after midnight.
// The calendar's daily operating window is a pair of these values.
type TimeOfDay int64

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String renders HH:MM:SS, the format used by the bootstrap file and the
// public calendar view.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// splitLocal converts a unix timestamp into (dayKey, timeOfDay) under the
// given fixed offset. The day key is the unix timestamp of the date's
// midnight with the date read in local time, which is how day buckets are
// addressed. With a fixed numeric offset every instant has exactly one local
// representation, so the only failure mode is arithmetic overflow near the
// edges of the representable range; that is reported as ErrInvalidTime to
// keep the defensive contract of the conversion step.
func splitLocal(ts, utcOffset int64) (dayKey int64, tod TimeOfDay, err error) {
	if (utcOffset > 0 && ts > math.MaxInt64-utcOffset) ||
		(utcOffset < 0 && ts < math.MinInt64-utcOffset) {
		return 0, 0, ErrInvalidTime
	}
	local := ts + utcOffset
	day := floorDiv(local, secondsPerDay)
	tod = TimeOfDay(local - day*secondsPerDay)
	return day * secondsPerDay, tod, nil
}

// floorDiv divides rounding toward negative infinity, so dates before the
// epoch still bucket to their own midnight.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
