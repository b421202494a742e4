// Package calendar implements the booking engine and the stake lifecycle for
// a shared daily calendar. Parties reserve time slots by posting a refundable
// stake sized to the slot duration; the configured authority later resolves
// each stake (refund, full slash or partial slash) once the meeting has ended.
package calendar

import (
	"errors"
	"fmt"
)

// Validation failures returned by the booking path. Each one is a distinct
// business-rule rejection; none are transient and none should be retried.
var (
	ErrInvalidTime                              = errors.New("timestamp cannot be represented in the calendar timezone")
	ErrStartAndEndTimeNotOnSameDay              = errors.New("start and end time are not on the same day")
	ErrStartTimeNotRoundedToNearestMinute       = errors.New("start time is not rounded to the nearest minute")
	ErrEndTimeNotRoundedToNearestMinute         = errors.New("end time is not rounded to the nearest minute")
	ErrStartTimeMustBeInFuture                  = errors.New("start time must be in the future")
	ErrEndTimeMustBeAfterStartTime              = errors.New("end time must be after start time")
	ErrStartTimeDoesNotFallWithinCalendarBounds = errors.New("start time does not fall within calendar bounds")
	ErrEndTimeDoesNotFallWithinCalendarBounds   = errors.New("end time does not fall within calendar bounds")
	ErrMeetingConflictExists                    = errors.New("meeting conflicts with an existing meeting")
	ErrWrongDenom                               = errors.New("payment sent in wrong denom")
)

// Failures returned by the resolution path.
var (
	ErrUnauthorized                             = errors.New("caller is not the calendar authority")
	ErrNoMeetingsAtGivenDayDateTime             = errors.New("no meetings exist at the given day")
	ErrMeetingDoesNotExist                      = errors.New("meeting does not exist at the given index")
	ErrMeetingNotFinishedYet                    = errors.New("meeting is not finished yet")
	ErrStakeAlreadyHandled                      = errors.New("stake has already been handled")
	ErrMinutesLateCannotExceedDurationOfMeeting = errors.New("minutes late cannot exceed the duration of the meeting")
	ErrUnknownStakeAction                       = errors.New("unknown stake action")
)

// ErrConfigNotFound is returned by a Store when no calendar configuration has
// been saved yet. The hosting process bootstraps one on first start.
var ErrConfigNotFound = errors.New("calendar configuration not found")

// ErrNoDenomResolver is returned by a config update that names a currency
// symbol when the engine was built without a resolver.
var ErrNoDenomResolver = errors.New("no denom resolver configured")

// InvalidStakeAmountError rejects a booking whose attached payment does not
// exactly match duration_minutes * price_per_minute. It carries the expected
// amount so callers can correct the payment.
type InvalidStakeAmountError struct {
	Expected uint64
}

func (e *InvalidStakeAmountError) Error() string {
	return fmt.Sprintf("invalid stake amount sent, expected %d", e.Expected)
}
