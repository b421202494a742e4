package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
)

// callerEmail pulls the authenticated account's email from the context,
// where the JWT middleware stored it. The email is the identity the engine
// records as a requester and checks against the authority.
func callerEmail(c echo.Context) (string, bool) {
	v, ok := c.Get("email").(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// parseDayKey accepts a day parameter either as the raw unix day key or as
// a YYYY-MM-DD date, which maps to the same key the engine derives for
// meetings on that local date.
func parseDayKey(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// domainStatus maps engine errors onto HTTP status codes. Every engine
// error is a terminal business-rule rejection; the split below only decides
// how the rejection reads over HTTP.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, calendar.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, calendar.ErrNoMeetingsAtGivenDayDateTime),
		errors.Is(err, calendar.ErrMeetingDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, calendar.ErrMeetingConflictExists),
		errors.Is(err, calendar.ErrStakeAlreadyHandled),
		errors.Is(err, calendar.ErrMeetingNotFinishedYet),
		errors.Is(err, repository.ErrPositionTaken):
		// Losing a day-bucket append race reads as a conflict too; the
		// client re-fetches the day and picks again.
		return http.StatusConflict
	case errors.Is(err, calendar.ErrConfigNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, calendar.ErrInvalidTime),
		errors.Is(err, calendar.ErrStartAndEndTimeNotOnSameDay),
		errors.Is(err, calendar.ErrStartTimeNotRoundedToNearestMinute),
		errors.Is(err, calendar.ErrEndTimeNotRoundedToNearestMinute),
		errors.Is(err, calendar.ErrStartTimeMustBeInFuture),
		errors.Is(err, calendar.ErrEndTimeMustBeAfterStartTime),
		errors.Is(err, calendar.ErrStartTimeDoesNotFallWithinCalendarBounds),
		errors.Is(err, calendar.ErrEndTimeDoesNotFallWithinCalendarBounds),
		errors.Is(err, calendar.ErrWrongDenom),
		errors.Is(err, calendar.ErrMinutesLateCannotExceedDurationOfMeeting),
		errors.Is(err, calendar.ErrUnknownStakeAction):
		return http.StatusBadRequest
	}
	var stakeErr *calendar.InvalidStakeAmountError
	if errors.As(err, &stakeErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// domainJSON writes an engine error as the standard error envelope,
// attaching the expected amount when the payment was wrong.
func domainJSON(c echo.Context, err error) error {
	status := domainStatus(err)
	if status == http.StatusInternalServerError {
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	var stakeErr *calendar.InvalidStakeAmountError
	if errors.As(err, &stakeErr) {
		return c.JSON(status, echo.Map{"error": err.Error(), "expected_amount": stakeErr.Expected})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
