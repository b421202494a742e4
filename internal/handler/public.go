package handler

import (
	"fmt"
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
)

// PublicHandler serves the unauthenticated browse surface. Day views are
// sanitized: booked intervals are visible so members can pick a free slot,
// but requester identity and stake amounts are not.
type PublicHandler struct {
	Engine *calendar.Engine
	Log    zerolog.Logger
}

func NewPublicHandler(engine *calendar.Engine, log zerolog.Logger) *PublicHandler {
	if engine == nil {
		panic("nil engine passed to NewPublicHandler")
	}
	return &PublicHandler{Engine: engine, Log: log}
}

// Calendar handles GET /v1/calendar: the booking parameters a client needs
// before requesting a slot.
func (h *PublicHandler) Calendar(c echo.Context) error {
	cfg, err := h.Engine.Config(c.Request().Context())
	if err != nil {
		return domainJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"price_per_minute":   cfg.PricePerMinute,
		"denom":              cfg.Denom,
		"utc_offset_seconds": cfg.UTCOffset,
		"day_start":          cfg.DayStart.String(),
		"day_end":            cfg.DayEnd.String(),
	})
}

type publicSlotResp struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

// DayMeetings handles GET /v1/days/:day/meetings. The day accepts either a
// raw day key or a YYYY-MM-DD date.
func (h *PublicHandler) DayMeetings(c echo.Context) error {
	dayKey, err := parseDayKey(c.Param("day"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day"})
	}
	meetings, err := h.Engine.DaySchedule(c.Request().Context(), dayKey)
	if err != nil {
		h.Log.Error().Err(err).Int64("day_key", dayKey).Msg("load day bucket")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	slots := make([]publicSlotResp, 0, len(meetings))
	for _, m := range meetings {
		slots = append(slots, publicSlotResp{StartTime: m.StartTime, EndTime: m.EndTime})
	}
	return c.JSON(http.StatusOK, echo.Map{"day_key": dayKey, "slots": slots})
}

// DayScheduleICS handles GET /v1/days/:day/schedule.ics: the same sanitized
// day view rendered as an iCalendar feed so the busy intervals can be
// overlaid on a regular calendar client.
func (h *PublicHandler) DayScheduleICS(c echo.Context) error {
	dayKey, err := parseDayKey(c.Param("day"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day"})
	}
	meetings, err := h.Engine.DaySchedule(c.Request().Context(), dayKey)
	if err != nil {
		h.Log.Error().Err(err).Int64("day_key", dayKey).Msg("load day bucket")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//meeting-stake-calendar//EN")
	now := time.Now().UTC()
	for i, m := range meetings {
		ev := cal.AddEvent(fmt.Sprintf("%d-%d@meeting-stake-calendar", dayKey, i))
		ev.SetDtStampTime(now)
		ev.SetStartAt(time.Unix(m.StartTime, 0).UTC())
		ev.SetEndAt(time.Unix(m.EndTime, 0).UTC())
		ev.SetSummary("Booked")
	}

	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal.Serialize()))
}
