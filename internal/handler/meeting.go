package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	q "github.com/iliyamo/meeting-stake-calendar/internal/queue"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
	"github.com/iliyamo/meeting-stake-calendar/internal/service"
)

// MeetingHandler exposes the booking surface for MEMBER accounts: slot
// requests and the caller's own bookings. JWT and role middleware run
// before every method.
type MeetingHandler struct {
	Engine    *calendar.Engine
	Store     *repository.CalendarStore
	Publisher *service.Publisher
	Log       zerolog.Logger
}

func NewMeetingHandler(engine *calendar.Engine, store *repository.CalendarStore, publisher *service.Publisher, log zerolog.Logger) *MeetingHandler {
	if engine == nil || store == nil || publisher == nil {
		panic("nil dependency passed to NewMeetingHandler")
	}
	return &MeetingHandler{Engine: engine, Store: store, Publisher: publisher, Log: log}
}

// requestMeetingReq deliberately carries no validation tags: the engine owns
// the full check sequence and each rejection has its own error kind, so the
// handler must not pre-empt them with a generic message. An empty denom
// falls out of the engine's denom check like any other mismatch.
type requestMeetingReq struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
	Payment   struct {
		Amount uint64 `json:"amount"`
		Denom  string `json:"denom"`
	} `json:"payment"`
}

// RequestMeeting handles POST /v1/meetings. The body carries the proposed
// slot bounds as unix seconds plus the escrowed payment; the engine runs
// the full validation sequence and the first failure is returned as-is.
// On acceptance the response echoes the slot bounds and the (day key,
// index) address resolution calls will use.
func (h *MeetingHandler) RequestMeeting(c echo.Context) error {
	requester, ok := callerEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req requestMeetingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	pay := calendar.Payment{Amount: req.Payment.Amount, Denom: req.Payment.Denom}
	acc, err := h.Engine.RequestMeeting(c.Request().Context(), req.StartTime, req.EndTime, pay, requester, time.Now().UTC())
	if err != nil {
		return domainJSON(c, err)
	}

	// The booking is committed; a publish failure only costs the event.
	ev := q.MeetingBookedEvent{
		MessageID:  uuid.NewString(),
		DayKey:     acc.DayKey,
		Index:      acc.Index,
		StartTime:  acc.StartTime,
		EndTime:    acc.EndTime,
		Requester:  requester,
		Stake:      req.Payment.Amount,
		Denom:      req.Payment.Denom,
		BookingRef: acc.BookingRef,
		BookedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Publisher.PublishMeetingBooked(c.Request().Context(), ev); err != nil {
		h.Log.Warn().Err(err).Str("booking_ref", acc.BookingRef).Msg("meeting.booked event not published")
	}

	return c.JSON(http.StatusCreated, acc)
}

type myMeetingResp struct {
	DayKey     int64  `json:"day_key"`
	Index      int    `json:"meeting_index"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	Stake      uint64 `json:"stake"`
	Resolved   bool   `json:"resolved"`
	BookingRef string `json:"booking_ref"`
}

// MyMeetings handles GET /v1/my-meetings: the caller's bookings with their
// stake state. A zero stored stake means the stake has been resolved.
func (h *MeetingHandler) MyMeetings(c echo.Context) error {
	requester, ok := callerEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Store.ListByRequester(c.Request().Context(), requester)
	if err != nil {
		h.Log.Error().Err(err).Msg("list meetings by requester")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]myMeetingResp, 0, len(rows))
	for _, m := range rows {
		out = append(out, myMeetingResp{
			DayKey:     m.DayKey,
			Index:      m.Position,
			StartTime:  m.StartTime,
			EndTime:    m.EndTime,
			Stake:      m.AmountStaked,
			Resolved:   m.AmountStaked == 0,
			BookingRef: m.BookingRef,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"meetings": out})
}
