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

// AuthorityHandler exposes the privileged surface: stake resolution, config
// updates and the unsanitized day view. Routes carry the AUTHORITY role
// middleware, and the engine independently re-checks the caller against its
// authority provider, so a mis-assigned role cannot resolve stakes.
type AuthorityHandler struct {
	Engine    *calendar.Engine
	Store     *repository.CalendarStore
	Publisher *service.Publisher
	Log       zerolog.Logger
}

func NewAuthorityHandler(engine *calendar.Engine, store *repository.CalendarStore, publisher *service.Publisher, log zerolog.Logger) *AuthorityHandler {
	if engine == nil || store == nil || publisher == nil {
		panic("nil dependency passed to NewAuthorityHandler")
	}
	return &AuthorityHandler{Engine: engine, Store: store, Publisher: publisher, Log: log}
}

type resolveStakeReq struct {
	DayKey       int64  `json:"day_key"`
	MeetingIndex int    `json:"meeting_index"`
	Action       string `json:"action" validate:"required,oneof=return full_slash partial_slash"`
	MinutesLate  uint32 `json:"minutes_late"`
}

// ResolveStake handles POST /v1/authority/resolutions. It resolves one
// settled stake exactly once and responds with the payout instructions the
// host's transfer mechanism will execute.
func (h *AuthorityHandler) ResolveStake(c echo.Context) error {
	caller, ok := callerEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req resolveStakeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be return, full_slash or partial_slash"})
	}

	action := calendar.StakeAction{Kind: calendar.ActionKind(req.Action), MinutesLate: req.MinutesLate}
	res, err := h.Engine.ResolveStake(c.Request().Context(), req.DayKey, req.MeetingIndex, action, time.Now().UTC(), caller)
	if err != nil {
		return domainJSON(c, err)
	}

	transfers := make([]q.Transfer, 0, len(res.Transfers))
	for _, tr := range res.Transfers {
		transfers = append(transfers, q.Transfer{To: tr.To, Amount: tr.Amount, Denom: tr.Denom})
	}
	ev := q.StakeResolvedEvent{
		MessageID:   uuid.NewString(),
		DayKey:      res.DayKey,
		Index:       res.Index,
		Outcome:     string(res.Kind),
		MinutesLate: res.MinutesLate,
		Stake:       res.Stake,
		Transfers:   transfers,
		ResolvedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Publisher.PublishStakeResolved(c.Request().Context(), ev); err != nil {
		// The zeroing is committed either way; the sweep will not re-announce
		// a resolved stake, so operators must replay the ledger from storage
		// if this keeps failing.
		h.Log.Error().Err(err).Int64("day_key", res.DayKey).Int("meeting_index", res.Index).
			Msg("stake.resolved event not published")
	}

	return c.JSON(http.StatusOK, res)
}

type updateConfigReq struct {
	PricePerMinute *uint64 `json:"price_per_minute"`
	CurrencySymbol *string `json:"currency_symbol"`
}

// UpdateConfig handles PATCH /v1/authority/config. Both fields are
// optional; the currency symbol is resolved to a concrete denom through the
// asset resolver before it is persisted, and the response echoes the
// symbolic name, not the resolved denom.
func (h *AuthorityHandler) UpdateConfig(c echo.Context) error {
	caller, ok := callerEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateConfigReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.PricePerMinute == nil && req.CurrencySymbol == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	update := calendar.ConfigUpdate{PricePerMinute: req.PricePerMinute, Symbol: req.CurrencySymbol}
	applied, err := h.Engine.UpdateConfig(c.Request().Context(), update, caller)
	if err != nil {
		if status := domainStatus(err); status != http.StatusInternalServerError {
			return c.JSON(status, echo.Map{"error": err.Error()})
		}
		// Resolver failures (unknown or non-native asset) surface here.
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	resp := echo.Map{}
	if applied.PricePerMinute != nil {
		resp["price_per_minute"] = *applied.PricePerMinute
	}
	if applied.Symbol != nil {
		resp["currency_symbol"] = *applied.Symbol
	}
	return c.JSON(http.StatusOK, resp)
}

type authorityMeetingResp struct {
	Index      int    `json:"meeting_index"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	Requester  string `json:"requester"`
	Stake      uint64 `json:"stake"`
	Resolved   bool   `json:"resolved"`
	BookingRef string `json:"booking_ref"`
}

// DayMeetings handles GET /v1/authority/days/:day/meetings: the full day
// bucket including requester identities and stake state, which the public
// day view withholds.
func (h *AuthorityHandler) DayMeetings(c echo.Context) error {
	dayKey, err := parseDayKey(c.Param("day"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day"})
	}
	meetings, err := h.Engine.DaySchedule(c.Request().Context(), dayKey)
	if err != nil {
		h.Log.Error().Err(err).Int64("day_key", dayKey).Msg("load day bucket")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]authorityMeetingResp, 0, len(meetings))
	for i, m := range meetings {
		out = append(out, authorityMeetingResp{
			Index:      i,
			StartTime:  m.StartTime,
			EndTime:    m.EndTime,
			Requester:  m.Requester,
			Stake:      m.AmountStaked,
			Resolved:   m.AmountStaked == 0,
			BookingRef: m.BookingRef,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"day_key": dayKey, "meetings": out})
}
