package calendar

import (
	"context"
	"math/bits"
	"time"

	"github.com/google/uuid"
)

// Payment is the escrowed amount attached to a booking request. The engine
// only verifies it against the expected stake; moving the funds into custody
// is the calling transaction's concern.
type Payment struct {
	Amount uint64
	Denom  string
}

// Accepted is the observable outcome of a successful booking: the validated
// slot bounds plus the (day key, index) address later resolution calls use.
type Accepted struct {
	DayKey     int64  `json:"day_key"`
	Index      int    `json:"meeting_index"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	BookingRef string `json:"booking_ref"`
}

// ActionKind selects how a settled stake is resolved.
type ActionKind string

const (
	ActionReturn       ActionKind = "return"
	ActionFullSlash    ActionKind = "full_slash"
	ActionPartialSlash ActionKind = "partial_slash"
)

// StakeAction is a resolution request. MinutesLate is read only for
// ActionPartialSlash.
type StakeAction struct {
	Kind        ActionKind
	MinutesLate uint32
}

// Transfer is a payout instruction emitted by stake resolution. The engine
// never moves value itself; the hosting process executes these against its
// value-transfer mechanism.
type Transfer struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Denom  string `json:"denom"`
}

// Resolution describes a completed stake resolution and the transfers it
// instructs.
type Resolution struct {
	DayKey      int64      `json:"day_key"`
	Index       int        `json:"meeting_index"`
	Kind        ActionKind `json:"kind"`
	MinutesLate uint32     `json:"minutes_late,omitempty"`
	Stake       uint64     `json:"stake"`
	Transfers   []Transfer `json:"transfers"`
}

// ConfigUpdate carries the optional fields of an authority config update.
// Symbol is the unresolved asset name; the engine resolves it to a concrete
// denom through the injected resolver before persisting.
type ConfigUpdate struct {
	PricePerMinute *uint64
	Symbol         *string
}

// DenomResolver maps a symbolic asset name to the concrete transferable
// denom stakes are held in. It is consulted only from config update, never
// on the booking or resolution paths.
type DenomResolver interface {
	Resolve(ctx context.Context, symbol string) (string, error)
}

// Engine is the calendar booking and stake-resolution core. All collaborators
// are injected; every method loads configuration from the store so multiple
// engines over the same store observe config updates immediately.
type Engine struct {
	store    Store
	auth     AuthorityProvider
	resolver DenomResolver
}

// NewEngine builds an engine over the given store and capabilities. resolver
// may be nil when symbol updates are not used (tests, read-only tooling);
// a symbol update without one fails with ErrNoDenomResolver.
func NewEngine(store Store, auth AuthorityProvider, resolver DenomResolver) *Engine {
	if store == nil || auth == nil {
		panic("nil collaborator passed to NewEngine")
	}
	return &Engine{store: store, auth: auth, resolver: resolver}
}

// RequestMeeting validates a proposed slot against the operating window and
// the day's existing bookings and, on success, appends it to the day bucket
// with the attached stake. The checks run in a fixed order and the first
// failure wins, so callers always see a deterministic error for a given
// request. now is passed explicitly; "in the future" admits now == start.
func (e *Engine) RequestMeeting(ctx context.Context, startTime, endTime int64, pay Payment, requester string, now time.Time) (Accepted, error) {
	cfg, err := e.store.LoadConfig(ctx)
	if err != nil {
		return Accepted{}, err
	}
	if pay.Denom != cfg.Denom {
		return Accepted{}, ErrWrongDenom
	}

	startDay, startTod, err := splitLocal(startTime, cfg.UTCOffset)
	if err != nil {
		return Accepted{}, err
	}
	endDay, endTod, err := splitLocal(endTime, cfg.UTCOffset)
	if err != nil {
		return Accepted{}, err
	}

	if startDay != endDay {
		return Accepted{}, ErrStartAndEndTimeNotOnSameDay
	}
	if startTod.Second() != 0 {
		return Accepted{}, ErrStartTimeNotRoundedToNearestMinute
	}
	if endTod.Second() != 0 {
		return Accepted{}, ErrEndTimeNotRoundedToNearestMinute
	}
	if now.Unix() > startTime {
		return Accepted{}, ErrStartTimeMustBeInFuture
	}
	if startTod >= endTod {
		return Accepted{}, ErrEndTimeMustBeAfterStartTime
	}
	if startTod < cfg.DayStart || startTod > cfg.DayEnd {
		return Accepted{}, ErrStartTimeDoesNotFallWithinCalendarBounds
	}
	if endTod < cfg.DayStart || endTod > cfg.DayEnd {
		return Accepted{}, ErrEndTimeDoesNotFallWithinCalendarBounds
	}

	// Positive and whole by the checks above.
	durationMinutes := uint64(endTod-startTod) / 60
	expected := durationMinutes * cfg.PricePerMinute
	if pay.Amount != expected {
		return Accepted{}, &InvalidStakeAmountError{Expected: expected}
	}

	accepted := Accepted{
		DayKey:     startDay,
		StartTime:  startTime,
		EndTime:    endTime,
		BookingRef: uuid.NewString(),
	}
	err = e.store.MutateDay(ctx, startDay, func(meetings []Meeting, _ bool) ([]Meeting, error) {
		for _, m := range meetings {
			// Half-open overlap, tested pairwise from both endpoints. This is
			// the predicate the system has always shipped with; see the
			// containment note in DESIGN.md before changing it.
			startConflicts := m.StartTime <= startTime && startTime < m.EndTime
			endConflicts := m.StartTime < endTime && endTime <= m.EndTime
			if startConflicts || endConflicts {
				return nil, ErrMeetingConflictExists
			}
		}
		accepted.Index = len(meetings)
		return append(meetings, Meeting{
			StartTime:    startTime,
			EndTime:      endTime,
			Requester:    requester,
			AmountStaked: pay.Amount,
			BookingRef:   accepted.BookingRef,
		}), nil
	})
	if err != nil {
		return Accepted{}, err
	}
	return accepted, nil
}

// ResolveStake transitions a settled meeting's stake from held to resolved,
// exactly once, and returns the payout instructions the chosen action
// implies. Only the authority may call it. The stake zeroing and the payout
// computation commit as a unit: either the bucket is persisted with the
// zeroed stake and the instructions are returned, or nothing changes.
func (e *Engine) ResolveStake(ctx context.Context, dayKey int64, meetingIndex int, action StakeAction, now time.Time, caller string) (Resolution, error) {
	ok, err := e.auth.IsAuthority(ctx, caller)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		return Resolution{}, ErrUnauthorized
	}

	cfg, err := e.store.LoadConfig(ctx)
	if err != nil {
		return Resolution{}, err
	}
	authorityAccount, err := e.auth.Account(ctx)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{DayKey: dayKey, Index: meetingIndex, Kind: action.Kind}
	err = e.store.MutateDay(ctx, dayKey, func(meetings []Meeting, exists bool) ([]Meeting, error) {
		if !exists {
			return nil, ErrNoMeetingsAtGivenDayDateTime
		}
		if meetingIndex < 0 || meetingIndex >= len(meetings) {
			return nil, ErrMeetingDoesNotExist
		}
		m := &meetings[meetingIndex]
		if now.Unix() <= m.EndTime {
			return nil, ErrMeetingNotFinishedYet
		}
		staked := m.AmountStaked
		if staked == 0 {
			return nil, ErrStakeAlreadyHandled
		}

		switch action.Kind {
		case ActionReturn:
			res.Transfers = []Transfer{{To: m.Requester, Amount: staked, Denom: cfg.Denom}}
		case ActionFullSlash:
			res.Transfers = []Transfer{{To: authorityAccount, Amount: staked, Denom: cfg.Denom}}
		case ActionPartialSlash:
			durationMinutes := uint64(m.EndTime-m.StartTime) / 60
			if uint64(action.MinutesLate) > durationMinutes {
				return nil, ErrMinutesLateCannotExceedDurationOfMeeting
			}
			slashed := mulRatio(staked, uint64(action.MinutesLate), durationMinutes)
			res.MinutesLate = action.MinutesLate
			res.Transfers = []Transfer{
				{To: m.Requester, Amount: staked - slashed, Denom: cfg.Denom},
				{To: authorityAccount, Amount: slashed, Denom: cfg.Denom},
			}
		default:
			return nil, ErrUnknownStakeAction
		}

		res.Stake = staked
		m.AmountStaked = 0
		return meetings, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// UpdateConfig applies an authority config update: a new price per minute
// and/or a new stake denom given by its symbolic name. The returned update
// echoes what changed, with the denom still in its unresolved symbolic form
// for observability.
func (e *Engine) UpdateConfig(ctx context.Context, update ConfigUpdate, caller string) (ConfigUpdate, error) {
	ok, err := e.auth.IsAuthority(ctx, caller)
	if err != nil {
		return ConfigUpdate{}, err
	}
	if !ok {
		return ConfigUpdate{}, ErrUnauthorized
	}

	cfg, err := e.store.LoadConfig(ctx)
	if err != nil {
		return ConfigUpdate{}, err
	}
	var applied ConfigUpdate
	if update.PricePerMinute != nil {
		cfg.PricePerMinute = *update.PricePerMinute
		applied.PricePerMinute = update.PricePerMinute
	}
	if update.Symbol != nil {
		if e.resolver == nil {
			return ConfigUpdate{}, ErrNoDenomResolver
		}
		denom, err := e.resolver.Resolve(ctx, *update.Symbol)
		if err != nil {
			return ConfigUpdate{}, err
		}
		cfg.Denom = denom
		applied.Symbol = update.Symbol
	}
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return ConfigUpdate{}, err
	}
	return applied, nil
}

// DaySchedule returns the day bucket for the given key in insertion order.
// Absent buckets read as empty.
func (e *Engine) DaySchedule(ctx context.Context, dayKey int64) ([]Meeting, error) {
	meetings, _, err := e.store.LoadDay(ctx, dayKey)
	return meetings, err
}

// Config exposes the current configuration for read surfaces.
func (e *Engine) Config(ctx context.Context) (Config, error) {
	return e.store.LoadConfig(ctx)
}

// mulRatio computes stake * num / den with a 128-bit intermediate so the
// product cannot overflow. den must be nonzero and num <= den, which callers
// guarantee; the quotient then always fits in 64 bits.
func mulRatio(stake, num, den uint64) uint64 {
	hi, lo := bits.Mul64(stake, num)
	q, _ := bits.Div64(hi, lo, den)
	return q
}
