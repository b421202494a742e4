package calendar

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

// Fixture: operating window 09:00-17:00 local, UTC calendar, 10 units per
// minute, denom "unit". Day zero of the fixture is 2030-01-01 (unix 1893456000),
// a date safely in the future for the in-future check.
const testDay = int64(1893456000)

func testConfig() Config {
	return Config{
		PricePerMinute: 10,
		UTCOffset:      0,
		DayStart:       NewTimeOfDay(9, 0, 0),
		DayEnd:         NewTimeOfDay(17, 0, 0),
		Denom:          "unit",
	}
}

func newTestEngine(t *testing.T) (*Engine, *MemStore) {
	t.Helper()
	store := NewMemStore()
	if err := store.SaveConfig(context.Background(), testConfig()); err != nil {
		t.Fatalf("save config: %v", err)
	}
	eng := NewEngine(store, NewStaticAuthority("authority@example.com"), nil)
	return eng, store
}

// at returns the unix timestamp for hh:mm on the fixture day.
func at(hour, minute int) int64 {
	return testDay + int64(hour)*3600 + int64(minute)*60
}

func pay(amount uint64) Payment { return Payment{Amount: amount, Denom: "unit"} }

var testNow = time.Unix(testDay, 0) // midnight of the fixture day

func TestRequestMeetingAccepts(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	acc, err := eng.RequestMeeting(ctx, at(10, 0), at(10, 30), pay(300), "alice", testNow)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if acc.DayKey != testDay {
		t.Errorf("day key = %d, want %d", acc.DayKey, testDay)
	}
	if acc.Index != 0 {
		t.Errorf("index = %d, want 0", acc.Index)
	}
	if acc.StartTime != at(10, 0) || acc.EndTime != at(10, 30) {
		t.Errorf("bounds = (%d,%d), want (%d,%d)", acc.StartTime, acc.EndTime, at(10, 0), at(10, 30))
	}
	if acc.BookingRef == "" {
		t.Error("empty booking ref")
	}

	meetings, ok, err := store.LoadDay(ctx, testDay)
	if err != nil || !ok {
		t.Fatalf("load day: ok=%v err=%v", ok, err)
	}
	if len(meetings) != 1 {
		t.Fatalf("bucket size = %d, want 1", len(meetings))
	}
	m := meetings[0]
	if m.Requester != "alice" || m.AmountStaked != 300 {
		t.Errorf("stored meeting = %+v", m)
	}
}

func TestRequestMeetingValidationOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		start   int64
		end     int64
		payment Payment
		now     time.Time
		wantErr error
	}{
		{"wrong denom", at(10, 0), at(10, 30), Payment{Amount: 300, Denom: "other"}, testNow, ErrWrongDenom},
		{"cross-day span", at(16, 0), at(16, 0) + 86400, pay(300), testNow, ErrStartAndEndTimeNotOnSameDay},
		{"start not rounded", at(10, 0) + 30, at(10, 30), pay(300), testNow, ErrStartTimeNotRoundedToNearestMinute},
		{"end not rounded", at(10, 0), at(10, 30) + 1, pay(300), testNow, ErrEndTimeNotRoundedToNearestMinute},
		{"start in the past", at(10, 0), at(10, 30), pay(300), time.Unix(at(10, 1), 0), ErrStartTimeMustBeInFuture},
		{"end before start", at(10, 30), at(10, 0), pay(300), testNow, ErrEndTimeMustBeAfterStartTime},
		{"end equals start", at(10, 0), at(10, 0), pay(0), testNow, ErrEndTimeMustBeAfterStartTime},
		{"start before window", at(8, 59), at(10, 0), pay(610), testNow, ErrStartTimeDoesNotFallWithinCalendarBounds},
		{"end after window", at(16, 30), at(17, 1), pay(310), testNow, ErrEndTimeDoesNotFallWithinCalendarBounds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.RequestMeeting(ctx, tc.start, tc.end, tc.payment, "alice", tc.now)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRequestMeetingExactPayment(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// 30 minutes at 10/minute expects exactly 300.
	for _, amount := range []uint64{0, 1, 299, 301, 600} {
		_, err := eng.RequestMeeting(ctx, at(10, 0), at(10, 30), pay(amount), "alice", testNow)
		var stakeErr *InvalidStakeAmountError
		if !errors.As(err, &stakeErr) {
			t.Fatalf("amount %d: err = %v, want InvalidStakeAmountError", amount, err)
		}
		if stakeErr.Expected != 300 {
			t.Errorf("amount %d: expected carried = %d, want 300", amount, stakeErr.Expected)
		}
	}
}

func TestRequestMeetingStartEqualsNow(t *testing.T) {
	eng, _ := newTestEngine(t)

	// now == start_time is not in the past and must pass.
	_, err := eng.RequestMeeting(context.Background(), at(10, 0), at(10, 30), pay(300), "alice", time.Unix(at(10, 0), 0))
	if err != nil {
		t.Fatalf("request at now == start: %v", err)
	}
}

func TestRequestMeetingWindowBoundaries(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// Exactly spanning the whole operating window is accepted.
	if _, err := eng.RequestMeeting(ctx, at(9, 0), at(17, 0), pay(4800), "alice", testNow); err != nil {
		t.Fatalf("full-window slot rejected: %v", err)
	}
}

func TestRequestMeetingConflicts(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.RequestMeeting(ctx, at(10, 0), at(10, 30), pay(300), "alice", testNow); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	cases := []struct {
		name  string
		start int64
		end   int64
	}{
		{"identical slot", at(10, 0), at(10, 30)},
		{"starts inside", at(10, 15), at(10, 45)},
		{"ends inside", at(9, 45), at(10, 15)},
		{"ends at existing end", at(10, 15), at(10, 30)},
		{"starts at existing start", at(10, 0), at(10, 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minutes := uint64(tc.end-tc.start) / 60
			_, err := eng.RequestMeeting(ctx, tc.start, tc.end, pay(minutes*10), "bob", testNow)
			if !errors.Is(err, ErrMeetingConflictExists) {
				t.Errorf("err = %v, want ErrMeetingConflictExists", err)
			}
		})
	}

	// Back-to-back slots share a boundary but do not overlap under half-open
	// semantics.
	if _, err := eng.RequestMeeting(ctx, at(10, 30), at(11, 0), pay(300), "bob", testNow); err != nil {
		t.Fatalf("adjacent slot rejected: %v", err)
	}
	if _, err := eng.RequestMeeting(ctx, at(9, 30), at(10, 0), pay(300), "bob", testNow); err != nil {
		t.Fatalf("preceding adjacent slot rejected: %v", err)
	}
}

// The shipped overlap predicate tests, pairwise, whether the new start or the
// new end lands inside an existing interval. A new interval strictly
// containing an existing one triggers neither arm. This test documents that
// behavior; it is intentional fidelity to the deployed predicate, not an
// endorsement.
func TestRequestMeetingStrictContainmentGap(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.RequestMeeting(ctx, at(10, 10), at(10, 20), pay(100), "alice", testNow); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	if _, err := eng.RequestMeeting(ctx, at(10, 0), at(10, 30), pay(300), "bob", testNow); err != nil {
		t.Fatalf("strictly containing slot: got %v, predicate does not catch containment", err)
	}
}

func TestRequestMeetingRandomizedNonOverlap(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	// Throw random minute-aligned slots at one day; whatever the engine
	// accepts must be pairwise non-overlapping, except for the documented
	// strict-containment gap in the shipped predicate (see
	// TestRequestMeetingStrictContainmentGap), which the final assertion
	// carves out.
	for i := 0; i < 200; i++ {
		startMin := 9*60 + rng.Intn(8*60)
		durMin := 1 + rng.Intn(60)
		endMin := startMin + durMin
		if endMin > 17*60 {
			continue
		}
		start := testDay + int64(startMin)*60
		end := testDay + int64(endMin)*60
		_, err := eng.RequestMeeting(ctx, start, end, pay(uint64(durMin)*10), "fuzz", testNow)
		if err != nil && !errors.Is(err, ErrMeetingConflictExists) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	meetings, _, err := store.LoadDay(ctx, testDay)
	if err != nil {
		t.Fatalf("load day: %v", err)
	}
	for i := 0; i < len(meetings); i++ {
		for j := i + 1; j < len(meetings); j++ {
			a, b := meetings[i], meetings[j]
			overlaps := a.StartTime < b.EndTime && b.StartTime < a.EndTime
			// b was inserted after a, so only b-contains-a can slip through.
			contained := b.StartTime < a.StartTime && a.EndTime < b.EndTime
			if overlaps && !contained {
				t.Errorf("accepted overlap: [%d,%d) and [%d,%d)", a.StartTime, a.EndTime, b.StartTime, b.EndTime)
			}
		}
	}
}

func TestRequestMeetingZeroPrice(t *testing.T) {
	store := NewMemStore()
	cfg := testConfig()
	cfg.PricePerMinute = 0
	if err := store.SaveConfig(context.Background(), cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	eng := NewEngine(store, NewStaticAuthority("authority@example.com"), nil)

	// A zero price yields zero-stake bookings; the engine does not
	// special-case it.
	acc, err := eng.RequestMeeting(context.Background(), at(10, 0), at(10, 30), pay(0), "alice", testNow)
	if err != nil {
		t.Fatalf("zero-stake request: %v", err)
	}
	res, err := eng.ResolveStake(context.Background(), acc.DayKey, acc.Index, StakeAction{Kind: ActionFullSlash}, time.Unix(acc.EndTime+1, 0), "authority@example.com")
	if !errors.Is(err, ErrStakeAlreadyHandled) {
		t.Fatalf("zero stake resolution: res=%+v err=%v, want ErrStakeAlreadyHandled", res, err)
	}
}

func TestRequestMeetingNonUTCOffset(t *testing.T) {
	store := NewMemStore()
	cfg := testConfig()
	cfg.UTCOffset = 5 * 3600 // UTC+5 calendar
	if err := store.SaveConfig(context.Background(), cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	eng := NewEngine(store, NewStaticAuthority("authority@example.com"), nil)
	ctx := context.Background()

	// 10:00 local on the fixture day is 05:00 UTC.
	start := testDay + 5*3600
	end := start + 1800
	acc, err := eng.RequestMeeting(ctx, start, end, pay(300), "alice", testNow)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if acc.DayKey != testDay {
		t.Errorf("day key = %d, want local midnight key %d", acc.DayKey, testDay)
	}

	// The same wall-clock instant shifted to land at 05:00 local is outside
	// the window.
	if _, err := eng.RequestMeeting(ctx, testDay, testDay+1800, pay(300), "alice", testNow); !errors.Is(err, ErrStartTimeDoesNotFallWithinCalendarBounds) {
		t.Errorf("err = %v, want ErrStartTimeDoesNotFallWithinCalendarBounds", err)
	}
}

func book(t *testing.T, eng *Engine) Accepted {
	t.Helper()
	acc, err := eng.RequestMeeting(context.Background(), at(10, 0), at(10, 30), pay(300), "alice", testNow)
	if err != nil {
		t.Fatalf("book fixture slot: %v", err)
	}
	return acc
}

func TestResolveStakeReturn(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	acc := book(t, eng)
	after := time.Unix(acc.EndTime+1, 0)

	res, err := eng.ResolveStake(ctx, acc.DayKey, acc.Index, StakeAction{Kind: ActionReturn}, after, "authority@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []Transfer{{To: "alice", Amount: 300, Denom: "unit"}}
	if len(res.Transfers) != 1 || res.Transfers[0] != want[0] {
		t.Errorf("transfers = %+v, want %+v", res.Transfers, want)
	}

	meetings, _, _ := store.LoadDay(ctx, acc.DayKey)
	if meetings[0].AmountStaked != 0 {
		t.Errorf("stake not zeroed: %d", meetings[0].AmountStaked)
	}
}

func TestResolveStakeFullSlash(t *testing.T) {
	eng, _ := newTestEngine(t)
	acc := book(t, eng)

	res, err := eng.ResolveStake(context.Background(), acc.DayKey, acc.Index, StakeAction{Kind: ActionFullSlash}, time.Unix(acc.EndTime+1, 0), "authority@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := Transfer{To: "authority@example.com", Amount: 300, Denom: "unit"}
	if len(res.Transfers) != 1 || res.Transfers[0] != want {
		t.Errorf("transfers = %+v, want [%+v]", res.Transfers, want)
	}
}

func TestResolveStakePartialSlash(t *testing.T) {
	eng, _ := newTestEngine(t)
	acc := book(t, eng) // 30 minutes, stake 300

	res, err := eng.ResolveStake(context.Background(), acc.DayKey, acc.Index,
		StakeAction{Kind: ActionPartialSlash, MinutesLate: 10}, time.Unix(acc.EndTime+1, 0), "authority@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(res.Transfers) != 2 {
		t.Fatalf("transfers = %+v, want refund + slash", res.Transfers)
	}
	refund, slash := res.Transfers[0], res.Transfers[1]
	if refund.To != "alice" || refund.Amount != 200 {
		t.Errorf("refund = %+v, want 200 to alice", refund)
	}
	if slash.To != "authority@example.com" || slash.Amount != 100 {
		t.Errorf("slash = %+v, want 100 to authority", slash)
	}
}

func TestResolveStakePartialSlashConservation(t *testing.T) {
	for late := uint32(0); late <= 30; late++ {
		eng, _ := newTestEngine(t)
		acc := book(t, eng)
		res, err := eng.ResolveStake(context.Background(), acc.DayKey, acc.Index,
			StakeAction{Kind: ActionPartialSlash, MinutesLate: late}, time.Unix(acc.EndTime+1, 0), "authority@example.com")
		if err != nil {
			t.Fatalf("minutes_late=%d: %v", late, err)
		}
		total := uint64(0)
		for _, tr := range res.Transfers {
			total += tr.Amount
		}
		if total != 300 {
			t.Errorf("minutes_late=%d: refund+slash = %d, want 300", late, total)
		}
	}
}

func TestResolveStakeErrors(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	acc := book(t, eng)
	after := time.Unix(acc.EndTime+1, 0)

	cases := []struct {
		name    string
		dayKey  int64
		index   int
		action  StakeAction
		now     time.Time
		caller  string
		wantErr error
	}{
		{"not the authority", acc.DayKey, acc.Index, StakeAction{Kind: ActionReturn}, after, "alice", ErrUnauthorized},
		{"unknown day", acc.DayKey + 86400, acc.Index, StakeAction{Kind: ActionReturn}, after, "authority@example.com", ErrNoMeetingsAtGivenDayDateTime},
		{"index out of bounds", acc.DayKey, 5, StakeAction{Kind: ActionReturn}, after, "authority@example.com", ErrMeetingDoesNotExist},
		{"negative index", acc.DayKey, -1, StakeAction{Kind: ActionReturn}, after, "authority@example.com", ErrMeetingDoesNotExist},
		{"not finished", acc.DayKey, acc.Index, StakeAction{Kind: ActionReturn}, time.Unix(acc.EndTime, 0), "authority@example.com", ErrMeetingNotFinishedYet},
		{"late exceeds duration", acc.DayKey, acc.Index, StakeAction{Kind: ActionPartialSlash, MinutesLate: 31}, after, "authority@example.com", ErrMinutesLateCannotExceedDurationOfMeeting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.ResolveStake(ctx, tc.dayKey, tc.index, tc.action, tc.now, tc.caller)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolveStakeExactlyOnce(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	acc := book(t, eng)
	after := time.Unix(acc.EndTime+1, 0)

	if _, err := eng.ResolveStake(ctx, acc.DayKey, acc.Index, StakeAction{Kind: ActionReturn}, after, "authority@example.com"); err != nil {
		t.Fatalf("first resolution: %v", err)
	}
	for _, kind := range []ActionKind{ActionReturn, ActionFullSlash, ActionPartialSlash} {
		if _, err := eng.ResolveStake(ctx, acc.DayKey, acc.Index, StakeAction{Kind: kind}, after, "authority@example.com"); !errors.Is(err, ErrStakeAlreadyHandled) {
			t.Errorf("second resolution via %s: err = %v, want ErrStakeAlreadyHandled", kind, err)
		}
	}
}

func TestResolveStakeFailureLeavesStakeHeld(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	acc := book(t, eng)

	// A rejected resolution must not commit the zeroing.
	_, err := eng.ResolveStake(ctx, acc.DayKey, acc.Index,
		StakeAction{Kind: ActionPartialSlash, MinutesLate: 31}, time.Unix(acc.EndTime+1, 0), "authority@example.com")
	if !errors.Is(err, ErrMinutesLateCannotExceedDurationOfMeeting) {
		t.Fatalf("err = %v", err)
	}
	meetings, _, _ := store.LoadDay(ctx, acc.DayKey)
	if meetings[0].AmountStaked != 300 {
		t.Errorf("stake = %d after failed resolution, want 300", meetings[0].AmountStaked)
	}
}

func TestUpdateConfig(t *testing.T) {
	store := NewMemStore()
	if err := store.SaveConfig(context.Background(), testConfig()); err != nil {
		t.Fatalf("save config: %v", err)
	}
	resolver := staticResolverFunc(func(symbol string) (string, error) {
		if symbol == "token" {
			return "utoken", nil
		}
		return "", errors.New("unknown asset")
	})
	eng := NewEngine(store, NewStaticAuthority("authority@example.com"), resolver)
	ctx := context.Background()

	price := uint64(25)
	symbol := "token"
	applied, err := eng.UpdateConfig(ctx, ConfigUpdate{PricePerMinute: &price, Symbol: &symbol}, "authority@example.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if applied.Symbol == nil || *applied.Symbol != "token" {
		t.Errorf("applied symbol = %v, want unresolved name back", applied.Symbol)
	}

	cfg, _ := store.LoadConfig(ctx)
	if cfg.PricePerMinute != 25 || cfg.Denom != "utoken" {
		t.Errorf("config after update = %+v", cfg)
	}

	if _, err := eng.UpdateConfig(ctx, ConfigUpdate{PricePerMinute: &price}, "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-authority update: err = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateConfigWithoutResolver(t *testing.T) {
	eng, store := newTestEngine(t) // built with a nil resolver
	ctx := context.Background()

	symbol := "token"
	if _, err := eng.UpdateConfig(ctx, ConfigUpdate{Symbol: &symbol}, "authority@example.com"); !errors.Is(err, ErrNoDenomResolver) {
		t.Errorf("symbol update without resolver: err = %v, want ErrNoDenomResolver", err)
	}

	// Price-only updates never consult the resolver and must still apply.
	price := uint64(99)
	if _, err := eng.UpdateConfig(ctx, ConfigUpdate{PricePerMinute: &price}, "authority@example.com"); err != nil {
		t.Fatalf("price-only update: %v", err)
	}
	cfg, _ := store.LoadConfig(ctx)
	if cfg.PricePerMinute != 99 || cfg.Denom != "unit" {
		t.Errorf("config after price-only update = %+v", cfg)
	}
}

// staticResolverFunc adapts a function to the DenomResolver interface.
type staticResolverFunc func(symbol string) (string, error)

func (f staticResolverFunc) Resolve(_ context.Context, symbol string) (string, error) {
	return f(symbol)
}
