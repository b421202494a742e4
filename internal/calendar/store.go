package calendar

import "context"

// Config is the calendar instance configuration. It is a singleton record,
// written at bootstrap and mutable only through the authority's config
// update; the UTC offset and operating window are fixed for the calendar's
// lifetime.
type Config struct {
	PricePerMinute uint64    // stake units charged per minute of slot duration
	UTCOffset      int64     // seconds east of UTC, constant for the calendar
	DayStart       TimeOfDay // inclusive lower bound of the bookable window
	DayEnd         TimeOfDay // inclusive upper bound of the bookable window
	Denom          string    // concrete unit stakes are denominated in
}

// Meeting is one booked slot on one calendar day. It is created only by the
// booking path, never deleted, and its single later mutation is the resolver
// zeroing AmountStaked. A zero AmountStaked marks the stake as resolved.
type Meeting struct {
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	Requester    string `json:"requester"`
	AmountStaked uint64 `json:"amount_staked"`
	BookingRef   string `json:"booking_ref"`
}

// Store is the persistence handle injected into the engine. A day bucket —
// the ordered meeting list for one local calendar day — is the unit of
// mutual exclusion: MutateDay must run its callback inside a boundary that
// reads and writes the bucket atomically, so that the conflict-free and
// exactly-once invariants hold outside a single-writer environment.
type Store interface {
	// LoadConfig returns the configuration singleton, or ErrConfigNotFound
	// when the calendar has not been bootstrapped yet.
	LoadConfig(ctx context.Context) (Config, error)

	// SaveConfig writes the configuration singleton.
	SaveConfig(ctx context.Context, cfg Config) error

	// LoadDay returns the day bucket for the given key. The second return is
	// false when no bucket exists for that day.
	LoadDay(ctx context.Context, dayKey int64) ([]Meeting, bool, error)

	// MutateDay runs fn against the day bucket under the bucket's exclusion
	// boundary. fn receives the current meetings (nil when the bucket is
	// absent, with exists false) and returns the list to persist. When fn
	// returns an error nothing is persisted and the error is passed through.
	MutateDay(ctx context.Context, dayKey int64, fn func(meetings []Meeting, exists bool) ([]Meeting, error)) error
}
