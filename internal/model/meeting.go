package model

import "time"

// MeetingRow mirrors one row of the `meetings` table.  A row is one booked
// slot inside a day bucket; (DayKey, Position) is the bucket address used by
// resolution calls.  Rows are never deleted and the only column ever updated
// is AmountStaked, which drops to zero exactly once when the stake is
// resolved.
//
// Fields:
//
//	DayKey       – unix timestamp keying the meeting's day bucket.
//	Position     – insertion index of the meeting within its bucket.
//	StartTime    – slot start, unix seconds.
//	EndTime      – slot end, unix seconds; same local day as StartTime.
//	Requester    – account that posted the stake.
//	AmountStaked – held stake; zero means already resolved.
//	BookingRef   – opaque reference handed back to the requester.
//	CreatedAt    – row creation timestamp.
type MeetingRow struct {
	DayKey       int64     // meetings.day_key
	Position     int       // meetings.position
	StartTime    int64     // meetings.start_time
	EndTime      int64     // meetings.end_time
	Requester    string    // meetings.requester
	AmountStaked uint64    // meetings.amount_staked
	BookingRef   string    // meetings.booking_ref
	CreatedAt    time.Time // meetings.created_at
}
