// Package queue defines message payloads exchanged over the message broker
// and the background consumer that executes payout instructions.
package queue

// Transfer is one payout instruction carried inside a StakeResolvedEvent.
// The consumer — the host environment's value-transfer mechanism — executes
// these; the calendar core only emits them.
type Transfer struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Denom  string `json:"denom"`
}

// MeetingBookedEvent is published when a slot request is accepted. It
// carries the bucket address downstream consumers need to reference the
// meeting later without querying the primary database.
type MeetingBookedEvent struct {
	MessageID  string `json:"message_id"`
	DayKey     int64  `json:"day_key"`
	Index      int    `json:"meeting_index"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	Requester  string `json:"requester"`
	Stake      uint64 `json:"stake"`
	Denom      string `json:"denom"`
	BookingRef string `json:"booking_ref"`
	BookedAt   string `json:"booked_at"`
}

// StakeResolvedEvent is published when the authority resolves a stake. The
// transfer list is the payout split the resolution computed; zero-amount
// instructions are dropped before publishing.
type StakeResolvedEvent struct {
	MessageID   string     `json:"message_id"`
	DayKey      int64      `json:"day_key"`
	Index       int        `json:"meeting_index"`
	Outcome     string     `json:"outcome"` // return | full_slash | partial_slash
	MinutesLate uint32     `json:"minutes_late,omitempty"`
	Stake       uint64     `json:"stake"`
	Transfers   []Transfer `json:"transfers"`
	ResolvedAt  string     `json:"resolved_at"`
}

// SettlementDueEvent is published by the periodic sweep for each meeting
// whose end time has passed while its stake is still held, nudging the
// authority to resolve it.
type SettlementDueEvent struct {
	MessageID string `json:"message_id"`
	DayKey    int64  `json:"day_key"`
	Index     int    `json:"meeting_index"`
	EndTime   int64  `json:"end_time"`
	Requester string `json:"requester"`
	Stake     uint64 `json:"stake"`
	NoticedAt string `json:"noticed_at"`
}
