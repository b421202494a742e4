package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	"github.com/iliyamo/meeting-stake-calendar/internal/model"
)

// CalendarStore is the MySQL implementation of calendar.Store. The
// configuration singleton lives in calendar_config (always row id 1) and day
// buckets are the meetings rows sharing a day_key, ordered by position.
//
// Day-bucket exclusion: MutateDay locks the bucket's rows with
// SELECT ... FOR UPDATE inside a transaction, so concurrent mutations of the
// same day serialize on the row locks. Two writers appending to a bucket
// that both saw at the same size collide on the (day_key, position) primary
// key instead; the loser's transaction fails and nothing partial persists.
type CalendarStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCalendarStore returns a store bound to the given database.
func NewCalendarStore(db *sql.DB, log zerolog.Logger) *CalendarStore {
	return &CalendarStore{db: db, log: log}
}

const configRowID = 1

// LoadConfig reads the configuration singleton.
func (s *CalendarStore) LoadConfig(ctx context.Context) (calendar.Config, error) {
	var (
		cfg       calendar.Config
		startSecs int64
		endSecs   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT price_per_minute, utc_offset_seconds, day_start_secs, day_end_secs, denom
		 FROM calendar_config WHERE id=?`, configRowID).
		Scan(&cfg.PricePerMinute, &cfg.UTCOffset, &startSecs, &endSecs, &cfg.Denom)
	if err == sql.ErrNoRows {
		return calendar.Config{}, calendar.ErrConfigNotFound
	}
	if err != nil {
		return calendar.Config{}, err
	}
	cfg.DayStart = calendar.TimeOfDay(startSecs)
	cfg.DayEnd = calendar.TimeOfDay(endSecs)
	return cfg, nil
}

// SaveConfig upserts the configuration singleton.
func (s *CalendarStore) SaveConfig(ctx context.Context, cfg calendar.Config) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_config (id, price_per_minute, utc_offset_seconds, day_start_secs, day_end_secs, denom)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   price_per_minute=VALUES(price_per_minute),
		   utc_offset_seconds=VALUES(utc_offset_seconds),
		   day_start_secs=VALUES(day_start_secs),
		   day_end_secs=VALUES(day_end_secs),
		   denom=VALUES(denom)`,
		configRowID, cfg.PricePerMinute, cfg.UTCOffset, int64(cfg.DayStart), int64(cfg.DayEnd), cfg.Denom)
	if err != nil {
		s.log.Error().Err(err).Msg("save calendar config")
	}
	return err
}

// LoadDay reads a day bucket in insertion order.
func (s *CalendarStore) LoadDay(ctx context.Context, dayKey int64) ([]calendar.Meeting, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_time, end_time, requester, amount_staked, booking_ref
		 FROM meetings WHERE day_key=? ORDER BY position`, dayKey)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var meetings []calendar.Meeting
	for rows.Next() {
		var m calendar.Meeting
		if err := rows.Scan(&m.StartTime, &m.EndTime, &m.Requester, &m.AmountStaked, &m.BookingRef); err != nil {
			return nil, false, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return meetings, len(meetings) > 0, nil
}

// MutateDay runs fn against the locked day bucket and persists its result.
// Appended meetings become new rows at the next positions; meetings whose
// stake fn zeroed are updated in place. Any error from fn rolls the
// transaction back untouched.
func (s *CalendarStore) MutateDay(ctx context.Context, dayKey int64, fn func(meetings []calendar.Meeting, exists bool) ([]calendar.Meeting, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT start_time, end_time, requester, amount_staked, booking_ref
		 FROM meetings WHERE day_key=? ORDER BY position FOR UPDATE`, dayKey)
	if err != nil {
		return err
	}
	var current []calendar.Meeting
	for rows.Next() {
		var m calendar.Meeting
		if err := rows.Scan(&m.StartTime, &m.EndTime, &m.Requester, &m.AmountStaked, &m.BookingRef); err != nil {
			rows.Close()
			return err
		}
		current = append(current, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	before := len(current)
	updated, err := fn(current, before > 0)
	if err != nil {
		return err
	}

	// Stake updates on pre-existing rows.
	for i := 0; i < before && i < len(updated); i++ {
		if _, err := tx.ExecContext(ctx,
			`UPDATE meetings SET amount_staked=? WHERE day_key=? AND position=?`,
			updated[i].AmountStaked, dayKey, i); err != nil {
			return err
		}
	}
	// Appended rows.
	for i := before; i < len(updated); i++ {
		m := updated[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meetings (day_key, position, start_time, end_time, requester, amount_staked, booking_ref)
			 VALUES (?,?,?,?,?,?,?)`,
			dayKey, i, m.StartTime, m.EndTime, m.Requester, m.AmountStaked, m.BookingRef); err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == 1062 {
				return ErrPositionTaken
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Int64("day_key", dayKey).Msg("commit day bucket mutation")
		return err
	}
	committed = true
	return nil
}

// ListByRequester returns all of one requester's meetings, newest day first,
// with their bucket addresses and stake state.
func (s *CalendarStore) ListByRequester(ctx context.Context, requester string) ([]model.MeetingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day_key, position, start_time, end_time, requester, amount_staked, booking_ref, created_at
		 FROM meetings WHERE requester=? ORDER BY day_key DESC, position`, requester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetingRows(rows)
}

// ListSettledUnresolved returns meetings whose end time has passed but whose
// stake is still held, oldest first. The settlement sweep publishes
// reminders for these.
func (s *CalendarStore) ListSettledUnresolved(ctx context.Context, now int64, limit int) ([]model.MeetingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day_key, position, start_time, end_time, requester, amount_staked, booking_ref, created_at
		 FROM meetings WHERE end_time < ? AND amount_staked > 0
		 ORDER BY end_time LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetingRows(rows)
}

func scanMeetingRows(rows *sql.Rows) ([]model.MeetingRow, error) {
	out := make([]model.MeetingRow, 0)
	for rows.Next() {
		var m model.MeetingRow
		if err := rows.Scan(&m.DayKey, &m.Position, &m.StartTime, &m.EndTime,
			&m.Requester, &m.AmountStaked, &m.BookingRef, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
