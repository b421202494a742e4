package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	q "github.com/iliyamo/meeting-stake-calendar/internal/queue"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
)

// sweepBatchSize caps how many overdue stakes one sweep run announces.
const sweepBatchSize = 100

// Sweeper periodically scans for meetings that have ended while their stake
// is still held and publishes a settlement reminder for each. It does not
// resolve anything itself; resolution stays an explicit authority action.
type Sweeper struct {
	store     *repository.CalendarStore
	publisher *Publisher
	log       zerolog.Logger
	cron      *cron.Cron
}

// NewSweeper builds a sweeper over the given store and publisher.
func NewSweeper(store *repository.CalendarStore, publisher *Publisher, log zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, publisher: publisher, log: log, cron: cron.New()}
}

// Start schedules the sweep on the given cron expression and starts the
// scheduler in its own goroutine.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	rows, err := s.store.ListSettledUnresolved(ctx, now.Unix(), sweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("settlement sweep: list unresolved failed")
		return
	}
	if len(rows) == 0 {
		return
	}
	s.log.Info().Int("count", len(rows)).Msg("settlement sweep: stakes awaiting resolution")

	for _, m := range rows {
		ev := q.SettlementDueEvent{
			MessageID: uuid.NewString(),
			DayKey:    m.DayKey,
			Index:     m.Position,
			EndTime:   m.EndTime,
			Requester: m.Requester,
			Stake:     m.AmountStaked,
			NoticedAt: now.Format(time.RFC3339),
		}
		if err := s.publisher.PublishSettlementDue(ctx, ev); err != nil {
			// Logged by the publisher; the next sweep picks the stake up again.
			return
		}
	}
}
