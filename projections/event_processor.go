package projections

import (
	"context"
	"fmt"

	"example.com/backstage/services/fleet/internal/tracing"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"

	"github.com/rs/zerolog/log"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
)

// ProjectionObserver receives the outcome of every projected event
type ProjectionObserver interface {
	RecordProjection(eventType string, err error)
}

// EventProcessor projects unprocessed outbox events in timestamp order
type EventProcessor struct {
	store       repository.Store
	projector   *Projector
	batchSize   int
	maxAttempts int
	metrics     ProjectionObserver
	tracer      *tracing.Tracer
}

// NewEventProcessor creates an event processor. metrics and tracer may be nil.
func NewEventProcessor(store repository.Store, projector *Projector, batchSize int, metrics ProjectionObserver, tracer *tracing.Tracer) *EventProcessor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &EventProcessor{
		store:       store,
		projector:   projector,
		batchSize:   batchSize,
		maxAttempts: defaultMaxAttempts,
		metrics:     metrics,
		tracer:      tracer,
	}
}

// WithMaxAttempts sets how many failed projections park an event
func (p *EventProcessor) WithMaxAttempts(n int) *EventProcessor {
	if n > 0 {
		p.maxAttempts = n
	}
	return p
}

// ProcessBatch projects up to one batch of events and reports how many were
// projected. A failed event keeps processed=false with its error recorded
// and is retried on the next run, until it has failed maxAttempts times.
// It is then parked and no longer selected, so it cannot hold back the
// events queued behind it.
func (p *EventProcessor) ProcessBatch(ctx context.Context) (int, error) {
	txn := p.tracer.StartTransaction("projections/batch")

	events, err := p.store.Events().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"processed": false, "parked": false},
		OrderBy: "timestamp",
		Limit:   p.batchSize,
	})
	if err != nil {
		err = fmt.Errorf("failed to load unprocessed events: %w", err)
		p.tracer.EndTransaction(txn, err)
		return 0, err
	}
	if len(events) == 0 {
		p.tracer.EndTransaction(txn, nil)
		return 0, nil
	}

	log.Info().Msgf("Processing %d events", len(events))

	projected := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		projErr := p.projector.Project(ctx, event)
		if p.metrics != nil {
			p.metrics.RecordProjection(event.EventType, projErr)
		}
		if projErr != nil {
			log.Error().Err(projErr).Str("eventID", event.ID).Msg("Failed to project event")
			p.markFailed(ctx, event, projErr)
			continue
		}

		if err := p.store.Events().UpdateFields(ctx, event.ID, map[string]interface{}{
			"processed": true,
			"error":     nil,
		}); err != nil {
			log.Error().Err(err).Str("eventID", event.ID).Msg("Failed to mark event as processed")
			continue
		}
		projected++
	}

	p.tracer.EndTransaction(txn, ctx.Err())
	return projected, ctx.Err()
}

func (p *EventProcessor) markFailed(ctx context.Context, event models.Event, projErr error) {
	msg := projErr.Error()
	attempts := event.Attempts + 1
	parked := attempts >= p.maxAttempts
	if err := p.store.Events().UpdateFields(ctx, event.ID, map[string]interface{}{
		"error":    &msg,
		"attempts": attempts,
		"parked":   parked,
	}); err != nil {
		log.Error().Err(err).Str("eventID", event.ID).Msg("Failed to record projection error")
		return
	}
	if parked {
		log.Error().
			Str("eventID", event.ID).
			Str("eventType", event.EventType).
			Int("attempts", attempts).
			Msg("Parking event after repeated projection failures")
	}
}
