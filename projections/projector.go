package projections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/fleet/config"
	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
)

// FleetEventDocument is the search document written for every outbox event
type FleetEventDocument struct {
	EventID       string          `json:"event_id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Version       int             `json:"version"`
	ActorID       string          `json:"actor_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// Projector indexes outbox events into the search indices
type Projector struct {
	indexer Indexer
	cfg     config.ElasticConfig
}

func NewProjector(indexer Indexer, cfg config.ElasticConfig) *Projector {
	return &Projector{indexer: indexer, cfg: cfg}
}

// Project indexes event into the fleet event log and, for status changes and
// scans, into the matching history index
func (p *Projector) Project(ctx context.Context, event models.Event) error {
	if err := p.index(ctx, FleetEventsIndex, event.ID, FleetEventDocument{
		EventID:       event.ID,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Version:       event.Version,
		ActorID:       event.ActorID,
		Timestamp:     event.Timestamp,
		Data:          event.Data,
	}); err != nil {
		return err
	}

	switch event.EventType {
	case domain.DeliveryStatusChanged:
		var data domain.DeliveryStatusChangedEvent
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return p.index(ctx, DeliveryHistoryIndex, event.ID, data)

	case domain.ContainerActionRecorded:
		var data domain.ContainerActionRecordedEvent
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return p.index(ctx, ContainerHistoryIndex, data.HistoryID, data)
	}

	return nil
}

func (p *Projector) index(ctx context.Context, index, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", index, err)
	}
	return p.indexer.Index(ctx, config.FormatIndex(p.cfg, index), id, body)
}
