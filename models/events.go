package models

import (
	"encoding/json"
	"time"
)

// Event represents a domain event in the outbox table. Rows are written in the
// same transaction as the mutation they describe and projected by the worker.
type Event struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	AggregateID   string          `gorm:"size:36;index" json:"aggregate_id"`
	AggregateType string          `gorm:"size:32" json:"aggregate_type"`
	EventType     string          `gorm:"size:64" json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Version       int             `json:"version"`
	ActorID       string          `gorm:"size:64" json:"actor_id"`
	Timestamp     time.Time       `gorm:"index" json:"timestamp"`
	Processed     bool            `gorm:"index" json:"processed"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	Parked        bool            `gorm:"index;not null;default:false" json:"parked"`
	Error         *string         `json:"error"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// All returns every model managed by migrations
func All() []interface{} {
	return []interface{}{
		&Customer{},
		&Location{},
		&Vehicle{},
		&Driver{},
		&Delivery{},
		&DeliveryContainer{},
		&DeliveryStatusEntry{},
		&Container{},
		&ContainerHistory{},
		&Incident{},
		&IncidentComment{},
		&MaintenanceRecord{},
		&VehicleInspection{},
		&Event{},
	}
}
