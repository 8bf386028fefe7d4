package models

import (
	"time"

	"example.com/backstage/services/fleet/domain"
)

// Delivery represents a scheduled stop at a customer
type Delivery struct {
	ID             string                `gorm:"primaryKey;size:36" json:"id"`
	CustomerID     string                `gorm:"size:36;index;not null" json:"customer_id"`
	DriverID       *string               `gorm:"size:36;index" json:"driver_id"`
	VehicleID      *string               `gorm:"size:36;index" json:"vehicle_id"`
	LocationID     *string               `gorm:"size:36;index" json:"location_id"`
	Type           domain.DeliveryType   `gorm:"size:16" json:"type"`
	Status         domain.DeliveryStatus `gorm:"size:16;index" json:"status"`
	Priority       domain.Priority       `gorm:"size:16" json:"priority"`
	ScheduledDate  time.Time             `gorm:"index" json:"scheduled_date"`
	Sequence       *int                  `json:"sequence"`
	CompletedDate  *time.Time            `json:"completed_date"`
	Notes          string                `json:"notes"`
	ManifestNumber *string               `json:"manifest_number"`
	Version        int                   `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// DeliveryContainer links a container to a delivery, keeping list order
type DeliveryContainer struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	DeliveryID  string    `gorm:"size:36;index;not null" json:"delivery_id"`
	ContainerID string    `gorm:"size:36;index;not null" json:"container_id"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeliveryStatusEntry is one row of a delivery's append-only status history
type DeliveryStatusEntry struct {
	ID         string                `gorm:"primaryKey;size:36" json:"id"`
	DeliveryID string                `gorm:"size:36;index;not null" json:"delivery_id"`
	Sequence   int                   `json:"sequence"`
	Status     domain.DeliveryStatus `gorm:"size:16" json:"status"`
	Timestamp  time.Time             `json:"timestamp"`
	UpdatedBy  string                `gorm:"size:64" json:"updated_by"`
	Notes      string                `json:"notes"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (DeliveryStatusEntry) TableName() string {
	return "delivery_status_history"
}
