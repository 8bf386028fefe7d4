package models

import (
	"time"

	"example.com/backstage/services/fleet/domain"
)

// Container represents a waste container tracked by barcode
type Container struct {
	ID                string                 `gorm:"primaryKey;size:36" json:"id"`
	Barcode           string                 `gorm:"uniqueIndex;not null" json:"barcode"`
	Type              domain.ContainerType   `gorm:"size:16" json:"type"`
	Capacity          float64                `json:"capacity"`
	Status            domain.ContainerStatus `gorm:"size:16;index" json:"status"`
	CurrentCustomerID *string                `gorm:"size:36;index" json:"current_customer_id"`
	LastUsedDate      *time.Time             `json:"last_used_date"`
	LastCleanedDate   *time.Time             `json:"last_cleaned_date"`
	Version           int                    `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ContainerHistory is the audit row written for every container action
type ContainerHistory struct {
	ID             string                 `gorm:"primaryKey;size:36" json:"id"`
	ContainerID    string                 `gorm:"size:36;index;not null" json:"container_id"`
	DeliveryID     *string                `gorm:"size:36;index" json:"delivery_id"`
	CustomerID     *string                `gorm:"size:36;index" json:"customer_id"`
	Action         domain.ContainerAction `gorm:"size:16" json:"action"`
	Status         domain.ContainerStatus `gorm:"size:16" json:"status"`
	ScannedBy      string                 `gorm:"size:64;index" json:"scanned_by"`
	Timestamp      time.Time              `json:"timestamp"`
	Weight         *float64               `json:"weight"`
	WasteType      string                 `json:"waste_type"`
	Temperature    *float64               `json:"temperature"`
	Notes          string                 `json:"notes"`
	Latitude       *float64               `json:"latitude"`
	Longitude      *float64               `json:"longitude"`
	ManifestNumber *string                `json:"manifest_number"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (ContainerHistory) TableName() string {
	return "container_history"
}
