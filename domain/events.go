package domain

import (
	"time"
)

// EventType constants
const (
	// Delivery events
	DeliveryCreated       = "V1_DELIVERY_CREATED"
	DeliveryUpdated       = "V1_DELIVERY_UPDATED"
	DeliveryDeleted       = "V1_DELIVERY_DELETED"
	DeliveryStatusChanged = "V1_DELIVERY_STATUS_CHANGED"

	// Container events
	ContainerCreated        = "V1_CONTAINER_CREATED"
	ContainerUpdated        = "V1_CONTAINER_UPDATED"
	ContainerDeleted        = "V1_CONTAINER_DELETED"
	ContainerActionRecorded = "V1_CONTAINER_ACTION_RECORDED"

	// Fleet events
	CustomerSaved    = "V1_CUSTOMER_SAVED"
	CustomerDeleted  = "V1_CUSTOMER_DELETED"
	CustomerArchived = "V1_CUSTOMER_ARCHIVED"
	VehicleSaved     = "V1_VEHICLE_SAVED"
	VehicleDeleted   = "V1_VEHICLE_DELETED"
	DriverSaved      = "V1_DRIVER_SAVED"
	DriverDeleted    = "V1_DRIVER_DELETED"
	IncidentCreated  = "V1_INCIDENT_REPORTED"
	IncidentUpdated  = "V1_INCIDENT_UPDATED"
	IncidentDeleted  = "V1_INCIDENT_DELETED"
	MaintenanceAdded = "V1_MAINTENANCE_RECORDED"

	InspectionRecorded  = "V1_INSPECTION_RECORDED"
	IncidentCommented   = "V1_INCIDENT_COMMENTED"
	LocationSaved       = "V1_LOCATION_SAVED"
	LocationDeactivated = "V1_LOCATION_DEACTIVATED"
)

// Aggregate types
const (
	AggregateDelivery  = "delivery"
	AggregateContainer = "container"
	AggregateCustomer  = "customer"
	AggregateVehicle   = "vehicle"
	AggregateDriver    = "driver"
	AggregateIncident  = "incident"
	AggregateLocation  = "location"
)

// Event represents a domain event written to the outbox
type Event struct {
	ID            string      `json:"id"`
	AggregateID   string      `json:"aggregate_id"`
	AggregateType string      `json:"aggregate_type"`
	Type          string      `json:"type"`
	Version       int         `json:"version"`
	ActorID       string      `json:"actor_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// DeliveryStatusChangedEvent is emitted by every successful transition
type DeliveryStatusChangedEvent struct {
	DeliveryID    string         `json:"delivery_id"`
	From          DeliveryStatus `json:"from"`
	To            DeliveryStatus `json:"to"`
	UpdatedBy     string         `json:"updated_by"`
	Notes         string         `json:"notes,omitempty"`
	CompletedDate *time.Time     `json:"completed_date,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ContainerActionRecordedEvent is emitted by every recorded container action
type ContainerActionRecordedEvent struct {
	ContainerID string          `json:"container_id"`
	Barcode     string          `json:"barcode"`
	HistoryID   string          `json:"history_id"`
	Action      ContainerAction `json:"action"`
	From        ContainerStatus `json:"from"`
	To          ContainerStatus `json:"to"`
	CustomerID  *string         `json:"customer_id,omitempty"`
	DeliveryID  *string         `json:"delivery_id,omitempty"`
	ScannedBy   string          `json:"scanned_by"`
	Weight      *float64        `json:"weight,omitempty"`
	WasteType   string          `json:"waste_type,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
