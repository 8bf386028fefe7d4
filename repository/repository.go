package repository

import (
	"context"
	"errors"

	"example.com/backstage/services/fleet/models"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// Query describes a simple equality filtered, ordered and paginated read.
// A slice value in Where matches any of its members.
type Query struct {
	Where   map[string]interface{}
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Repository provides data access for one table. Column names in filters and
// field maps are the snake_case column names, which equal the json tags of the
// models.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindMany(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, where map[string]interface{}) (int64, error)
	// Exists reports whether a row other than excludeID matches where
	Exists(ctx context.Context, where map[string]interface{}, excludeID string) (bool, error)
	Create(ctx context.Context, entity *T) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// UpdateWhere applies fields only if the row still matches guard. It
	// reports false when no row matched.
	UpdateWhere(ctx context.Context, id string, guard, fields map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, where map[string]interface{}) (int64, error)
}

// Store groups the repositories of the service and provides transactions
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Customers() Repository[models.Customer]
	Locations() Repository[models.Location]
	Vehicles() Repository[models.Vehicle]
	Drivers() Repository[models.Driver]
	Deliveries() Repository[models.Delivery]
	DeliveryContainers() Repository[models.DeliveryContainer]
	DeliveryHistory() Repository[models.DeliveryStatusEntry]
	Containers() Repository[models.Container]
	ContainerHistory() Repository[models.ContainerHistory]
	Incidents() Repository[models.Incident]
	IncidentComments() Repository[models.IncidentComment]
	Maintenance() Repository[models.MaintenanceRecord]
	Inspections() Repository[models.VehicleInspection]
	Events() Repository[models.Event]
}
