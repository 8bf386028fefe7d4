// Package memory provides an in-process Store. Rows are kept as JSON documents
// keyed by id so that filters and partial updates use the same column names as
// the postgres store.
package memory

import (
	"context"
	"sync"

	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
)

// Store is a repository.Store held in memory. Transactions serialize on a
// single lock and work on a copy of the data that replaces the live tables only
// when the transaction function succeeds.
type Store struct {
	mu   *sync.Mutex
	data *database
	tx   bool
}

type record struct {
	seq int64
	doc map[string]interface{}
}

type database struct {
	tables map[string]map[string]*record
	seq    int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		mu:   &sync.Mutex{},
		data: &database{tables: make(map[string]map[string]*record)},
	}
}

func (d *database) clone() *database {
	c := &database{tables: make(map[string]map[string]*record, len(d.tables)), seq: d.seq}
	for name, rows := range d.tables {
		copied := make(map[string]*record, len(rows))
		for id, rec := range rows {
			copied[id] = rec
		}
		c.tables[name] = copied
	}
	return c
}

func (d *database) table(name string) map[string]*record {
	rows, ok := d.tables[name]
	if !ok {
		rows = make(map[string]*record)
		d.tables[name] = rows
	}
	return rows
}

// access runs fn against the live tables. Inside a transaction the lock is
// already held by WithTransaction.
func (s *Store) access(ctx context.Context, fn func(d *database) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.tx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// WithTransaction runs fn against a snapshot. The snapshot becomes the live
// data only if fn returns nil and the context is still alive.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), tx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) Customers() repository.Repository[models.Customer] {
	return &table[models.Customer]{store: s, name: "customers", unique: []string{"email"}}
}

func (s *Store) Locations() repository.Repository[models.Location] {
	return &table[models.Location]{store: s, name: "locations"}
}

func (s *Store) Vehicles() repository.Repository[models.Vehicle] {
	return &table[models.Vehicle]{store: s, name: "vehicles", unique: []string{"registration_number", "vin"}}
}

func (s *Store) Drivers() repository.Repository[models.Driver] {
	return &table[models.Driver]{store: s, name: "drivers", unique: []string{"email", "license_number"}}
}

func (s *Store) Deliveries() repository.Repository[models.Delivery] {
	return &table[models.Delivery]{store: s, name: "deliveries"}
}

func (s *Store) DeliveryContainers() repository.Repository[models.DeliveryContainer] {
	return &table[models.DeliveryContainer]{store: s, name: "delivery_containers"}
}

func (s *Store) DeliveryHistory() repository.Repository[models.DeliveryStatusEntry] {
	return &table[models.DeliveryStatusEntry]{store: s, name: "delivery_status_history"}
}

func (s *Store) Containers() repository.Repository[models.Container] {
	return &table[models.Container]{store: s, name: "containers", unique: []string{"barcode"}}
}

func (s *Store) ContainerHistory() repository.Repository[models.ContainerHistory] {
	return &table[models.ContainerHistory]{store: s, name: "container_history"}
}

func (s *Store) Incidents() repository.Repository[models.Incident] {
	return &table[models.Incident]{store: s, name: "incidents", unique: []string{"report_number"}}
}

func (s *Store) IncidentComments() repository.Repository[models.IncidentComment] {
	return &table[models.IncidentComment]{store: s, name: "incident_comments"}
}

func (s *Store) Inspections() repository.Repository[models.VehicleInspection] {
	return &table[models.VehicleInspection]{store: s, name: "vehicle_inspections"}
}

func (s *Store) Maintenance() repository.Repository[models.MaintenanceRecord] {
	return &table[models.MaintenanceRecord]{store: s, name: "maintenance_records"}
}

func (s *Store) Events() repository.Repository[models.Event] {
	return &table[models.Event]{store: s, name: "events"}
}
