package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/repository/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const actor = "dispatcher-1"

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// MockCache records cache traffic for assertions
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

type fixture struct {
	store      *memory.Store
	deliveries *DeliveryHandler
	containers *ContainerHandler
	customers  *CustomerHandler
	locations  *LocationHandler
	vehicles   *VehicleHandler
	drivers    *DriverHandler
	incidents  *IncidentHandler
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()

	o := Options{
		Timeout: 5 * time.Second,
		Clock:   func() time.Time { return fixedNow },
	}
	for _, apply := range opts {
		apply(&o)
	}

	store := memory.NewStore()
	return &fixture{
		store:      store,
		deliveries: NewDeliveryHandler(store, o),
		containers: NewContainerHandler(store, o),
		customers:  NewCustomerHandler(store, o),
		locations:  NewLocationHandler(store, o),
		vehicles:   NewVehicleHandler(store, o),
		drivers:    NewDriverHandler(store, o),
		incidents:  NewIncidentHandler(store, o),
	}
}

func (f *fixture) customer(t *testing.T, name string) *models.Customer {
	t.Helper()
	c, err := f.customers.HandleCreateCustomer(context.Background(), CreateCustomerCommand{
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: name, Address: "1 Hospital Road"},
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) location(t *testing.T, customerID, name string) *LocationView {
	t.Helper()
	loc, err := f.locations.HandleCreateLocation(context.Background(), CreateLocationCommand{
		ActorID:    actor,
		CustomerID: customerID,
		LocationInput: LocationInput{
			Name:         name,
			AddressLine1: "1 Hospital Road",
			City:         "Nairobi",
			PostalCode:   "00100",
		},
	})
	require.NoError(t, err)
	return loc
}

func (f *fixture) container(t *testing.T, barcode string) *ContainerView {
	t.Helper()
	c, err := f.containers.HandleCreateContainer(context.Background(), CreateContainerCommand{
		ActorID:  actor,
		Barcode:  barcode,
		Type:     domain.ContainerReusable,
		Capacity: 60,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) driver(t *testing.T, license string) *models.Driver {
	t.Helper()
	d, err := f.drivers.HandleCreateDriver(context.Background(), CreateDriverCommand{
		ActorID:     actor,
		DriverInput: DriverInput{Name: "Jo Driver", LicenseNumber: license},
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) vehicle(t *testing.T, registration string) *models.Vehicle {
	t.Helper()
	v, err := f.vehicles.HandleCreateVehicle(context.Background(), CreateVehicleCommand{
		ActorID: actor,
		VehicleInput: VehicleInput{
			RegistrationNumber: registration,
			VIN:                "VIN-" + registration,
			Make:               "Isuzu",
			Mileage:            12000,
		},
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) delivery(t *testing.T, customerID string, containerIDs ...string) *DeliveryView {
	t.Helper()
	d, err := f.deliveries.HandleCreateDelivery(context.Background(), CreateDeliveryCommand{
		ActorID:       actor,
		CustomerID:    customerID,
		ContainerIDs:  containerIDs,
		ScheduledDate: fixedNow.Add(24 * time.Hour),
		Type:          domain.DeliveryTypePickup,
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) events(t *testing.T, aggregateID string) []models.Event {
	t.Helper()
	all, err := f.store.Events().FindMany(context.Background(), queryBy("aggregate_id", aggregateID))
	require.NoError(t, err)
	return all
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var de *domain.Error
	require.True(t, errors.As(err, &de), "expected *domain.Error, got %T: %v", err, err)
	require.Equal(t, kind, de.Kind, de.Error())
}

func queryBy(column, value string) repository.Query {
	return repository.Query{
		Where:   map[string]interface{}{column: value},
		OrderBy: "timestamp",
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func floatPtr(v float64) *float64 { return &v }
