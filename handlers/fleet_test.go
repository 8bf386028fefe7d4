package handlers

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	email := "ops@clinic.example"
	c, err := f.customers.HandleCreateCustomer(ctx, CreateCustomerCommand{
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Clinic", Email: &email},
	})
	require.NoError(t, err)
	assert.Equal(t, "active", c.Status)

	_, err = f.customers.HandleCreateCustomer(ctx, CreateCustomerCommand{
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Copy", Email: &email},
	})
	requireKind(t, err, domain.KindConflict)

	_, err = f.customers.HandleCreateCustomer(ctx, CreateCustomerCommand{
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Bad", Email: strPtr("not-an-email")},
	})
	requireKind(t, err, domain.KindValidation)

	updated, err := f.customers.HandleUpdateCustomer(ctx, UpdateCustomerCommand{
		CustomerID:    c.ID,
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Clinic West", Email: &email, Status: "inactive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Clinic West", updated.Name)
	assert.Equal(t, "inactive", updated.Status)

	_, err = f.customers.HandleUpdateCustomer(ctx, UpdateCustomerCommand{
		CustomerID:    "missing",
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "x"},
	})
	requireKind(t, err, domain.KindNotFound)

	list, err := f.customers.ListCustomers(ctx, ListOptions{Filters: map[string]string{"status": "inactive"}})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor}))
	_, err = f.customers.GetCustomer(ctx, c.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestDeleteCustomerGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "Clinic")
	f.location(t, c.ID, "Main gate")
	d := f.delivery(t, c.ID)

	err := f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	_, err = f.deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: d.ID, Status: domain.DeliveryCancelled, ActorID: actor})
	require.NoError(t, err)

	err = f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	require.NoError(t, f.deliveries.HandleDeleteDelivery(ctx, DeleteDeliveryCommand{DeliveryID: d.ID, ActorID: actor}))
	require.NoError(t, f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor}))

	locations, err := f.store.Locations().Count(ctx, map[string]interface{}{"customer_id": c.ID})
	require.NoError(t, err)
	assert.Zero(t, locations)
}

func TestScannedCustomerIsArchivedNotDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "Clinic")
	container := f.container(t, "BARCODE-001")

	_, err := f.containers.HandleRecordAction(ctx, RecordContainerActionCommand{
		ContainerID: container.ID,
		Action:      domain.ActionDelivered,
		ActorID:     actor,
		CustomerID:  &c.ID,
	})
	require.NoError(t, err)

	err = f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	_, err = f.containers.HandleRecordAction(ctx, RecordContainerActionCommand{
		ContainerID: container.ID,
		Action:      domain.ActionCollected,
		ActorID:     actor,
	})
	require.NoError(t, err)

	err = f.customers.HandleDeleteCustomer(ctx, DeleteCustomerCommand{CustomerID: c.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	history, err := f.containers.ListHistory(ctx, container.ID, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	archived, err := f.customers.HandleArchiveCustomer(ctx, ArchiveCustomerCommand{CustomerID: c.ID, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerArchivedStatus, archived.Status)

	again, err := f.customers.HandleArchiveCustomer(ctx, ArchiveCustomerCommand{CustomerID: c.ID, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerArchivedStatus, again.Status)

	archives := 0
	for _, e := range f.events(t, c.ID) {
		if e.EventType == domain.CustomerArchived {
			archives++
		}
	}
	assert.Equal(t, 1, archives)
}

func TestArchiveCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "Clinic")
	d := f.delivery(t, c.ID)

	_, err := f.customers.HandleArchiveCustomer(ctx, ArchiveCustomerCommand{CustomerID: c.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	_, err = f.deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: d.ID, Status: domain.DeliveryCancelled, ActorID: actor})
	require.NoError(t, err)

	_, err = f.customers.HandleArchiveCustomer(ctx, ArchiveCustomerCommand{CustomerID: c.ID, ActorID: actor})
	require.NoError(t, err)

	_, err = f.customers.HandleUpdateCustomer(ctx, UpdateCustomerCommand{
		CustomerID:    c.ID,
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Clinic"},
	})
	requireKind(t, err, domain.KindConflict)

	_, err = f.locations.HandleCreateLocation(ctx, CreateLocationCommand{
		ActorID:    actor,
		CustomerID: c.ID,
		LocationInput: LocationInput{
			Name:         "Annex",
			AddressLine1: "2 Hospital Road",
			City:         "Nairobi",
			PostalCode:   "00100",
		},
	})
	requireKind(t, err, domain.KindConflict)

	_, err = f.customers.HandleUpdateCustomer(ctx, UpdateCustomerCommand{
		CustomerID:    c.ID,
		ActorID:       actor,
		CustomerInput: CustomerInput{Name: "Clinic", Status: domain.CustomerArchivedStatus},
	})
	requireKind(t, err, domain.KindValidation)

	_, err = f.customers.HandleArchiveCustomer(ctx, ArchiveCustomerCommand{CustomerID: "missing", ActorID: actor})
	requireKind(t, err, domain.KindNotFound)
}

func TestVehicleUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")
	other := f.vehicle(t, "KBX 200B")

	_, err := f.vehicles.HandleCreateVehicle(ctx, CreateVehicleCommand{
		ActorID:      actor,
		VehicleInput: VehicleInput{RegistrationNumber: "KBX 100A", VIN: "VIN-NEW"},
	})
	requireKind(t, err, domain.KindConflict)

	_, err = f.vehicles.HandleUpdateVehicle(ctx, UpdateVehicleCommand{
		VehicleID:    other.ID,
		ActorID:      actor,
		VehicleInput: VehicleInput{RegistrationNumber: "KBX 200B", VIN: v.VIN},
	})
	requireKind(t, err, domain.KindConflict)

	_, err = f.vehicles.HandleUpdateVehicle(ctx, UpdateVehicleCommand{
		VehicleID: v.ID,
		ActorID:   actor,
		VehicleInput: VehicleInput{
			RegistrationNumber: v.RegistrationNumber,
			VIN:                v.VIN,
			AssignedDriverID:   strPtr(uuid.NewString()),
		},
	})
	requireKind(t, err, domain.KindInvalidReference)

	_, err = f.vehicles.HandleUpdateVehicle(ctx, UpdateVehicleCommand{
		VehicleID: v.ID,
		ActorID:   actor,
		VehicleInput: VehicleInput{
			RegistrationNumber: v.RegistrationNumber,
			VIN:                v.VIN,
			AssignedDriverID:   strPtr("no-such-driver"),
		},
	})
	requireKind(t, err, domain.KindValidation)

	updated, err := f.vehicles.HandleUpdateVehicle(ctx, UpdateVehicleCommand{
		VehicleID:    v.ID,
		ActorID:      actor,
		VehicleInput: VehicleInput{RegistrationNumber: v.RegistrationNumber, VIN: v.VIN, Status: "maintenance"},
	})
	require.NoError(t, err)
	assert.Equal(t, "maintenance", updated.Status)
}

func TestRoutineMaintenanceMovesServiceDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")

	serviced := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	record, err := f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
		VehicleID:   v.ID,
		ActorID:     "mechanic-1",
		Type:        domain.MaintenanceRoutine,
		Date:        serviced,
		Mileage:     15000,
		Description: "Oil and filters",
		Cost:        120,
	})
	require.NoError(t, err)
	assert.Equal(t, "mechanic-1", record.PerformedBy)

	after, err := f.vehicles.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, after.LastService)
	require.NotNil(t, after.NextServiceDue)
	assert.True(t, serviced.Equal(*after.LastService))
	assert.True(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC).Equal(*after.NextServiceDue))
	assert.Equal(t, 15000, after.Mileage)

	_, err = f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
		VehicleID:   v.ID,
		ActorID:     "mechanic-1",
		Type:        domain.MaintenanceRepair,
		Date:        serviced.Add(48 * time.Hour),
		Description: "Brake pads",
		Cost:        300,
	})
	require.NoError(t, err)

	after, err = f.vehicles.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, serviced.Equal(*after.LastService), "repairs leave the service dates alone")

	records, err := f.vehicles.ListMaintenance(ctx, v.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "repair", records[0].Type)

	_, err = f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
		VehicleID:   "missing",
		ActorID:     actor,
		Type:        domain.MaintenanceRoutine,
		Date:        serviced,
		Description: "x",
	})
	requireKind(t, err, domain.KindNotFound)

	_, err = f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
		VehicleID:   v.ID,
		ActorID:     actor,
		Type:        "polish",
		Date:        serviced,
		Description: "x",
	})
	requireKind(t, err, domain.KindValidation)
}

func TestVehicleStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := fixedNow.Add(5 * 24 * time.Hour)
	expiry := fixedNow.Add(20 * 24 * time.Hour)
	v, err := f.vehicles.HandleCreateVehicle(ctx, CreateVehicleCommand{
		ActorID: actor,
		VehicleInput: VehicleInput{
			RegistrationNumber: "KBX 100A",
			VIN:                "VIN-1",
			NextServiceDue:     &due,
			InsuranceExpiry:    &expiry,
		},
	})
	require.NoError(t, err)

	for _, cost := range []float64{100, 250.5} {
		_, err := f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
			VehicleID:   v.ID,
			ActorID:     actor,
			Type:        domain.MaintenanceInspection,
			Date:        fixedNow,
			Description: "inspection",
			Cost:        cost,
		})
		require.NoError(t, err)
	}

	inc, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{
		ActorID: actor,
		IncidentInput: IncidentInput{
			VehicleID:   &v.ID,
			Type:        "breakdown",
			Date:        fixedNow,
			Description: "Alternator",
			Severity:    "moderate",
		},
	})
	require.NoError(t, err)
	_, err = f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{
		ActorID: actor,
		IncidentInput: IncidentInput{
			VehicleID:   &v.ID,
			Type:        "damage",
			Date:        fixedNow,
			Description: "Mirror",
			Severity:    "minor",
			Status:      domain.IncidentClosed,
		},
	})
	require.NoError(t, err)

	stats, err := f.vehicles.GetStats(ctx, v.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalIncidents)
	assert.EqualValues(t, 1, stats.OpenIncidents)
	assert.Equal(t, 2, stats.MaintenanceCount)
	assert.InDelta(t, 350.5, stats.TotalMaintenanceCost, 1e-9)
	require.NotNil(t, stats.DaysUntilService)
	assert.Equal(t, 5, *stats.DaysUntilService)
	assert.True(t, stats.ServiceDue)
	assert.Equal(t, domain.InsuranceValid, stats.InsuranceStatus)
	assert.True(t, stats.InsuranceExpiringSoon)

	err = f.vehicles.HandleDeleteVehicle(ctx, DeleteVehicleCommand{VehicleID: v.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	require.NoError(t, f.incidents.HandleDeleteIncident(ctx, DeleteIncidentCommand{IncidentID: inc.ID, ActorID: actor}))
}

func TestDeleteVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.customer(t, "Clinic")
	v := f.vehicle(t, "KBX 100A")

	_, err := f.vehicles.HandleAddMaintenance(ctx, AddMaintenanceCommand{
		VehicleID:   v.ID,
		ActorID:     actor,
		Type:        domain.MaintenanceTire,
		Date:        fixedNow,
		Description: "Rotation",
	})
	require.NoError(t, err)

	d, err := f.deliveries.HandleCreateDelivery(ctx, CreateDeliveryCommand{
		ActorID:       actor,
		CustomerID:    customer.ID,
		VehicleID:     &v.ID,
		ScheduledDate: fixedNow,
		Type:          domain.DeliveryTypeDelivery,
	})
	require.NoError(t, err)

	err = f.vehicles.HandleDeleteVehicle(ctx, DeleteVehicleCommand{VehicleID: v.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	_, err = f.deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: d.ID, Status: domain.DeliveryCancelled, ActorID: actor})
	require.NoError(t, err)

	err = f.vehicles.HandleDeleteVehicle(ctx, DeleteVehicleCommand{VehicleID: v.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	require.NoError(t, f.deliveries.HandleDeleteDelivery(ctx, DeleteDeliveryCommand{DeliveryID: d.ID, ActorID: actor}))
	require.NoError(t, f.vehicles.HandleDeleteVehicle(ctx, DeleteVehicleCommand{VehicleID: v.ID, ActorID: actor}))
	records, err := f.store.Maintenance().Count(ctx, map[string]interface{}{"vehicle_id": v.ID})
	require.NoError(t, err)
	assert.Zero(t, records)
}

func TestInspectedVehicleCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")
	d := f.driver(t, "DL-1")

	_, err := f.vehicles.HandleRecordInspection(ctx, RecordInspectionCommand{
		VehicleID: v.ID,
		ActorID:   actor,
		DriverID:  d.ID,
		Type:      domain.InspectionPreTrip,
		Status:    domain.InspectionPass,
	})
	require.NoError(t, err)

	err = f.vehicles.HandleDeleteVehicle(ctx, DeleteVehicleCommand{VehicleID: v.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	err = f.drivers.HandleDeleteDriver(ctx, DeleteDriverCommand{DriverID: d.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)
}

func TestDriverLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "DL-1")

	_, err := f.drivers.HandleCreateDriver(ctx, CreateDriverCommand{
		ActorID:     actor,
		DriverInput: DriverInput{Name: "Twin", LicenseNumber: "DL-1"},
	})
	requireKind(t, err, domain.KindConflict)

	v, err := f.vehicles.HandleCreateVehicle(ctx, CreateVehicleCommand{
		ActorID: actor,
		VehicleInput: VehicleInput{
			RegistrationNumber: "KBX 100A",
			VIN:                "VIN-1",
			AssignedDriverID:   &d.ID,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, v.AssignedDriverID)

	updated, err := f.drivers.HandleUpdateDriver(ctx, UpdateDriverCommand{
		DriverID:    d.ID,
		ActorID:     actor,
		DriverInput: DriverInput{Name: "Jo Driver", LicenseNumber: "DL-1", Status: "on_leave"},
	})
	require.NoError(t, err)
	assert.Equal(t, "on_leave", updated.Status)

	require.NoError(t, f.drivers.HandleDeleteDriver(ctx, DeleteDriverCommand{DriverID: d.ID, ActorID: actor}))

	v, err = f.vehicles.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, v.AssignedDriverID)
}

func TestDeleteDriverWithIncident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "DL-1")

	_, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{
		ActorID: actor,
		IncidentInput: IncidentInput{
			DriverID:    &d.ID,
			Type:        "accident",
			Date:        fixedNow,
			Description: "Minor collision",
			Severity:    "minor",
		},
	})
	require.NoError(t, err)

	err = f.drivers.HandleDeleteDriver(ctx, DeleteDriverCommand{DriverID: d.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)
}

func TestDeleteDriverWithDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "Clinic")
	d := f.driver(t, "DL-1")

	delivery, err := f.deliveries.HandleCreateDelivery(ctx, CreateDeliveryCommand{
		ActorID:       actor,
		CustomerID:    c.ID,
		DriverID:      &d.ID,
		ScheduledDate: fixedNow,
		Type:          domain.DeliveryTypeDelivery,
	})
	require.NoError(t, err)
	_, err = f.deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: delivery.ID, Status: domain.DeliveryCancelled, ActorID: actor})
	require.NoError(t, err)

	err = f.drivers.HandleDeleteDriver(ctx, DeleteDriverCommand{DriverID: d.ID, ActorID: actor})
	requireKind(t, err, domain.KindConflict)

	view, err := f.deliveries.GetDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Driver)
	assert.Equal(t, d.ID, view.Driver.ID)
}

func TestReportIncident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")

	inc, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{
		ActorID: actor,
		IncidentInput: IncidentInput{
			VehicleID:   &v.ID,
			Type:        "accident",
			Date:        fixedNow,
			Description: "  Rear-ended at junction ",
			Severity:    "major",
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INC-2503-\d{4}$`, inc.ReportNumber)
	assert.Equal(t, string(domain.IncidentReported), inc.Status)
	assert.Equal(t, "Rear-ended at junction", inc.Description)
	assert.Equal(t, actor, inc.ReportedBy)
	assert.Nil(t, inc.ResolvedDate)

	tests := []struct {
		name  string
		input IncidentInput
		kind  domain.ErrorKind
	}{
		{
			name:  "no vehicle or driver",
			input: IncidentInput{Type: "theft", Date: fixedNow, Description: "x", Severity: "minor"},
			kind:  domain.KindValidation,
		},
		{
			name:  "unknown severity",
			input: IncidentInput{VehicleID: &v.ID, Type: "theft", Date: fixedNow, Description: "x", Severity: "huge"},
			kind:  domain.KindValidation,
		},
		{
			name:  "unknown status",
			input: IncidentInput{VehicleID: &v.ID, Type: "theft", Date: fixedNow, Description: "x", Severity: "minor", Status: "open"},
			kind:  domain.KindValidation,
		},
		{
			name:  "unknown driver",
			input: IncidentInput{DriverID: strPtr(uuid.NewString()), Type: "theft", Date: fixedNow, Description: "x", Severity: "minor"},
			kind:  domain.KindInvalidReference,
		},
		{
			name:  "malformed driver id",
			input: IncidentInput{DriverID: strPtr("nobody"), Type: "theft", Date: fixedNow, Description: "x", Severity: "minor"},
			kind:  domain.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: tt.input})
			requireKind(t, err, tt.kind)
		})
	}
}

func TestReportNumberCollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")

	numbers := []string{"INC-2503-0001", "INC-2503-0001", "INC-2503-0002"}
	f.incidents.reportNumber = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	input := IncidentInput{VehicleID: &v.ID, Type: "damage", Date: fixedNow, Description: "Dent", Severity: "minor"}
	first, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: input})
	require.NoError(t, err)
	second, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: input})
	require.NoError(t, err)

	assert.Equal(t, "INC-2503-0001", first.ReportNumber)
	assert.Equal(t, "INC-2503-0002", second.ReportNumber)

	f.incidents.reportNumber = func(time.Time) string { return "INC-2503-0001" }
	_, err = f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: input})
	requireKind(t, err, domain.KindConflict)
}

func TestIncidentStatusIsUnordered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "DL-1")

	input := IncidentInput{DriverID: &d.ID, Type: "other", Date: fixedNow, Description: "Late report", Severity: "minor"}
	inc, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: input})
	require.NoError(t, err)

	update := func(status domain.IncidentStatus) *models.Incident {
		in := input
		in.Status = status
		got, err := f.incidents.HandleUpdateIncident(ctx, UpdateIncidentCommand{IncidentID: inc.ID, ActorID: actor, IncidentInput: in})
		require.NoError(t, err)
		return got
	}

	resolved := update(domain.IncidentResolved)
	require.NotNil(t, resolved.ResolvedDate)
	assert.True(t, fixedNow.Equal(*resolved.ResolvedDate))

	closed := update(domain.IncidentClosed)
	require.NotNil(t, closed.ResolvedDate, "closing keeps the resolution date")

	reopened := update(domain.IncidentReported)
	assert.Equal(t, string(domain.IncidentReported), reopened.Status)
	assert.Nil(t, reopened.ResolvedDate)

	list, err := f.incidents.ListIncidents(ctx, ListOptions{Filters: map[string]string{"driver_id": d.ID}})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordInspection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")
	d := f.driver(t, "DL-1")

	earlier := fixedNow.Add(-2 * time.Hour)
	first, err := f.vehicles.HandleRecordInspection(ctx, RecordInspectionCommand{
		VehicleID:       v.ID,
		ActorID:         actor,
		DriverID:        d.ID,
		Type:            domain.InspectionPreTrip,
		Status:          domain.InspectionPass,
		InspectionDate:  &earlier,
		OdometerReading: intPtr(15000),
		CheckList:       map[string]bool{"brakes": true, "lights": true},
	})
	require.NoError(t, err)
	assert.Equal(t, actor, first.RecordedBy)

	after, err := f.vehicles.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000, after.Mileage)

	second, err := f.vehicles.HandleRecordInspection(ctx, RecordInspectionCommand{
		VehicleID:       v.ID,
		ActorID:         actor,
		DriverID:        d.ID,
		Type:            domain.InspectionPostTrip,
		Status:          domain.InspectionNeedsAttention,
		OdometerReading: intPtr(100),
		Issues:          []string{"Cracked mirror"},
	})
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(second.InspectionDate))

	after, err = f.vehicles.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000, after.Mileage, "a lower reading leaves the mileage alone")

	all, err := f.vehicles.ListInspections(ctx, v.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	flagged, err := f.vehicles.ListInspections(ctx, v.ID, ListOptions{Filters: map[string]string{"status": "needs_attention"}})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, []string{"Cracked mirror"}, flagged[0].Issues)

	recorded := 0
	for _, e := range f.events(t, v.ID) {
		if e.EventType == domain.InspectionRecorded {
			recorded++
		}
	}
	assert.Equal(t, 2, recorded)

	tests := []struct {
		name string
		cmd  RecordInspectionCommand
		kind domain.ErrorKind
	}{
		{
			name: "unknown vehicle",
			cmd:  RecordInspectionCommand{VehicleID: uuid.NewString(), ActorID: actor, DriverID: d.ID, Type: domain.InspectionPreTrip, Status: domain.InspectionPass},
			kind: domain.KindNotFound,
		},
		{
			name: "unknown driver",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, DriverID: uuid.NewString(), Type: domain.InspectionPreTrip, Status: domain.InspectionPass},
			kind: domain.KindInvalidReference,
		},
		{
			name: "missing driver",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, Type: domain.InspectionPreTrip, Status: domain.InspectionPass},
			kind: domain.KindValidation,
		},
		{
			name: "unknown type",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, DriverID: d.ID, Type: "midday", Status: domain.InspectionPass},
			kind: domain.KindValidation,
		},
		{
			name: "unknown result",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, DriverID: d.ID, Type: domain.InspectionPreTrip, Status: "ok"},
			kind: domain.KindValidation,
		},
		{
			name: "negative odometer",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, DriverID: d.ID, Type: domain.InspectionPreTrip, Status: domain.InspectionPass, OdometerReading: intPtr(-1)},
			kind: domain.KindValidation,
		},
		{
			name: "image is not a url",
			cmd:  RecordInspectionCommand{VehicleID: v.ID, ActorID: actor, DriverID: d.ID, Type: domain.InspectionPreTrip, Status: domain.InspectionPass, Images: []string{"photo"}},
			kind: domain.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.vehicles.HandleRecordInspection(ctx, tt.cmd)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestIncidentComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, "KBX 100A")

	inc, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{
		ActorID: actor,
		IncidentInput: IncidentInput{
			VehicleID:   &v.ID,
			Type:        "breakdown",
			Date:        fixedNow,
			Description: "Gearbox",
			Severity:    "major",
		},
	})
	require.NoError(t, err)

	comment, err := f.incidents.HandleAddComment(ctx, AddIncidentCommentCommand{IncidentID: inc.ID, ActorID: "mechanic-1", Comment: "  Towed to depot "})
	require.NoError(t, err)
	assert.Equal(t, "Towed to depot", comment.Comment)
	assert.Equal(t, "mechanic-1", comment.Author)

	_, err = f.incidents.HandleAddComment(ctx, AddIncidentCommentCommand{IncidentID: inc.ID, ActorID: actor, Comment: "Parts ordered"})
	require.NoError(t, err)

	_, err = f.incidents.HandleAddComment(ctx, AddIncidentCommentCommand{IncidentID: inc.ID, ActorID: actor, Comment: "   "})
	requireKind(t, err, domain.KindValidation)

	_, err = f.incidents.HandleAddComment(ctx, AddIncidentCommentCommand{IncidentID: "missing", ActorID: actor, Comment: "x"})
	requireKind(t, err, domain.KindNotFound)

	comments, err := f.incidents.ListComments(ctx, inc.ID)
	require.NoError(t, err)
	texts := make([]string, 0, len(comments))
	for _, c := range comments {
		texts = append(texts, c.Comment)
	}
	assert.ElementsMatch(t, []string{"Towed to depot", "Parts ordered"}, texts)

	require.NoError(t, f.incidents.HandleDeleteIncident(ctx, DeleteIncidentCommand{IncidentID: inc.ID, ActorID: actor}))
	left, err := f.store.IncidentComments().Count(ctx, map[string]interface{}{"incident_id": inc.ID})
	require.NoError(t, err)
	assert.Zero(t, left)

	_, err = f.incidents.ListComments(ctx, inc.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestIncidentSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	busy := f.vehicle(t, "KBX 100A")
	quiet := f.vehicle(t, "KBX 200B")
	d := f.driver(t, "DL-1")

	report := func(input IncidentInput) {
		t.Helper()
		_, err := f.incidents.HandleReportIncident(ctx, CreateIncidentCommand{ActorID: actor, IncidentInput: input})
		require.NoError(t, err)
	}
	earlier := fixedNow.Add(-48 * time.Hour)
	report(IncidentInput{VehicleID: &busy.ID, Type: "accident", Date: fixedNow, Description: "Dent", Severity: "major"})
	report(IncidentInput{VehicleID: &busy.ID, Type: "breakdown", Date: fixedNow, Description: "Battery", Severity: "minor"})
	report(IncidentInput{VehicleID: &quiet.ID, Type: "breakdown", Date: earlier, Description: "Tyre", Severity: "minor", Status: domain.IncidentClosed})
	report(IncidentInput{DriverID: &d.ID, Type: "other", Date: fixedNow, Description: "Late", Severity: "minor"})

	all, err := f.incidents.GetSummary(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, 2, all.ByType["breakdown"])
	assert.Equal(t, 3, all.BySeverity["minor"])
	assert.Equal(t, 1, all.ByStatus[string(domain.IncidentClosed)])
	require.Len(t, all.ByVehicle, 2)
	assert.Equal(t, VehicleIncidentCount{VehicleID: busy.ID, RegistrationNumber: "KBX 100A", Count: 2}, all.ByVehicle[0])
	assert.Equal(t, quiet.ID, all.ByVehicle[1].VehicleID)

	from := fixedNow.Add(-24 * time.Hour)
	recent, err := f.incidents.GetSummary(ctx, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, recent.Total)
	require.Len(t, recent.ByVehicle, 1)

	to := fixedNow
	before, err := f.incidents.GetSummary(ctx, nil, &to)
	require.NoError(t, err)
	assert.Equal(t, 1, before.Total, "the upper bound is exclusive")

	_, err = f.incidents.GetSummary(ctx, &to, &from)
	requireKind(t, err, domain.KindValidation)
}
