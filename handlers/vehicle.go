package handlers

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/utils"

	"github.com/rs/zerolog/log"
)

// VehicleInput holds the writable attributes of a vehicle
type VehicleInput struct {
	RegistrationNumber string     `json:"registration_number" validate:"required"`
	VIN                string     `json:"vin" validate:"required"`
	Make               string     `json:"make"`
	Model              string     `json:"model"`
	Year               int        `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Status             string     `json:"status" validate:"omitempty,oneof=active maintenance out_of_service"`
	Mileage            int        `json:"mileage" validate:"gte=0"`
	FuelType           string     `json:"fuel_type" validate:"omitempty,oneof=petrol diesel electric hybrid"`
	LastService        *time.Time `json:"last_service"`
	NextServiceDue     *time.Time `json:"next_service_due"`
	InsuranceNumber    string     `json:"insurance_number"`
	InsuranceExpiry    *time.Time `json:"insurance_expiry"`
	AssignedDriverID   *string    `json:"assigned_driver_id" validate:"omitempty,uuid"`
	Notes              string     `json:"notes"`
}

func (in VehicleInput) status() string {
	if in.Status == "" {
		return "active"
	}
	return in.Status
}

func (in VehicleInput) fields() map[string]interface{} {
	return map[string]interface{}{
		"registration_number": in.RegistrationNumber,
		"vin":                 in.VIN,
		"make":                in.Make,
		"model":               in.Model,
		"year":                in.Year,
		"status":              in.status(),
		"mileage":             in.Mileage,
		"fuel_type":           in.FuelType,
		"last_service":        in.LastService,
		"next_service_due":    in.NextServiceDue,
		"insurance_number":    in.InsuranceNumber,
		"insurance_expiry":    in.InsuranceExpiry,
		"assigned_driver_id":  emptyToNil(in.AssignedDriverID),
		"notes":               in.Notes,
	}
}

// Command structs
type CreateVehicleCommand struct {
	ActorID string `json:"actor_id" validate:"required"`
	VehicleInput
}

// UpdateVehicleCommand replaces every writable attribute of a vehicle
type UpdateVehicleCommand struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
	ActorID   string `json:"actor_id" validate:"required"`
	VehicleInput
}

type DeleteVehicleCommand struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
	ActorID   string `json:"actor_id" validate:"required"`
}

// AddMaintenanceCommand appends a maintenance record to a vehicle
type AddMaintenanceCommand struct {
	VehicleID       string                 `json:"vehicle_id" validate:"required"`
	ActorID         string                 `json:"actor_id" validate:"required"`
	Type            domain.MaintenanceType `json:"type" validate:"required,maintenance_type"`
	Date            time.Time              `json:"date" validate:"required"`
	Mileage         int                    `json:"mileage" validate:"gte=0"`
	Description     string                 `json:"description" validate:"required"`
	Cost            float64                `json:"cost" validate:"gte=0"`
	ProviderName    string                 `json:"provider_name"`
	ProviderContact string                 `json:"provider_contact"`
	Notes           string                 `json:"notes"`
}

// RecordInspectionCommand is a driver's check of a vehicle before or after a
// trip
type RecordInspectionCommand struct {
	VehicleID       string                  `json:"vehicle_id" validate:"required"`
	ActorID         string                  `json:"actor_id" validate:"required"`
	DriverID        string                  `json:"driver_id" validate:"required,uuid"`
	Type            domain.InspectionType   `json:"type" validate:"required,inspection_type"`
	Status          domain.InspectionResult `json:"status" validate:"required,inspection_result"`
	InspectionDate  *time.Time              `json:"inspection_date"`
	OdometerReading *int                    `json:"odometer_reading" validate:"omitempty,gte=0"`
	FuelLevel       string                  `json:"fuel_level"`
	CheckList       map[string]bool         `json:"check_list"`
	Issues          []string                `json:"issues"`
	Notes           string                  `json:"notes"`
	Images          []string                `json:"images" validate:"omitempty,dive,url"`
	Signature       string                  `json:"signature"`
}

// VehicleStats summarises the incident and maintenance record of a vehicle
type VehicleStats struct {
	VehicleID             string  `json:"vehicle_id"`
	TotalIncidents        int64   `json:"total_incidents"`
	OpenIncidents         int64   `json:"open_incidents"`
	MaintenanceCount      int     `json:"maintenance_count"`
	TotalMaintenanceCost  float64 `json:"total_maintenance_cost"`
	DaysUntilService      *int    `json:"days_until_service"`
	ServiceDue            bool    `json:"service_due"`
	InsuranceStatus       string  `json:"insurance_status"`
	InsuranceExpiringSoon bool    `json:"insurance_expiring_soon"`
}

var vehicleList = listSpec{
	filters:     []string{"status", "fuel_type", "assigned_driver_id", "registration_number", "vin", "make"},
	sorts:       []string{"registration_number", "created_at", "updated_at", "next_service_due", "mileage", "year"},
	defaultSort: "registration_number",
}

var inspectionList = listSpec{
	filters:     []string{"type", "status", "driver_id"},
	sorts:       []string{"inspection_date", "created_at"},
	defaultSort: "inspection_date",
	defaultDesc: true,
}

var maintenanceList = listSpec{
	filters:     []string{"type"},
	sorts:       []string{"date", "cost", "created_at"},
	defaultSort: "date",
	defaultDesc: true,
}

// VehicleHandler handles all vehicle-related commands, including maintenance
type VehicleHandler struct {
	base
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(store repository.Store, opts Options) *VehicleHandler {
	return &VehicleHandler{base: newBase(store, opts)}
}

func checkVehicleInput(ctx context.Context, tx repository.Store, in VehicleInput, excludeID string) error {
	if err := ensureUnique(ctx, tx.Vehicles(), "vehicle", "registration_number", in.RegistrationNumber, excludeID); err != nil {
		return err
	}
	if err := ensureUnique(ctx, tx.Vehicles(), "vehicle", "vin", in.VIN, excludeID); err != nil {
		return err
	}
	return requireReference(ctx, tx.Drivers(), "driver", in.AssignedDriverID)
}

// HandleCreateVehicle registers a new vehicle
func (h *VehicleHandler) HandleCreateVehicle(ctx context.Context, cmd CreateVehicleCommand) (*models.Vehicle, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("registration", cmd.RegistrationNumber).Str("actorID", cmd.ActorID).Msg("Handling CreateVehicle command")

	var vehicle *models.Vehicle
	err := h.mutate(ctx, "vehicle", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := checkVehicleInput(ctx, tx, cmd.VehicleInput, ""); err != nil {
			return err
		}

		now := h.now()
		vehicle = &models.Vehicle{
			ID:                 newID(),
			RegistrationNumber: cmd.RegistrationNumber,
			VIN:                cmd.VIN,
			Make:               cmd.Make,
			Model:              cmd.Model,
			Year:               cmd.Year,
			Status:             cmd.status(),
			Mileage:            cmd.Mileage,
			FuelType:           cmd.FuelType,
			LastService:        cmd.LastService,
			NextServiceDue:     cmd.NextServiceDue,
			InsuranceNumber:    cmd.InsuranceNumber,
			InsuranceExpiry:    cmd.InsuranceExpiry,
			AssignedDriverID:   emptyToNil(cmd.AssignedDriverID),
			Notes:              cmd.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Vehicles().Create(ctx, vehicle); err != nil {
			return fmt.Errorf("failed to create vehicle: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   vehicle.ID,
			AggregateType: domain.AggregateVehicle,
			Type:          domain.VehicleSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          vehicle,
		})
		if err != nil {
			return err
		}

		vehicle, err = loadEntity(ctx, tx.Vehicles(), "vehicle", vehicle.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

// HandleUpdateVehicle replaces the attributes of a vehicle
func (h *VehicleHandler) HandleUpdateVehicle(ctx context.Context, cmd UpdateVehicleCommand) (*models.Vehicle, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("vehicleID", cmd.VehicleID).Str("actorID", cmd.ActorID).Msg("Handling UpdateVehicle command")

	var vehicle *models.Vehicle
	err := h.mutate(ctx, "vehicle", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		v, err := loadEntity(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID)
		if err != nil {
			return err
		}
		if err := checkVehicleInput(ctx, tx, cmd.VehicleInput, v.ID); err != nil {
			return err
		}

		now := h.now()
		fields := cmd.fields()
		fields["updated_at"] = now
		if err := tx.Vehicles().UpdateFields(ctx, v.ID, fields); err != nil {
			return fmt.Errorf("failed to update vehicle: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   v.ID,
			AggregateType: domain.AggregateVehicle,
			Type:          domain.VehicleSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		vehicle, err = loadEntity(ctx, tx.Vehicles(), "vehicle", v.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "vehicle_id", cmd.VehicleID)
	return vehicle, nil
}

// HandleDeleteVehicle removes a vehicle that no delivery, incident report or
// inspection refers to, together with its maintenance records
func (h *VehicleHandler) HandleDeleteVehicle(ctx context.Context, cmd DeleteVehicleCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("vehicleID", cmd.VehicleID).Str("actorID", cmd.ActorID).Msg("Handling DeleteVehicle command")

	err := h.mutate(ctx, "vehicle", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		v, err := loadEntity(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID)
		if err != nil {
			return err
		}
		where := map[string]interface{}{"vehicle_id": v.ID}
		if err := ensureUnreferenced(ctx, tx.Deliveries(), "vehicle", v.RegistrationNumber, "deliveries", where); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Incidents(), "vehicle", v.RegistrationNumber, "incident reports", where); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Inspections(), "vehicle", v.RegistrationNumber, "inspections", where); err != nil {
			return err
		}

		if _, err := tx.Maintenance().DeleteWhere(ctx, where); err != nil {
			return fmt.Errorf("failed to delete maintenance records: %w", err)
		}
		if err := tx.Vehicles().Delete(ctx, v.ID); err != nil {
			return fmt.Errorf("failed to delete vehicle: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   v.ID,
			AggregateType: domain.AggregateVehicle,
			Type:          domain.VehicleDeleted,
			ActorID:       cmd.ActorID,
			Timestamp:     h.now(),
			Data:          v,
		})
	})
	if err != nil {
		return err
	}

	h.invalidateReferencing(ctx, "vehicle_id", cmd.VehicleID)
	return nil
}

// HandleAddMaintenance appends a maintenance record. A routine service also
// moves the vehicle's last and next service dates, in the same transaction.
func (h *VehicleHandler) HandleAddMaintenance(ctx context.Context, cmd AddMaintenanceCommand) (*models.MaintenanceRecord, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().
		Str("vehicleID", cmd.VehicleID).
		Str("type", string(cmd.Type)).
		Str("actorID", cmd.ActorID).
		Msg("Handling AddMaintenance command")

	var record *models.MaintenanceRecord
	err := h.mutate(ctx, "maintenance", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		v, err := loadEntity(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID)
		if err != nil {
			return err
		}

		now := h.now()
		record = &models.MaintenanceRecord{
			ID:              newID(),
			VehicleID:       v.ID,
			Type:            string(cmd.Type),
			Date:            cmd.Date,
			Mileage:         cmd.Mileage,
			Description:     cmd.Description,
			Cost:            cmd.Cost,
			ProviderName:    cmd.ProviderName,
			ProviderContact: cmd.ProviderContact,
			Notes:           cmd.Notes,
			PerformedBy:     cmd.ActorID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Maintenance().Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create maintenance record: %w", err)
		}

		fields := map[string]interface{}{"updated_at": now}
		if cmd.Type == domain.MaintenanceRoutine {
			fields["last_service"] = cmd.Date
			fields["next_service_due"] = domain.NextServiceDue(cmd.Date)
		}
		if cmd.Mileage > v.Mileage {
			fields["mileage"] = cmd.Mileage
		}
		if err := tx.Vehicles().UpdateFields(ctx, v.ID, fields); err != nil {
			return fmt.Errorf("failed to update vehicle service dates: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   v.ID,
			AggregateType: domain.AggregateVehicle,
			Type:          domain.MaintenanceAdded,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          record,
		})
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "vehicle_id", cmd.VehicleID)
	return record, nil
}

// HandleRecordInspection stores an inspection and moves the vehicle's
// mileage forward when the odometer reading is ahead of it
func (h *VehicleHandler) HandleRecordInspection(ctx context.Context, cmd RecordInspectionCommand) (*models.VehicleInspection, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().
		Str("vehicleID", cmd.VehicleID).
		Str("type", string(cmd.Type)).
		Str("actorID", cmd.ActorID).
		Msg("Handling RecordInspection command")

	var inspection *models.VehicleInspection
	err := h.mutate(ctx, "inspection", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		v, err := loadEntity(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID)
		if err != nil {
			return err
		}
		if err := requireReference(ctx, tx.Drivers(), "driver", &cmd.DriverID); err != nil {
			return err
		}

		now := h.now()
		date := now
		if cmd.InspectionDate != nil {
			date = *cmd.InspectionDate
		}
		inspection = &models.VehicleInspection{
			ID:              newID(),
			VehicleID:       v.ID,
			DriverID:        cmd.DriverID,
			InspectionDate:  date,
			Type:            string(cmd.Type),
			OdometerReading: cmd.OdometerReading,
			FuelLevel:       cmd.FuelLevel,
			CheckList:       cmd.CheckList,
			Issues:          cmd.Issues,
			Notes:           cmd.Notes,
			Images:          cmd.Images,
			Status:          string(cmd.Status),
			Signature:       cmd.Signature,
			RecordedBy:      cmd.ActorID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Inspections().Create(ctx, inspection); err != nil {
			return fmt.Errorf("failed to create inspection: %w", err)
		}

		if cmd.OdometerReading != nil && *cmd.OdometerReading > v.Mileage {
			err := tx.Vehicles().UpdateFields(ctx, v.ID, map[string]interface{}{
				"mileage":    *cmd.OdometerReading,
				"updated_at": now,
			})
			if err != nil {
				return fmt.Errorf("failed to update vehicle mileage: %w", err)
			}
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   v.ID,
			AggregateType: domain.AggregateVehicle,
			Type:          domain.InspectionRecorded,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          inspection,
		})
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "vehicle_id", cmd.VehicleID)
	return inspection, nil
}

// ListInspections returns the inspections of a vehicle, newest first
func (h *VehicleHandler) ListInspections(ctx context.Context, vehicleID string, opts ListOptions) ([]models.VehicleInspection, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Vehicles(), "vehicle", vehicleID); err != nil {
		return nil, classify(err)
	}
	q, err := inspectionList.query(opts)
	if err != nil {
		return nil, err
	}
	q.Where["vehicle_id"] = vehicleID

	inspections, err := h.store.Inspections().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return inspections, nil
}

// GetVehicle returns one vehicle
func (h *VehicleHandler) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	v, err := loadEntity(ctx, h.store.Vehicles(), "vehicle", id)
	if err != nil {
		return nil, classify(err)
	}
	return v, nil
}

// ListVehicles returns vehicles matching opts
func (h *VehicleHandler) ListVehicles(ctx context.Context, opts ListOptions) ([]models.Vehicle, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := vehicleList.query(opts)
	if err != nil {
		return nil, err
	}
	vehicles, err := h.store.Vehicles().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return vehicles, nil
}

// ListMaintenance returns the maintenance records of a vehicle, newest first
func (h *VehicleHandler) ListMaintenance(ctx context.Context, vehicleID string, opts ListOptions) ([]models.MaintenanceRecord, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Vehicles(), "vehicle", vehicleID); err != nil {
		return nil, classify(err)
	}
	q, err := maintenanceList.query(opts)
	if err != nil {
		return nil, err
	}
	q.Where["vehicle_id"] = vehicleID

	records, err := h.store.Maintenance().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

// GetStats computes the incident, maintenance and compliance summary of a vehicle
func (h *VehicleHandler) GetStats(ctx context.Context, vehicleID string) (*VehicleStats, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	v, err := loadEntity(ctx, h.store.Vehicles(), "vehicle", vehicleID)
	if err != nil {
		return nil, classify(err)
	}

	stats := &VehicleStats{VehicleID: v.ID}
	byVehicle := map[string]interface{}{"vehicle_id": v.ID}
	if stats.TotalIncidents, err = h.store.Incidents().Count(ctx, byVehicle); err != nil {
		return nil, classify(err)
	}
	stats.OpenIncidents, err = h.store.Incidents().Count(ctx, map[string]interface{}{
		"vehicle_id": v.ID,
		"status":     []domain.IncidentStatus{domain.IncidentReported, domain.IncidentInvestigating},
	})
	if err != nil {
		return nil, classify(err)
	}

	records, err := h.store.Maintenance().FindMany(ctx, repository.Query{Where: byVehicle})
	if err != nil {
		return nil, classify(err)
	}
	stats.MaintenanceCount = len(records)
	for _, r := range records {
		stats.TotalMaintenanceCost += r.Cost
	}

	now := h.now()
	if v.NextServiceDue != nil {
		days := domain.DaysUntil(now, *v.NextServiceDue)
		stats.DaysUntilService = &days
		stats.ServiceDue = days <= domain.ServiceDueWithinDays
	}
	stats.InsuranceStatus = domain.InsuranceStatus(now, v.InsuranceExpiry)
	if v.InsuranceExpiry != nil {
		stats.InsuranceExpiringSoon = domain.DaysUntil(now, *v.InsuranceExpiry) <= domain.InsuranceExpiringWithinDays
	}
	return stats, nil
}
