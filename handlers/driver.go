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

// DriverInput holds the writable attributes of a driver
type DriverInput struct {
	Name             string     `json:"name" validate:"required"`
	Email            *string    `json:"email" validate:"omitempty,email"`
	Phone            string     `json:"phone"`
	LicenseNumber    string     `json:"license_number" validate:"required"`
	LicenseExpiry    *time.Time `json:"license_expiry"`
	LicenseType      string     `json:"license_type"`
	Status           string     `json:"status" validate:"omitempty,oneof=active inactive on_leave"`
	EmergencyContact string     `json:"emergency_contact"`
	EmergencyPhone   string     `json:"emergency_phone"`
	Notes            string     `json:"notes"`
}

func (in DriverInput) status() string {
	if in.Status == "" {
		return "active"
	}
	return in.Status
}

func (in DriverInput) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":              in.Name,
		"email":             emptyToNil(in.Email),
		"phone":             in.Phone,
		"license_number":    in.LicenseNumber,
		"license_expiry":    in.LicenseExpiry,
		"license_type":      in.LicenseType,
		"status":            in.status(),
		"emergency_contact": in.EmergencyContact,
		"emergency_phone":   in.EmergencyPhone,
		"notes":             in.Notes,
	}
}

// Command structs
type CreateDriverCommand struct {
	ActorID string `json:"actor_id" validate:"required"`
	DriverInput
}

// UpdateDriverCommand replaces every writable attribute of a driver
type UpdateDriverCommand struct {
	DriverID string `json:"driver_id" validate:"required"`
	ActorID  string `json:"actor_id" validate:"required"`
	DriverInput
}

type DeleteDriverCommand struct {
	DriverID string `json:"driver_id" validate:"required"`
	ActorID  string `json:"actor_id" validate:"required"`
}

var driverList = listSpec{
	filters:     []string{"status", "license_type", "email", "license_number"},
	sorts:       []string{"name", "created_at", "updated_at", "license_expiry"},
	defaultSort: "name",
}

// DriverHandler handles all driver-related commands
type DriverHandler struct {
	base
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(store repository.Store, opts Options) *DriverHandler {
	return &DriverHandler{base: newBase(store, opts)}
}

func checkDriverInput(ctx context.Context, tx repository.Store, in DriverInput, excludeID string) error {
	if err := ensureUnique(ctx, tx.Drivers(), "driver", "email", in.Email, excludeID); err != nil {
		return err
	}
	return ensureUnique(ctx, tx.Drivers(), "driver", "license_number", in.LicenseNumber, excludeID)
}

// HandleCreateDriver registers a new driver
func (h *DriverHandler) HandleCreateDriver(ctx context.Context, cmd CreateDriverCommand) (*models.Driver, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("name", cmd.Name).Str("actorID", cmd.ActorID).Msg("Handling CreateDriver command")

	var driver *models.Driver
	err := h.mutate(ctx, "driver", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := checkDriverInput(ctx, tx, cmd.DriverInput, ""); err != nil {
			return err
		}

		now := h.now()
		driver = &models.Driver{
			ID:               newID(),
			Name:             cmd.Name,
			Email:            emptyToNil(cmd.Email),
			Phone:            cmd.Phone,
			LicenseNumber:    cmd.LicenseNumber,
			LicenseExpiry:    cmd.LicenseExpiry,
			LicenseType:      cmd.LicenseType,
			Status:           cmd.status(),
			EmergencyContact: cmd.EmergencyContact,
			EmergencyPhone:   cmd.EmergencyPhone,
			Notes:            cmd.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Drivers().Create(ctx, driver); err != nil {
			return fmt.Errorf("failed to create driver: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   driver.ID,
			AggregateType: domain.AggregateDriver,
			Type:          domain.DriverSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          driver,
		})
		if err != nil {
			return err
		}

		driver, err = loadEntity(ctx, tx.Drivers(), "driver", driver.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// HandleUpdateDriver replaces the attributes of a driver
func (h *DriverHandler) HandleUpdateDriver(ctx context.Context, cmd UpdateDriverCommand) (*models.Driver, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("driverID", cmd.DriverID).Str("actorID", cmd.ActorID).Msg("Handling UpdateDriver command")

	var driver *models.Driver
	err := h.mutate(ctx, "driver", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		d, err := loadEntity(ctx, tx.Drivers(), "driver", cmd.DriverID)
		if err != nil {
			return err
		}
		if err := checkDriverInput(ctx, tx, cmd.DriverInput, d.ID); err != nil {
			return err
		}

		now := h.now()
		fields := cmd.fields()
		fields["updated_at"] = now
		if err := tx.Drivers().UpdateFields(ctx, d.ID, fields); err != nil {
			return fmt.Errorf("failed to update driver: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   d.ID,
			AggregateType: domain.AggregateDriver,
			Type:          domain.DriverSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		driver, err = loadEntity(ctx, tx.Drivers(), "driver", d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "driver_id", cmd.DriverID)
	return driver, nil
}

// HandleDeleteDriver removes a driver that no delivery, incident report or
// inspection refers to. Vehicles assigned to the driver become unassigned.
func (h *DriverHandler) HandleDeleteDriver(ctx context.Context, cmd DeleteDriverCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("driverID", cmd.DriverID).Str("actorID", cmd.ActorID).Msg("Handling DeleteDriver command")

	err := h.mutate(ctx, "driver", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		d, err := loadEntity(ctx, tx.Drivers(), "driver", cmd.DriverID)
		if err != nil {
			return err
		}
		where := map[string]interface{}{"driver_id": d.ID}
		if err := ensureUnreferenced(ctx, tx.Deliveries(), "driver", d.ID, "deliveries", where); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Incidents(), "driver", d.ID, "incident reports", where); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Inspections(), "driver", d.ID, "inspections", where); err != nil {
			return err
		}

		now := h.now()
		assigned, err := tx.Vehicles().FindMany(ctx, repository.Query{
			Where: map[string]interface{}{"assigned_driver_id": d.ID},
		})
		if err != nil {
			return fmt.Errorf("failed to find assigned vehicles: %w", err)
		}
		for _, v := range assigned {
			err := tx.Vehicles().UpdateFields(ctx, v.ID, map[string]interface{}{
				"assigned_driver_id": nil,
				"updated_at":         now,
			})
			if err != nil {
				return fmt.Errorf("failed to unassign vehicle %s: %w", v.ID, err)
			}
		}

		if err := tx.Drivers().Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("failed to delete driver: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   d.ID,
			AggregateType: domain.AggregateDriver,
			Type:          domain.DriverDeleted,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          d,
		})
	})
	if err != nil {
		return err
	}

	h.invalidateReferencing(ctx, "driver_id", cmd.DriverID)
	return nil
}

// GetDriver returns one driver
func (h *DriverHandler) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	d, err := loadEntity(ctx, h.store.Drivers(), "driver", id)
	if err != nil {
		return nil, classify(err)
	}
	return d, nil
}

// ListDrivers returns drivers matching opts
func (h *DriverHandler) ListDrivers(ctx context.Context, opts ListOptions) ([]models.Driver, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := driverList.query(opts)
	if err != nil {
		return nil, err
	}
	drivers, err := h.store.Drivers().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return drivers, nil
}
