package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/internal/cache"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/utils"

	"github.com/rs/zerolog/log"
)

// Command structs
type CreateDeliveryCommand struct {
	ActorID        string              `json:"actor_id" validate:"required"`
	CustomerID     string              `json:"customer_id" validate:"required,uuid"`
	DriverID       *string             `json:"driver_id" validate:"omitempty,uuid"`
	VehicleID      *string             `json:"vehicle_id" validate:"omitempty,uuid"`
	LocationID     *string             `json:"location_id" validate:"omitempty,uuid"`
	ContainerIDs   []string            `json:"containers" validate:"omitempty,dive,required,uuid"`
	ScheduledDate  time.Time           `json:"scheduled_date" validate:"required"`
	Sequence       *int                `json:"sequence" validate:"omitempty,gte=0"`
	Type           domain.DeliveryType `json:"type" validate:"required,delivery_type"`
	Priority       domain.Priority     `json:"priority" validate:"omitempty,priority"`
	Notes          string              `json:"notes"`
	ManifestNumber *string             `json:"manifest_number"`
}

// UpdateDeliveryCommand changes delivery attributes. Nil fields are left
// untouched; an empty driver, vehicle or location id clears the reference.
// Status only changes through TransitionDeliveryCommand.
type UpdateDeliveryCommand struct {
	DeliveryID     string               `json:"delivery_id" validate:"required"`
	ActorID        string               `json:"actor_id" validate:"required"`
	CustomerID     *string              `json:"customer_id" validate:"omitempty,uuid"`
	DriverID       *string              `json:"driver_id" validate:"omitempty,uuid"`
	VehicleID      *string              `json:"vehicle_id" validate:"omitempty,uuid"`
	LocationID     *string              `json:"location_id" validate:"omitempty,uuid"`
	ContainerIDs   *[]string            `json:"containers" validate:"omitempty,dive,uuid"`
	ScheduledDate  *time.Time           `json:"scheduled_date"`
	Sequence       *int                 `json:"sequence" validate:"omitempty,gte=0"`
	Type           *domain.DeliveryType `json:"type" validate:"omitempty,delivery_type"`
	Priority       *domain.Priority     `json:"priority" validate:"omitempty,priority"`
	Notes          *string              `json:"notes"`
	ManifestNumber *string              `json:"manifest_number"`
}

type DeleteDeliveryCommand struct {
	DeliveryID string `json:"delivery_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
}

// TransitionDeliveryCommand moves a delivery along its lifecycle. Notes are
// optional for every target status. CompletedDate is only used when the
// target is completed. When FromStatus is set the transition only applies
// while the delivery is still in that status.
type TransitionDeliveryCommand struct {
	DeliveryID    string                 `json:"delivery_id" validate:"required"`
	Status        domain.DeliveryStatus  `json:"status" validate:"required,delivery_status"`
	FromStatus    *domain.DeliveryStatus `json:"from_status" validate:"omitempty,delivery_status"`
	ActorID       string                 `json:"actor_id" validate:"required"`
	Notes         string                 `json:"notes"`
	CompletedDate *time.Time             `json:"completed_date"`
}

// DeliverySequence is the route position of one delivery
type DeliverySequence struct {
	DeliveryID string `json:"id" validate:"required,uuid"`
	Sequence   int    `json:"sequence" validate:"gte=0"`
}

// SequenceDeliveriesCommand reorders route stops. Either every position is
// applied or none is.
type SequenceDeliveriesCommand struct {
	ActorID    string             `json:"actor_id" validate:"required"`
	Deliveries []DeliverySequence `json:"deliveries" validate:"required,min=1,dive"`
}

var deliveryList = listSpec{
	filters:     []string{"customer_id", "driver_id", "vehicle_id", "location_id", "status", "type", "priority"},
	sorts:       []string{"scheduled_date", "sequence", "created_at", "updated_at", "status", "priority"},
	defaultSort: "scheduled_date",
}

// DeliveryHandler handles all delivery-related commands
type DeliveryHandler struct {
	base
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(store repository.Store, opts Options) *DeliveryHandler {
	return &DeliveryHandler{base: newBase(store, opts)}
}

// HandleCreateDelivery schedules a new delivery with its first history entry
func (h *DeliveryHandler) HandleCreateDelivery(ctx context.Context, cmd CreateDeliveryCommand) (*DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("customerID", cmd.CustomerID).Str("actorID", cmd.ActorID).Msg("Handling CreateDelivery command")

	var view *DeliveryView
	err := h.mutate(ctx, "delivery", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := requireServedCustomer(ctx, tx, cmd.CustomerID); err != nil {
			return err
		}
		if err := requireLocation(ctx, tx, cmd.LocationID, cmd.CustomerID); err != nil {
			return err
		}
		if err := requireReference(ctx, tx.Drivers(), "driver", cmd.DriverID); err != nil {
			return err
		}
		if err := requireReference(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID); err != nil {
			return err
		}
		if err := requireContainers(ctx, tx, cmd.ContainerIDs); err != nil {
			return err
		}

		now := h.now()
		priority := cmd.Priority
		if priority == "" {
			priority = domain.PriorityNormal
		}
		delivery := &models.Delivery{
			ID:             newID(),
			CustomerID:     cmd.CustomerID,
			DriverID:       emptyToNil(cmd.DriverID),
			VehicleID:      emptyToNil(cmd.VehicleID),
			LocationID:     emptyToNil(cmd.LocationID),
			Type:           cmd.Type,
			Status:         domain.DeliveryScheduled,
			Priority:       priority,
			ScheduledDate:  cmd.ScheduledDate,
			Sequence:       cmd.Sequence,
			Notes:          cmd.Notes,
			ManifestNumber: cmd.ManifestNumber,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Deliveries().Create(ctx, delivery); err != nil {
			return fmt.Errorf("failed to create delivery: %w", err)
		}
		if err := linkContainers(ctx, tx, delivery.ID, cmd.ContainerIDs); err != nil {
			return err
		}

		entry := &models.DeliveryStatusEntry{
			ID:         newID(),
			DeliveryID: delivery.ID,
			Sequence:   1,
			Status:     domain.DeliveryScheduled,
			Timestamp:  now,
			UpdatedBy:  cmd.ActorID,
			Notes:      "Delivery scheduled",
		}
		if err := tx.DeliveryHistory().Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   delivery.ID,
			AggregateType: domain.AggregateDelivery,
			Type:          domain.DeliveryCreated,
			Version:       delivery.Version,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          delivery,
		})
		if err != nil {
			return err
		}

		view, err = loadDeliveryView(ctx, tx, delivery.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// HandleUpdateDelivery changes the attributes of a non-terminal delivery
func (h *DeliveryHandler) HandleUpdateDelivery(ctx context.Context, cmd UpdateDeliveryCommand) (*DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("deliveryID", cmd.DeliveryID).Str("actorID", cmd.ActorID).Msg("Handling UpdateDelivery command")

	var view *DeliveryView
	err := h.mutate(ctx, "delivery", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		d, err := loadEntity(ctx, tx.Deliveries(), "delivery", cmd.DeliveryID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return domain.Conflict("delivery %s is %s and can no longer be modified", d.ID, d.Status)
		}

		now := h.now()
		fields := map[string]interface{}{
			"version":    d.Version + 1,
			"updated_at": now,
		}
		customerID := d.CustomerID
		if cmd.CustomerID != nil {
			if *cmd.CustomerID == "" {
				return domain.Validation("customer_id cannot be cleared")
			}
			if err := requireServedCustomer(ctx, tx, *cmd.CustomerID); err != nil {
				return err
			}
			customerID = *cmd.CustomerID
			fields["customer_id"] = customerID
		}
		locationID := d.LocationID
		if cmd.LocationID != nil {
			locationID = emptyToNil(cmd.LocationID)
			fields["location_id"] = locationID
		}
		if cmd.CustomerID != nil || cmd.LocationID != nil {
			if err := requireLocation(ctx, tx, locationID, customerID); err != nil {
				return err
			}
		}
		if cmd.DriverID != nil {
			if err := requireReference(ctx, tx.Drivers(), "driver", cmd.DriverID); err != nil {
				return err
			}
			fields["driver_id"] = emptyToNil(cmd.DriverID)
		}
		if cmd.VehicleID != nil {
			if err := requireReference(ctx, tx.Vehicles(), "vehicle", cmd.VehicleID); err != nil {
				return err
			}
			fields["vehicle_id"] = emptyToNil(cmd.VehicleID)
		}
		if cmd.ScheduledDate != nil {
			fields["scheduled_date"] = *cmd.ScheduledDate
		}
		if cmd.Sequence != nil {
			fields["sequence"] = *cmd.Sequence
		}
		if cmd.Type != nil {
			fields["type"] = *cmd.Type
		}
		if cmd.Priority != nil {
			fields["priority"] = *cmd.Priority
		}
		if cmd.Notes != nil {
			fields["notes"] = *cmd.Notes
		}
		if cmd.ManifestNumber != nil {
			fields["manifest_number"] = emptyToNil(cmd.ManifestNumber)
		}

		ok, err := tx.Deliveries().UpdateWhere(ctx, d.ID, map[string]interface{}{"version": d.Version}, fields)
		if err != nil {
			return fmt.Errorf("failed to update delivery: %w", err)
		}
		if !ok {
			return domain.Conflict("delivery %s was modified concurrently", d.ID)
		}

		if cmd.ContainerIDs != nil {
			if err := requireContainers(ctx, tx, *cmd.ContainerIDs); err != nil {
				return err
			}
			if _, err := tx.DeliveryContainers().DeleteWhere(ctx, map[string]interface{}{"delivery_id": d.ID}); err != nil {
				return fmt.Errorf("failed to unlink containers: %w", err)
			}
			if err := linkContainers(ctx, tx, d.ID, *cmd.ContainerIDs); err != nil {
				return err
			}
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   d.ID,
			AggregateType: domain.AggregateDelivery,
			Type:          domain.DeliveryUpdated,
			Version:       d.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		view, err = loadDeliveryView(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, cache.DeliveryKey(cmd.DeliveryID))
	return view, nil
}

// HandleDeleteDelivery removes a delivery that has not been completed
func (h *DeliveryHandler) HandleDeleteDelivery(ctx context.Context, cmd DeleteDeliveryCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("deliveryID", cmd.DeliveryID).Str("actorID", cmd.ActorID).Msg("Handling DeleteDelivery command")

	err := h.mutate(ctx, "delivery", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		d, err := loadEntity(ctx, tx.Deliveries(), "delivery", cmd.DeliveryID)
		if err != nil {
			return err
		}
		if d.Status == domain.DeliveryCompleted {
			return domain.Conflict("completed delivery %s cannot be deleted", d.ID)
		}

		where := map[string]interface{}{"delivery_id": d.ID}
		if _, err := tx.DeliveryContainers().DeleteWhere(ctx, where); err != nil {
			return fmt.Errorf("failed to unlink containers: %w", err)
		}
		if _, err := tx.DeliveryHistory().DeleteWhere(ctx, where); err != nil {
			return fmt.Errorf("failed to delete status history: %w", err)
		}
		if err := tx.Deliveries().Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("failed to delete delivery: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   d.ID,
			AggregateType: domain.AggregateDelivery,
			Type:          domain.DeliveryDeleted,
			Version:       d.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     h.now(),
			Data:          d,
		})
	})
	if err != nil {
		return err
	}

	h.invalidate(ctx, cache.DeliveryKey(cmd.DeliveryID))
	return nil
}

// HandleTransition applies one step of the delivery lifecycle. The update is
// guarded on the status and version that were read, so of two concurrent
// transitions from the same state only one can commit.
func (h *DeliveryHandler) HandleTransition(ctx context.Context, cmd TransitionDeliveryCommand) (*DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().
		Str("deliveryID", cmd.DeliveryID).
		Str("status", string(cmd.Status)).
		Str("actorID", cmd.ActorID).
		Msg("Handling TransitionDelivery command")

	var view *DeliveryView
	err := h.mutate(ctx, "delivery", "transition", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		d, err := loadEntity(ctx, tx.Deliveries(), "delivery", cmd.DeliveryID)
		if err != nil {
			return err
		}
		if cmd.FromStatus != nil && *cmd.FromStatus != d.Status {
			return domain.InvalidTransition(string(d.Status), string(cmd.Status))
		}
		if !domain.CanTransition(d.Status, cmd.Status) {
			return domain.InvalidTransition(string(d.Status), string(cmd.Status))
		}

		now := h.now()
		fields := map[string]interface{}{
			"status":     cmd.Status,
			"version":    d.Version + 1,
			"updated_at": now,
		}
		var completedDate *time.Time
		if cmd.Status == domain.DeliveryCompleted {
			completed := now
			if cmd.CompletedDate != nil {
				completed = *cmd.CompletedDate
			}
			completedDate = &completed
			fields["completed_date"] = completed
		}

		guard := map[string]interface{}{"status": d.Status, "version": d.Version}
		ok, err := tx.Deliveries().UpdateWhere(ctx, d.ID, guard, fields)
		if err != nil {
			return fmt.Errorf("failed to update delivery status: %w", err)
		}
		if !ok {
			current, err := loadEntity(ctx, tx.Deliveries(), "delivery", d.ID)
			if err != nil {
				return err
			}
			return domain.InvalidTransition(string(current.Status), string(cmd.Status))
		}

		count, err := tx.DeliveryHistory().Count(ctx, map[string]interface{}{"delivery_id": d.ID})
		if err != nil {
			return fmt.Errorf("failed to count status history: %w", err)
		}
		entry := &models.DeliveryStatusEntry{
			ID:         newID(),
			DeliveryID: d.ID,
			Sequence:   int(count) + 1,
			Status:     cmd.Status,
			Timestamp:  now,
			UpdatedBy:  cmd.ActorID,
			Notes:      cmd.Notes,
		}
		if err := tx.DeliveryHistory().Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   d.ID,
			AggregateType: domain.AggregateDelivery,
			Type:          domain.DeliveryStatusChanged,
			Version:       d.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data: domain.DeliveryStatusChangedEvent{
				DeliveryID:    d.ID,
				From:          d.Status,
				To:            cmd.Status,
				UpdatedBy:     cmd.ActorID,
				Notes:         cmd.Notes,
				CompletedDate: completedDate,
				Timestamp:     now,
			},
		})
		if err != nil {
			return err
		}

		view, err = loadDeliveryView(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, cache.DeliveryKey(cmd.DeliveryID))
	return view, nil
}

// HandleSequence sets the route position of several deliveries in one
// transaction. Completed and cancelled deliveries cannot be moved.
func (h *DeliveryHandler) HandleSequence(ctx context.Context, cmd SequenceDeliveriesCommand) ([]DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Int("count", len(cmd.Deliveries)).Str("actorID", cmd.ActorID).Msg("Handling SequenceDeliveries command")

	var views []DeliveryView
	err := h.mutate(ctx, "delivery", "sequence", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}

		seen := make(map[string]bool, len(cmd.Deliveries))
		views = make([]DeliveryView, 0, len(cmd.Deliveries))
		now := h.now()
		for _, stop := range cmd.Deliveries {
			if seen[stop.DeliveryID] {
				return domain.Validation("delivery %s is listed more than once", stop.DeliveryID)
			}
			seen[stop.DeliveryID] = true

			d, err := loadEntity(ctx, tx.Deliveries(), "delivery", stop.DeliveryID)
			if err != nil {
				return err
			}
			if d.Status.IsTerminal() {
				return domain.Conflict("delivery %s is %s and can no longer be modified", d.ID, d.Status)
			}

			fields := map[string]interface{}{
				"sequence":   stop.Sequence,
				"version":    d.Version + 1,
				"updated_at": now,
			}
			ok, err := tx.Deliveries().UpdateWhere(ctx, d.ID, map[string]interface{}{"version": d.Version}, fields)
			if err != nil {
				return fmt.Errorf("failed to update delivery sequence: %w", err)
			}
			if !ok {
				return domain.Conflict("delivery %s was modified concurrently", d.ID)
			}

			err = recordEvent(ctx, tx, domain.Event{
				AggregateID:   d.ID,
				AggregateType: domain.AggregateDelivery,
				Type:          domain.DeliveryUpdated,
				Version:       d.Version + 1,
				ActorID:       cmd.ActorID,
				Timestamp:     now,
				Data:          fields,
			})
			if err != nil {
				return err
			}

			view, err := loadDeliveryView(ctx, tx, d.ID)
			if err != nil {
				return err
			}
			views = append(views, *view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(views))
	for _, v := range views {
		keys = append(keys, cache.DeliveryKey(v.ID))
	}
	h.invalidate(ctx, keys...)
	return views, nil
}

// GetDelivery returns the hydrated delivery, served from cache when possible
func (h *DeliveryHandler) GetDelivery(ctx context.Context, id string) (*DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	key := cache.DeliveryKey(id)
	var cached DeliveryView
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	view, err := h.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, key, view, 0); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Delivery not cached")
	}
	return view, nil
}

// ListDeliveries returns hydrated deliveries matching opts
func (h *DeliveryHandler) ListDeliveries(ctx context.Context, opts ListOptions) ([]DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := deliveryList.query(opts)
	if err != nil {
		return nil, err
	}
	deliveries, err := h.store.Deliveries().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}

	views := make([]DeliveryView, 0, len(deliveries))
	for i := range deliveries {
		view, err := hydrateDelivery(ctx, h.store, &deliveries[i])
		if err != nil {
			return nil, classify(err)
		}
		views = append(views, *view)
	}
	return views, nil
}

// ListDriverDeliveries returns the deliveries a driver is scheduled for on
// the UTC day containing day, in route order
func (h *DeliveryHandler) ListDriverDeliveries(ctx context.Context, driverID string, day time.Time) ([]DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Drivers(), "driver", driverID); err != nil {
		return nil, classify(err)
	}
	deliveries, err := h.store.Deliveries().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"driver_id": driverID},
		OrderBy: "sequence",
	})
	if err != nil {
		return nil, classify(err)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	views := make([]DeliveryView, 0, len(deliveries))
	for i := range deliveries {
		d := &deliveries[i]
		if d.ScheduledDate.Before(start) || !d.ScheduledDate.Before(end) {
			continue
		}
		view, err := hydrateDelivery(ctx, h.store, d)
		if err != nil {
			return nil, classify(err)
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetManifest returns the data a waste manifest is rendered from
func (h *DeliveryHandler) GetManifest(ctx context.Context, id string) (*ManifestData, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	view, err := loadDeliveryView(ctx, h.store, id)
	if err != nil {
		return nil, classify(err)
	}
	scans, err := h.store.ContainerHistory().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"delivery_id": id},
		OrderBy: "timestamp",
	})
	if err != nil {
		return nil, classify(err)
	}
	return &ManifestData{Delivery: view, Scans: scans}, nil
}

func (h *DeliveryHandler) reload(ctx context.Context, id string) (*DeliveryView, error) {
	view, err := loadDeliveryView(ctx, h.store, id)
	if err != nil {
		return nil, classify(err)
	}
	return view, nil
}

// requireServedCustomer checks that a delivery may be scheduled for the
// customer. Archived customers take no new work.
func requireServedCustomer(ctx context.Context, tx repository.Store, customerID string) error {
	c, err := tx.Customers().FindByID(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.InvalidReference("customer", customerID)
	}
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}
	if c.Status == domain.CustomerArchivedStatus {
		return domain.Conflict("customer %s is archived", c.ID)
	}
	return nil
}

// requireLocation checks that an optional location is active and belongs to
// the delivery's customer
func requireLocation(ctx context.Context, tx repository.Store, locationID *string, customerID string) error {
	if locationID == nil || *locationID == "" {
		return nil
	}
	loc, err := tx.Locations().FindByID(ctx, *locationID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.InvalidReference("location", *locationID)
	}
	if err != nil {
		return fmt.Errorf("failed to load location: %w", err)
	}
	if loc.CustomerID != customerID {
		return domain.Validation("location %s does not belong to customer %s", loc.ID, customerID)
	}
	if !loc.IsActive {
		return domain.Validation("location %s is inactive", loc.ID)
	}
	return nil
}

func requireContainers(ctx context.Context, tx repository.Store, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return domain.Validation("container %s is listed more than once", id)
		}
		seen[id] = true
		if err := requireReference(ctx, tx.Containers(), "container", &id); err != nil {
			return err
		}
	}
	return nil
}

func linkContainers(ctx context.Context, tx repository.Store, deliveryID string, ids []string) error {
	for i, id := range ids {
		link := &models.DeliveryContainer{
			ID:          newID(),
			DeliveryID:  deliveryID,
			ContainerID: id,
			Position:    i,
		}
		if err := tx.DeliveryContainers().Create(ctx, link); err != nil {
			return fmt.Errorf("failed to link container %s: %w", id, err)
		}
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
