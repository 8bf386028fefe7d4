package handlers

import (
	"context"
	"fmt"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/internal/cache"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/utils"

	"github.com/rs/zerolog/log"
)

// Command structs
type CreateContainerCommand struct {
	ActorID  string               `json:"actor_id" validate:"required"`
	Barcode  string               `json:"barcode" validate:"required"`
	Type     domain.ContainerType `json:"type" validate:"required,container_type"`
	Capacity float64              `json:"capacity" validate:"gte=0"`
}

// UpdateContainerCommand changes container attributes. Status only changes
// through RecordContainerActionCommand.
type UpdateContainerCommand struct {
	ContainerID string                `json:"container_id" validate:"required"`
	ActorID     string                `json:"actor_id" validate:"required"`
	Barcode     *string               `json:"barcode" validate:"omitempty,min=1"`
	Type        *domain.ContainerType `json:"type" validate:"omitempty,container_type"`
	Capacity    *float64              `json:"capacity" validate:"omitempty,gte=0"`
}

type DeleteContainerCommand struct {
	ContainerID string `json:"container_id" validate:"required"`
	ActorID     string `json:"actor_id" validate:"required"`
}

// Location is where a scan happened
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// RecordContainerActionCommand is one handheld scan of a container
type RecordContainerActionCommand struct {
	ContainerID    string                 `json:"container_id" validate:"required"`
	Action         domain.ContainerAction `json:"action" validate:"required,container_action"`
	ActorID        string                 `json:"actor_id" validate:"required"`
	CustomerID     *string                `json:"customer_id" validate:"omitempty,uuid"`
	DeliveryID     *string                `json:"delivery_id" validate:"omitempty,uuid"`
	Weight         *float64               `json:"weight" validate:"omitempty,gte=0"`
	WasteType      string                 `json:"waste_type"`
	Temperature    *float64               `json:"temperature"`
	Notes          string                 `json:"notes"`
	Location       *Location              `json:"location"`
	ManifestNumber *string                `json:"manifest_number"`
}

// ContainerActionResult is the container after the action and the history
// row the action produced
type ContainerActionResult struct {
	Container *ContainerView          `json:"container"`
	History   models.ContainerHistory `json:"history"`
}

var containerList = listSpec{
	filters:     []string{"status", "type", "current_customer_id", "barcode"},
	sorts:       []string{"barcode", "status", "created_at", "updated_at", "last_used_date", "last_cleaned_date"},
	defaultSort: "barcode",
}

var containerHistoryList = listSpec{
	filters:     []string{"action", "status", "customer_id", "delivery_id", "scanned_by"},
	sorts:       []string{"timestamp"},
	defaultSort: "timestamp",
	defaultDesc: true,
}

// ContainerHandler handles all container-related commands
type ContainerHandler struct {
	base
}

// NewContainerHandler creates a new container handler
func NewContainerHandler(store repository.Store, opts Options) *ContainerHandler {
	return &ContainerHandler{base: newBase(store, opts)}
}

// HandleCreateContainer registers a new available container
func (h *ContainerHandler) HandleCreateContainer(ctx context.Context, cmd CreateContainerCommand) (*ContainerView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("barcode", cmd.Barcode).Str("actorID", cmd.ActorID).Msg("Handling CreateContainer command")

	var view *ContainerView
	err := h.mutate(ctx, "container", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx.Containers(), "container", "barcode", cmd.Barcode, ""); err != nil {
			return err
		}

		now := h.now()
		container := &models.Container{
			ID:        newID(),
			Barcode:   cmd.Barcode,
			Type:      cmd.Type,
			Capacity:  cmd.Capacity,
			Status:    domain.ContainerAvailable,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Containers().Create(ctx, container); err != nil {
			return fmt.Errorf("failed to create container: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   container.ID,
			AggregateType: domain.AggregateContainer,
			Type:          domain.ContainerCreated,
			Version:       container.Version,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          container,
		})
		if err != nil {
			return err
		}

		view, err = loadContainerView(ctx, tx, container.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// HandleUpdateContainer changes the attributes of a container still in service
func (h *ContainerHandler) HandleUpdateContainer(ctx context.Context, cmd UpdateContainerCommand) (*ContainerView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("containerID", cmd.ContainerID).Str("actorID", cmd.ActorID).Msg("Handling UpdateContainer command")

	var view *ContainerView
	err := h.mutate(ctx, "container", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Containers(), "container", cmd.ContainerID)
		if err != nil {
			return err
		}
		if c.Status.IsTerminal() {
			return domain.ContainerTerminal(c.Barcode)
		}

		now := h.now()
		fields := map[string]interface{}{
			"version":    c.Version + 1,
			"updated_at": now,
		}
		if cmd.Barcode != nil {
			if err := ensureUnique(ctx, tx.Containers(), "container", "barcode", *cmd.Barcode, c.ID); err != nil {
				return err
			}
			fields["barcode"] = *cmd.Barcode
		}
		if cmd.Type != nil {
			fields["type"] = *cmd.Type
		}
		if cmd.Capacity != nil {
			fields["capacity"] = *cmd.Capacity
		}

		ok, err := tx.Containers().UpdateWhere(ctx, c.ID, map[string]interface{}{"version": c.Version}, fields)
		if err != nil {
			return fmt.Errorf("failed to update container: %w", err)
		}
		if !ok {
			return domain.Conflict("container %s was modified concurrently", c.Barcode)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateContainer,
			Type:          domain.ContainerUpdated,
			Version:       c.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		view, err = loadContainerView(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateContainer(ctx, cmd.ContainerID)
	return view, nil
}

// HandleDeleteContainer removes a container that has never been scheduled or
// scanned. Containers with an audit trail are retired through the disposed
// action instead.
func (h *ContainerHandler) HandleDeleteContainer(ctx context.Context, cmd DeleteContainerCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("containerID", cmd.ContainerID).Str("actorID", cmd.ActorID).Msg("Handling DeleteContainer command")

	err := h.mutate(ctx, "container", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Containers(), "container", cmd.ContainerID)
		if err != nil {
			return err
		}
		if c.Status == domain.ContainerInUse {
			return domain.Conflict("container %s is in use and cannot be deleted", c.Barcode)
		}

		where := map[string]interface{}{"container_id": c.ID}
		if err := ensureUnreferenced(ctx, tx.DeliveryContainers(), "container", c.Barcode, "deliveries", where); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.ContainerHistory(), "container", c.Barcode, "history entries", where); err != nil {
			return err
		}
		if err := tx.Containers().Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete container: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateContainer,
			Type:          domain.ContainerDeleted,
			Version:       c.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     h.now(),
			Data:          c,
		})
	})
	if err != nil {
		return err
	}

	h.invalidate(ctx, cache.ContainerKey(cmd.ContainerID))
	return nil
}

// HandleRecordAction applies a scanned action to a container and appends
// exactly one history row in the same transaction. A disposed container
// accepts no further actions.
func (h *ContainerHandler) HandleRecordAction(ctx context.Context, cmd RecordContainerActionCommand) (*ContainerActionResult, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().
		Str("containerID", cmd.ContainerID).
		Str("action", string(cmd.Action)).
		Str("actorID", cmd.ActorID).
		Msg("Handling RecordContainerAction command")

	var result *ContainerActionResult
	err := h.mutate(ctx, "container", "action", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Containers(), "container", cmd.ContainerID)
		if err != nil {
			return err
		}
		if c.Status.IsTerminal() {
			return domain.ContainerTerminal(c.Barcode)
		}

		status, _ := domain.ResultingStatus(cmd.Action)
		if domain.KeepsCustodian(cmd.Action) && (cmd.CustomerID == nil || *cmd.CustomerID == "") {
			return domain.Validation("customer_id is required for action %s", cmd.Action)
		}
		if err := requireReference(ctx, tx.Customers(), "customer", cmd.CustomerID); err != nil {
			return err
		}
		if err := requireReference(ctx, tx.Deliveries(), "delivery", cmd.DeliveryID); err != nil {
			return err
		}

		now := h.now()
		fields := map[string]interface{}{
			"status":     status,
			"version":    c.Version + 1,
			"updated_at": now,
		}
		if domain.KeepsCustodian(cmd.Action) {
			fields["current_customer_id"] = *cmd.CustomerID
		} else {
			fields["current_customer_id"] = nil
		}
		switch cmd.Action {
		case domain.ActionCollected:
			fields["last_used_date"] = now
		case domain.ActionCleaned:
			fields["last_cleaned_date"] = now
		}

		guard := map[string]interface{}{"status": c.Status, "version": c.Version}
		ok, err := tx.Containers().UpdateWhere(ctx, c.ID, guard, fields)
		if err != nil {
			return fmt.Errorf("failed to update container status: %w", err)
		}
		if !ok {
			current, err := loadEntity(ctx, tx.Containers(), "container", c.ID)
			if err != nil {
				return err
			}
			if current.Status.IsTerminal() {
				return domain.ContainerTerminal(current.Barcode)
			}
			return domain.Conflict("container %s was modified concurrently", c.Barcode)
		}

		// without an explicit customer the scan is attributed to the previous custodian
		customerID := emptyToNil(cmd.CustomerID)
		if customerID == nil {
			customerID = c.CurrentCustomerID
		}
		history := &models.ContainerHistory{
			ID:             newID(),
			ContainerID:    c.ID,
			DeliveryID:     emptyToNil(cmd.DeliveryID),
			CustomerID:     customerID,
			Action:         cmd.Action,
			Status:         status,
			ScannedBy:      cmd.ActorID,
			Timestamp:      now,
			Weight:         cmd.Weight,
			WasteType:      cmd.WasteType,
			Temperature:    cmd.Temperature,
			Notes:          cmd.Notes,
			ManifestNumber: cmd.ManifestNumber,
		}
		if cmd.Location != nil {
			history.Latitude = &cmd.Location.Latitude
			history.Longitude = &cmd.Location.Longitude
		}
		if err := tx.ContainerHistory().Create(ctx, history); err != nil {
			return fmt.Errorf("failed to append container history: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateContainer,
			Type:          domain.ContainerActionRecorded,
			Version:       c.Version + 1,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data: domain.ContainerActionRecordedEvent{
				ContainerID: c.ID,
				Barcode:     c.Barcode,
				HistoryID:   history.ID,
				Action:      cmd.Action,
				From:        c.Status,
				To:          status,
				CustomerID:  customerID,
				DeliveryID:  history.DeliveryID,
				ScannedBy:   cmd.ActorID,
				Weight:      cmd.Weight,
				WasteType:   cmd.WasteType,
				Timestamp:   now,
			},
		})
		if err != nil {
			return err
		}

		view, err := loadContainerView(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		result = &ContainerActionResult{Container: view, History: *history}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidateContainer(ctx, cmd.ContainerID)
	return result, nil
}

// GetContainer returns the hydrated container, served from cache when possible
func (h *ContainerHandler) GetContainer(ctx context.Context, id string) (*ContainerView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	key := cache.ContainerKey(id)
	var cached ContainerView
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	view, err := h.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, key, view, 0); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Container not cached")
	}
	return view, nil
}

// GetContainerByBarcode looks a container up by its scanned barcode
func (h *ContainerHandler) GetContainerByBarcode(ctx context.Context, barcode string) (*ContainerView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	found, err := h.store.Containers().FindMany(ctx, repository.Query{
		Where: map[string]interface{}{"barcode": barcode},
		Limit: 1,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(found) == 0 {
		return nil, domain.NotFound("container", barcode)
	}
	view, err := hydrateContainer(ctx, h.store, &found[0])
	if err != nil {
		return nil, classify(err)
	}
	return view, nil
}

// ListContainers returns hydrated containers matching opts
func (h *ContainerHandler) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := containerList.query(opts)
	if err != nil {
		return nil, err
	}
	containers, err := h.store.Containers().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}

	views := make([]ContainerView, 0, len(containers))
	for i := range containers {
		view, err := hydrateContainer(ctx, h.store, &containers[i])
		if err != nil {
			return nil, classify(err)
		}
		views = append(views, *view)
	}
	return views, nil
}

// ListHistory returns the audit rows of one container, newest first
func (h *ContainerHandler) ListHistory(ctx context.Context, containerID string, opts ListOptions) ([]models.ContainerHistory, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Containers(), "container", containerID); err != nil {
		return nil, classify(err)
	}
	q, err := containerHistoryList.query(opts)
	if err != nil {
		return nil, err
	}
	q.Where["container_id"] = containerID

	rows, err := h.store.ContainerHistory().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (h *ContainerHandler) reload(ctx context.Context, id string) (*ContainerView, error) {
	view, err := loadContainerView(ctx, h.store, id)
	if err != nil {
		return nil, classify(err)
	}
	return view, nil
}
