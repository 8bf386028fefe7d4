package handlers

import (
	"context"
	"fmt"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/utils"

	"github.com/rs/zerolog/log"
)

// LocationInput holds the writable attributes of a service location
type LocationInput struct {
	Name               string   `json:"name" validate:"required"`
	AddressLine1       string   `json:"address_line1" validate:"required"`
	AddressLine2       string   `json:"address_line2"`
	City               string   `json:"city" validate:"required"`
	State              string   `json:"state"`
	PostalCode         string   `json:"postal_code" validate:"required"`
	Country            string   `json:"country"`
	Latitude           *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude          *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ContactPerson      string   `json:"contact_person"`
	ContactPhone       string   `json:"contact_phone"`
	AccessInstructions string   `json:"access_instructions"`
}

func (in LocationInput) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":                in.Name,
		"address_line1":       in.AddressLine1,
		"address_line2":       in.AddressLine2,
		"city":                in.City,
		"state":               in.State,
		"postal_code":         in.PostalCode,
		"country":             in.Country,
		"latitude":            in.Latitude,
		"longitude":           in.Longitude,
		"contact_person":      in.ContactPerson,
		"contact_phone":       in.ContactPhone,
		"access_instructions": in.AccessInstructions,
	}
}

// Command structs
type CreateLocationCommand struct {
	ActorID    string `json:"actor_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required,uuid"`
	LocationInput
}

// UpdateLocationCommand replaces every writable attribute of a location. A
// nil IsActive leaves the flag as it is.
type UpdateLocationCommand struct {
	LocationID string `json:"location_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
	IsActive   *bool  `json:"is_active"`
	LocationInput
}

type DeactivateLocationCommand struct {
	LocationID string `json:"location_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
}

// LocationHandler handles the service locations of customers
type LocationHandler struct {
	base
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(store repository.Store, opts Options) *LocationHandler {
	return &LocationHandler{base: newBase(store, opts)}
}

// HandleCreateLocation adds an active service location to a customer
func (h *LocationHandler) HandleCreateLocation(ctx context.Context, cmd CreateLocationCommand) (*LocationView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("customerID", cmd.CustomerID).Str("name", cmd.Name).Str("actorID", cmd.ActorID).Msg("Handling CreateLocation command")

	var view *LocationView
	err := h.mutate(ctx, "location", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := requireServedCustomer(ctx, tx, cmd.CustomerID); err != nil {
			return err
		}

		now := h.now()
		location := &models.Location{
			ID:                 newID(),
			CustomerID:         cmd.CustomerID,
			Name:               cmd.Name,
			AddressLine1:       cmd.AddressLine1,
			AddressLine2:       cmd.AddressLine2,
			City:               cmd.City,
			State:              cmd.State,
			PostalCode:         cmd.PostalCode,
			Country:            cmd.Country,
			Latitude:           cmd.Latitude,
			Longitude:          cmd.Longitude,
			ContactPerson:      cmd.ContactPerson,
			ContactPhone:       cmd.ContactPhone,
			AccessInstructions: cmd.AccessInstructions,
			IsActive:           true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Locations().Create(ctx, location); err != nil {
			return fmt.Errorf("failed to create location: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   location.ID,
			AggregateType: domain.AggregateLocation,
			Type:          domain.LocationSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          location,
		})
		if err != nil {
			return err
		}

		view, err = loadLocationView(ctx, tx, location.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// HandleUpdateLocation replaces the attributes of a location
func (h *LocationHandler) HandleUpdateLocation(ctx context.Context, cmd UpdateLocationCommand) (*LocationView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("locationID", cmd.LocationID).Str("actorID", cmd.ActorID).Msg("Handling UpdateLocation command")

	var view *LocationView
	err := h.mutate(ctx, "location", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		loc, err := loadEntity(ctx, tx.Locations(), "location", cmd.LocationID)
		if err != nil {
			return err
		}

		now := h.now()
		fields := cmd.fields()
		if cmd.IsActive != nil {
			fields["is_active"] = *cmd.IsActive
		}
		fields["updated_at"] = now
		if err := tx.Locations().UpdateFields(ctx, loc.ID, fields); err != nil {
			return fmt.Errorf("failed to update location: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   loc.ID,
			AggregateType: domain.AggregateLocation,
			Type:          domain.LocationSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		view, err = loadLocationView(ctx, tx, loc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "location_id", cmd.LocationID)
	return view, nil
}

// HandleDeactivateLocation stops a location from receiving new deliveries.
// Deliveries already scheduled there are kept.
func (h *LocationHandler) HandleDeactivateLocation(ctx context.Context, cmd DeactivateLocationCommand) (*LocationView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("locationID", cmd.LocationID).Str("actorID", cmd.ActorID).Msg("Handling DeactivateLocation command")

	var view *LocationView
	err := h.mutate(ctx, "location", "deactivate", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		loc, err := loadEntity(ctx, tx.Locations(), "location", cmd.LocationID)
		if err != nil {
			return err
		}

		if loc.IsActive {
			now := h.now()
			fields := map[string]interface{}{
				"is_active":  false,
				"updated_at": now,
			}
			if err := tx.Locations().UpdateFields(ctx, loc.ID, fields); err != nil {
				return fmt.Errorf("failed to deactivate location: %w", err)
			}
			err := recordEvent(ctx, tx, domain.Event{
				AggregateID:   loc.ID,
				AggregateType: domain.AggregateLocation,
				Type:          domain.LocationDeactivated,
				ActorID:       cmd.ActorID,
				Timestamp:     now,
				Data:          fields,
			})
			if err != nil {
				return err
			}
		}

		view, err = loadLocationView(ctx, tx, loc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateReferencing(ctx, "location_id", cmd.LocationID)
	return view, nil
}

// GetLocation returns one location with its customer
func (h *LocationHandler) GetLocation(ctx context.Context, id string) (*LocationView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	view, err := loadLocationView(ctx, h.store, id)
	if err != nil {
		return nil, classify(err)
	}
	return view, nil
}

// ListCustomerLocations returns the active locations of a customer by name
func (h *LocationHandler) ListCustomerLocations(ctx context.Context, customerID string) ([]models.Location, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Customers(), "customer", customerID); err != nil {
		return nil, classify(err)
	}
	locations, err := h.store.Locations().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"customer_id": customerID, "is_active": true},
		OrderBy: "name",
	})
	if err != nil {
		return nil, classify(err)
	}
	return locations, nil
}

// ListLocationDeliveries returns the deliveries scheduled at a location, most
// recent first unless opts sorts otherwise
func (h *LocationHandler) ListLocationDeliveries(ctx context.Context, locationID string, opts ListOptions) ([]DeliveryView, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Locations(), "location", locationID); err != nil {
		return nil, classify(err)
	}
	q, err := deliveryList.query(opts)
	if err != nil {
		return nil, err
	}
	if opts.SortBy == "" {
		q.Desc = true
	}
	q.Where["location_id"] = locationID

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

func loadLocationView(ctx context.Context, store repository.Store, id string) (*LocationView, error) {
	loc, err := loadEntity(ctx, store.Locations(), "location", id)
	if err != nil {
		return nil, err
	}
	customer, err := optional(ctx, store.Customers(), &loc.CustomerID)
	if err != nil {
		return nil, err
	}
	return &LocationView{Location: *loc, Customer: customer}, nil
}
