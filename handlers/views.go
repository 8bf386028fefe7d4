package handlers

import (
	"context"
	"errors"
	"fmt"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"

	"github.com/rs/zerolog/log"
)

// DeliveryView is a delivery with its related entities hydrated
type DeliveryView struct {
	models.Delivery
	Customer      *models.Customer             `json:"customer"`
	Driver        *models.Driver               `json:"driver"`
	Vehicle       *models.Vehicle              `json:"vehicle"`
	Location      *models.Location             `json:"location"`
	Containers    []models.Container           `json:"containers"`
	StatusHistory []models.DeliveryStatusEntry `json:"status_history"`
}

// ContainerView is a container with its current custodian hydrated
type ContainerView struct {
	models.Container
	CurrentCustomer *models.Customer `json:"current_customer"`
}

// LocationView is a location with its customer hydrated
type LocationView struct {
	models.Location
	Customer *models.Customer `json:"customer"`
}

// ManifestData is everything a manifest renderer needs for one delivery
type ManifestData struct {
	Delivery *DeliveryView            `json:"delivery"`
	Scans    []models.ContainerHistory `json:"scans"`
}

func loadDeliveryView(ctx context.Context, store repository.Store, id string) (*DeliveryView, error) {
	d, err := loadEntity(ctx, store.Deliveries(), "delivery", id)
	if err != nil {
		return nil, err
	}
	return hydrateDelivery(ctx, store, d)
}

func hydrateDelivery(ctx context.Context, store repository.Store, d *models.Delivery) (*DeliveryView, error) {
	view := &DeliveryView{Delivery: *d}

	var err error
	if view.Customer, err = optional(ctx, store.Customers(), &d.CustomerID); err != nil {
		return nil, err
	}
	if view.Driver, err = optional(ctx, store.Drivers(), d.DriverID); err != nil {
		return nil, err
	}
	if view.Vehicle, err = optional(ctx, store.Vehicles(), d.VehicleID); err != nil {
		return nil, err
	}
	if view.Location, err = optional(ctx, store.Locations(), d.LocationID); err != nil {
		return nil, err
	}

	links, err := store.DeliveryContainers().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"delivery_id": d.ID},
		OrderBy: "position",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery containers: %w", err)
	}
	view.Containers = make([]models.Container, 0, len(links))
	for _, link := range links {
		c, err := optional(ctx, store.Containers(), &link.ContainerID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			log.Warn().Str("deliveryID", d.ID).Str("containerID", link.ContainerID).Msg("Delivery references a missing container")
			continue
		}
		view.Containers = append(view.Containers, *c)
	}

	view.StatusHistory, err = store.DeliveryHistory().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"delivery_id": d.ID},
		OrderBy: "sequence",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return view, nil
}

func loadContainerView(ctx context.Context, store repository.Store, id string) (*ContainerView, error) {
	c, err := loadEntity(ctx, store.Containers(), "container", id)
	if err != nil {
		return nil, err
	}
	return hydrateContainer(ctx, store, c)
}

func hydrateContainer(ctx context.Context, store repository.Store, c *models.Container) (*ContainerView, error) {
	customer, err := optional(ctx, store.Customers(), c.CurrentCustomerID)
	if err != nil {
		return nil, err
	}
	return &ContainerView{Container: *c, CurrentCustomer: customer}, nil
}

// optional loads a related entity, yielding nil when the reference is unset
// or no longer resolves
func optional[T any](ctx context.Context, repo repository.Repository[T], id *string) (*T, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	e, err := repo.FindByID(ctx, *id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate %s: %w", *id, err)
	}
	return e, nil
}

// openDeliveryStatuses are the non-terminal delivery statuses
func openDeliveryStatuses() []domain.DeliveryStatus {
	var open []domain.DeliveryStatus
	for _, s := range domain.DeliveryStatuses {
		if !s.IsTerminal() {
			open = append(open, s)
		}
	}
	return open
}
