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

// CustomerInput holds the writable attributes of a customer
type CustomerInput struct {
	Name                string  `json:"name" validate:"required"`
	ContactPerson       string  `json:"contact_person"`
	Email               *string `json:"email" validate:"omitempty,email"`
	Phone               string  `json:"phone"`
	Whatsapp            string  `json:"whatsapp"`
	Address             string  `json:"address"`
	Status              string  `json:"status" validate:"omitempty,oneof=active inactive"`
	SpecialRequirements string  `json:"special_requirements"`
}

func (in CustomerInput) fields() map[string]interface{} {
	status := in.Status
	if status == "" {
		status = "active"
	}
	return map[string]interface{}{
		"name":                 in.Name,
		"contact_person":       in.ContactPerson,
		"email":                emptyToNil(in.Email),
		"phone":                in.Phone,
		"whatsapp":             in.Whatsapp,
		"address":              in.Address,
		"status":               status,
		"special_requirements": in.SpecialRequirements,
	}
}

// Command structs
type CreateCustomerCommand struct {
	ActorID string `json:"actor_id" validate:"required"`
	CustomerInput
}

// UpdateCustomerCommand replaces every writable attribute of a customer
type UpdateCustomerCommand struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
	CustomerInput
}

type DeleteCustomerCommand struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
}

// ArchiveCustomerCommand retires a customer that has delivery history and so
// cannot be deleted
type ArchiveCustomerCommand struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
}

var customerList = listSpec{
	filters:     []string{"status", "email", "name"},
	sorts:       []string{"name", "created_at", "updated_at", "status"},
	defaultSort: "name",
}

// CustomerHandler handles all customer-related commands
type CustomerHandler struct {
	base
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(store repository.Store, opts Options) *CustomerHandler {
	return &CustomerHandler{base: newBase(store, opts)}
}

// HandleCreateCustomer registers a new customer
func (h *CustomerHandler) HandleCreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*models.Customer, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("name", cmd.Name).Str("actorID", cmd.ActorID).Msg("Handling CreateCustomer command")

	var customer *models.Customer
	err := h.mutate(ctx, "customer", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx.Customers(), "customer", "email", cmd.Email, ""); err != nil {
			return err
		}

		now := h.now()
		fields := cmd.fields()
		customer = &models.Customer{
			ID:                  newID(),
			Name:                cmd.Name,
			ContactPerson:       cmd.ContactPerson,
			Email:               emptyToNil(cmd.Email),
			Phone:               cmd.Phone,
			Whatsapp:            cmd.Whatsapp,
			Address:             cmd.Address,
			Status:              fields["status"].(string),
			SpecialRequirements: cmd.SpecialRequirements,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.Customers().Create(ctx, customer); err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}

		err := recordEvent(ctx, tx, domain.Event{
			AggregateID:   customer.ID,
			AggregateType: domain.AggregateCustomer,
			Type:          domain.CustomerSaved,
			Version:       1,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          customer,
		})
		if err != nil {
			return err
		}

		customer, err = loadEntity(ctx, tx.Customers(), "customer", customer.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// HandleUpdateCustomer replaces the attributes of a customer
func (h *CustomerHandler) HandleUpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (*models.Customer, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("customerID", cmd.CustomerID).Str("actorID", cmd.ActorID).Msg("Handling UpdateCustomer command")

	var customer *models.Customer
	err := h.mutate(ctx, "customer", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Customers(), "customer", cmd.CustomerID)
		if err != nil {
			return err
		}
		if c.Status == domain.CustomerArchivedStatus {
			return domain.Conflict("customer %s is archived", c.ID)
		}
		if err := ensureUnique(ctx, tx.Customers(), "customer", "email", cmd.Email, c.ID); err != nil {
			return err
		}

		now := h.now()
		fields := cmd.fields()
		fields["updated_at"] = now
		if err := tx.Customers().UpdateFields(ctx, c.ID, fields); err != nil {
			return fmt.Errorf("failed to update customer: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateCustomer,
			Type:          domain.CustomerSaved,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		customer, err = loadEntity(ctx, tx.Customers(), "customer", c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateCustomer(ctx, cmd.CustomerID)
	return customer, nil
}

// HandleArchiveCustomer marks a customer archived. Archived customers keep
// their history but take no new deliveries or locations. Archiving twice is
// a no-op.
func (h *CustomerHandler) HandleArchiveCustomer(ctx context.Context, cmd ArchiveCustomerCommand) (*models.Customer, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("customerID", cmd.CustomerID).Str("actorID", cmd.ActorID).Msg("Handling ArchiveCustomer command")

	var customer *models.Customer
	err := h.mutate(ctx, "customer", "archive", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Customers(), "customer", cmd.CustomerID)
		if err != nil {
			return err
		}
		if c.Status == domain.CustomerArchivedStatus {
			customer = c
			return nil
		}

		open, err := tx.Deliveries().Count(ctx, map[string]interface{}{
			"customer_id": c.ID,
			"status":      openDeliveryStatuses(),
		})
		if err != nil {
			return fmt.Errorf("failed to count open deliveries: %w", err)
		}
		if open > 0 {
			return domain.Conflict("customer %s has %d open deliveries", c.ID, open)
		}

		now := h.now()
		fields := map[string]interface{}{
			"status":     domain.CustomerArchivedStatus,
			"updated_at": now,
		}
		if err := tx.Customers().UpdateFields(ctx, c.ID, fields); err != nil {
			return fmt.Errorf("failed to archive customer: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateCustomer,
			Type:          domain.CustomerArchived,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		customer, err = loadEntity(ctx, tx.Customers(), "customer", c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.invalidateCustomer(ctx, cmd.CustomerID)
	return customer, nil
}

// HandleDeleteCustomer removes a customer that no delivery, scan or
// container refers to. Its service locations go with it.
func (h *CustomerHandler) HandleDeleteCustomer(ctx context.Context, cmd DeleteCustomerCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("customerID", cmd.CustomerID).Str("actorID", cmd.ActorID).Msg("Handling DeleteCustomer command")

	err := h.mutate(ctx, "customer", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		c, err := loadEntity(ctx, tx.Customers(), "customer", cmd.CustomerID)
		if err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Deliveries(), "customer", c.ID, "deliveries", map[string]interface{}{"customer_id": c.ID}); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.Containers(), "customer", c.ID, "containers in custody", map[string]interface{}{"current_customer_id": c.ID}); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx.ContainerHistory(), "customer", c.ID, "container history entries", map[string]interface{}{"customer_id": c.ID}); err != nil {
			return err
		}
		if _, err := tx.Locations().DeleteWhere(ctx, map[string]interface{}{"customer_id": c.ID}); err != nil {
			return fmt.Errorf("failed to delete customer locations: %w", err)
		}
		if err := tx.Customers().Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete customer: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   c.ID,
			AggregateType: domain.AggregateCustomer,
			Type:          domain.CustomerDeleted,
			ActorID:       cmd.ActorID,
			Timestamp:     h.now(),
			Data:          c,
		})
	})
	if err != nil {
		return err
	}

	h.invalidateCustomer(ctx, cmd.CustomerID)
	return nil
}

// GetCustomer returns one customer
func (h *CustomerHandler) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	c, err := loadEntity(ctx, h.store.Customers(), "customer", id)
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// ListCustomers returns customers matching opts
func (h *CustomerHandler) ListCustomers(ctx context.Context, opts ListOptions) ([]models.Customer, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := customerList.query(opts)
	if err != nil {
		return nil, err
	}
	customers, err := h.store.Customers().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return customers, nil
}

// invalidateCustomer drops cached views that hydrate the customer
func (h *CustomerHandler) invalidateCustomer(ctx context.Context, id string) {
	h.invalidateReferencing(ctx, "customer_id", id)
	if !h.cacheEnabled() {
		return
	}
	ctx, cancel := h.afterCommit(ctx)
	defer cancel()

	containers, err := h.store.Containers().FindMany(ctx, repository.Query{
		Where: map[string]interface{}{"current_customer_id": id},
	})
	if err != nil {
		log.Warn().Err(err).Str("customerID", id).Msg("Failed to find containers to invalidate")
		return
	}
	keys := make([]string, 0, len(containers))
	for _, c := range containers {
		keys = append(keys, cache.ContainerKey(c.ID))
	}
	h.invalidate(ctx, keys...)
}
