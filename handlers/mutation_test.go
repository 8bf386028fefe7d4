package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingStore blocks every read made outside a transaction until the
// context is done. Transactions see the wrapped store unchanged.
type stallingStore struct {
	repository.Store
}

func (s stallingStore) Deliveries() repository.Repository[models.Delivery] {
	return stallingRepo[models.Delivery]{s.Store.Deliveries()}
}

func (s stallingStore) Containers() repository.Repository[models.Container] {
	return stallingRepo[models.Container]{s.Store.Containers()}
}

type stallingRepo[T any] struct {
	repository.Repository[T]
}

func (r stallingRepo[T]) FindByID(ctx context.Context, _ string) (*T, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r stallingRepo[T]) FindMany(ctx context.Context, _ repository.Query) ([]T, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingHistoryStore hands transactions history tables that refuse writes
type failingHistoryStore struct {
	repository.Store
}

func (s failingHistoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, failingHistoryStore{tx})
	})
}

func (s failingHistoryStore) DeliveryHistory() repository.Repository[models.DeliveryStatusEntry] {
	return failingCreate[models.DeliveryStatusEntry]{s.Store.DeliveryHistory()}
}

func (s failingHistoryStore) ContainerHistory() repository.Repository[models.ContainerHistory] {
	return failingCreate[models.ContainerHistory]{s.Store.ContainerHistory()}
}

type failingCreate[T any] struct {
	repository.Repository[T]
}

func (failingCreate[T]) Create(context.Context, *T) error {
	return errors.New("disk full")
}

func TestCommittedMutationNeverTimesOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.customer(t, "Clinic")
	c := f.container(t, "BARCODE-001")
	d := f.delivery(t, customer.ID, c.ID)

	opts := Options{Timeout: 50 * time.Millisecond, Clock: func() time.Time { return fixedNow }}
	store := stallingStore{f.store}
	deliveries := NewDeliveryHandler(store, opts)
	containers := NewContainerHandler(store, opts)

	view, err := deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: d.ID, Status: domain.DeliveryInTransit, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryInTransit, view.Status)
	assert.Len(t, view.StatusHistory, 2)

	result, err := containers.HandleRecordAction(ctx, RecordContainerActionCommand{
		ContainerID: c.ID,
		Action:      domain.ActionDelivered,
		ActorID:     actor,
		CustomerID:  &customer.ID,
		DeliveryID:  &d.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDelivered, result.History.Action)

	stored, err := f.store.Containers().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Status, result.Container.Status)
	assert.Equal(t, stored.Version, result.Container.Version)

	scans, err := f.store.ContainerHistory().Count(ctx, map[string]interface{}{"container_id": c.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, scans)
}

func TestHistoryWriteFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.customer(t, "Clinic")
	c := f.container(t, "BARCODE-001")
	d := f.delivery(t, customer.ID, c.ID)

	opts := Options{Timeout: time.Second, Clock: func() time.Time { return fixedNow }}
	store := failingHistoryStore{f.store}
	deliveries := NewDeliveryHandler(store, opts)
	containers := NewContainerHandler(store, opts)

	eventsBefore, err := f.store.Events().Count(ctx, nil)
	require.NoError(t, err)

	_, err = deliveries.HandleTransition(ctx, TransitionDeliveryCommand{DeliveryID: d.ID, Status: domain.DeliveryInTransit, ActorID: actor})
	requireKind(t, err, domain.KindInternal)

	delivery, err := f.store.Deliveries().FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryScheduled, delivery.Status)
	assert.Equal(t, d.Version, delivery.Version)
	entries, err := f.store.DeliveryHistory().Count(ctx, map[string]interface{}{"delivery_id": d.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, entries)

	_, err = containers.HandleRecordAction(ctx, RecordContainerActionCommand{
		ContainerID: c.ID,
		Action:      domain.ActionDelivered,
		ActorID:     actor,
		CustomerID:  &customer.ID,
	})
	requireKind(t, err, domain.KindInternal)

	container, err := f.store.Containers().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Status, container.Status)
	assert.Equal(t, c.Version, container.Version)
	assert.Nil(t, container.CurrentCustomerID)

	eventsAfter, err := f.store.Events().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, eventsBefore, eventsAfter)
}
