package memory

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

func newContainer(id, barcode string, status domain.ContainerStatus) *models.Container {
	return &models.Container{
		ID:       id,
		Barcode:  barcode,
		Type:     domain.ContainerReusable,
		Capacity: 60,
		Status:   status,
		Version:  1,
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	c := newContainer("c-1", "BC-001", domain.ContainerAvailable)
	require.NoError(t, store.Containers().Create(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())

	found, err := store.Containers().FindByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "BC-001", found.Barcode)
	assert.Equal(t, domain.ContainerAvailable, found.Status)

	_, err = store.Containers().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUniqueColumns(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)))
	err := store.Containers().Create(ctx, newContainer("c-2", "BC-001", domain.ContainerAvailable))
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	require.NoError(t, store.Containers().Create(ctx, newContainer("c-3", "BC-003", domain.ContainerAvailable)))
	err = store.Containers().UpdateFields(ctx, "c-3", map[string]interface{}{"barcode": "BC-001"})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	exists, err := store.Containers().Exists(ctx, map[string]interface{}{"barcode": "BC-001"}, "c-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Containers().Exists(ctx, map[string]interface{}{"barcode": "BC-001"}, "c-3")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNullUniqueValuesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Customers().Create(ctx, &models.Customer{ID: "a", Name: "A"}))
	require.NoError(t, store.Customers().Create(ctx, &models.Customer{ID: "b", Name: "B"}))
}

func TestFindManyFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Containers().Create(ctx, newContainer("c-1", "BC-003", domain.ContainerAvailable)))
	require.NoError(t, store.Containers().Create(ctx, newContainer("c-2", "BC-001", domain.ContainerInUse)))
	require.NoError(t, store.Containers().Create(ctx, newContainer("c-3", "BC-002", domain.ContainerAvailable)))

	available, err := store.Containers().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"status": domain.ContainerAvailable},
		OrderBy: "barcode",
	})
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "BC-002", available[0].Barcode)
	assert.Equal(t, "BC-003", available[1].Barcode)

	all, err := store.Containers().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"status": []domain.ContainerStatus{domain.ContainerInUse, domain.ContainerAvailable}},
		OrderBy: "barcode",
		Desc:    true,
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BC-002", all[0].Barcode)
	assert.Equal(t, "BC-001", all[1].Barcode)

	count, err := store.Containers().Count(ctx, map[string]interface{}{"current_customer_id": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = store.Containers().FindMany(ctx, repository.Query{Where: map[string]interface{}{"colour": "red"}})
	assert.Error(t, err)
}

func TestOrderByTime(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, 500 * time.Millisecond, -time.Second} {
		entry := &models.DeliveryStatusEntry{
			ID:         []string{"h-1", "h-2", "h-3"}[i],
			DeliveryID: "d-1",
			Status:     domain.DeliveryScheduled,
			Timestamp:  base.Add(offset),
		}
		require.NoError(t, store.DeliveryHistory().Create(ctx, entry))
	}

	entries, err := store.DeliveryHistory().FindMany(ctx, repository.Query{OrderBy: "timestamp"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "h-3", entries[0].ID)
	assert.Equal(t, "h-1", entries[1].ID)
	assert.Equal(t, "h-2", entries[2].ID)
}

func TestUpdateWhereGuard(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)))

	guard := map[string]interface{}{"status": domain.ContainerAvailable, "version": 1}
	fields := map[string]interface{}{"status": domain.ContainerInUse, "version": 2}

	ok, err := store.Containers().UpdateWhere(ctx, "c-1", guard, fields)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Containers().UpdateWhere(ctx, "c-1", guard, fields)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := store.Containers().FindByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContainerInUse, c.Status)
	assert.Equal(t, 2, c.Version)
}

func TestUpdateFieldsRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)))

	err := store.Containers().UpdateFields(ctx, "c-1", map[string]interface{}{"colour": "red"})
	assert.Error(t, err)

	err = store.Containers().UpdateFields(ctx, "missing", map[string]interface{}{"capacity": 10})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Containers().UpdateFields(ctx, "c-1", map[string]interface{}{"status": domain.ContainerDisposed}); err != nil {
			return err
		}
		if err := tx.ContainerHistory().Create(ctx, &models.ContainerHistory{ID: "h-1", ContainerID: "c-1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := store.Containers().FindByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContainerAvailable, c.Status)

	count, err := store.ContainerHistory().Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)); err != nil {
			return err
		}
		// nested transactions join the outer one
		return tx.WithTransaction(ctx, func(ctx context.Context, inner repository.Store) error {
			return inner.ContainerHistory().Create(ctx, &models.ContainerHistory{ID: "h-1", ContainerID: "c-1"})
		})
	})
	require.NoError(t, err)

	_, err = store.Containers().FindByID(ctx, "c-1")
	assert.NoError(t, err)
	count, err := store.ContainerHistory().Count(ctx, map[string]interface{}{"container_id": "c-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTransactionExpiredContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Containers().Create(ctx, newContainer("c-1", "BC-001", domain.ContainerAvailable)); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = store.Containers().FindByID(context.Background(), "c-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteWhere(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for i, id := range []string{"l-1", "l-2", "l-3"} {
		link := &models.DeliveryContainer{ID: id, DeliveryID: "d-1", ContainerID: id, Position: i}
		if id == "l-3" {
			link.DeliveryID = "d-2"
		}
		require.NoError(t, store.DeliveryContainers().Create(ctx, link))
	}

	deleted, err := store.DeliveryContainers().DeleteWhere(ctx, map[string]interface{}{"delivery_id": "d-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.DeliveryContainers().DeleteWhere(ctx, nil)
	assert.Error(t, err)

	assert.ErrorIs(t, store.DeliveryContainers().Delete(ctx, "l-1"), repository.ErrNotFound)
	assert.NoError(t, store.DeliveryContainers().Delete(ctx, "l-3"))
}
