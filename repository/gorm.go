package repository

import (
	"context"
	"errors"
	"fmt"

	"example.com/backstage/services/fleet/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the postgres backed Store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithTransaction runs fn inside a database transaction. Any error returned by
// fn rolls the transaction back.
func (s *GormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormStore{db: tx})
	})
}

func (s *GormStore) Customers() Repository[models.Customer] {
	return &gormRepository[models.Customer]{db: s.db}
}

func (s *GormStore) Locations() Repository[models.Location] {
	return &gormRepository[models.Location]{db: s.db}
}

func (s *GormStore) Vehicles() Repository[models.Vehicle] {
	return &gormRepository[models.Vehicle]{db: s.db}
}

func (s *GormStore) Drivers() Repository[models.Driver] {
	return &gormRepository[models.Driver]{db: s.db}
}

func (s *GormStore) Deliveries() Repository[models.Delivery] {
	return &gormRepository[models.Delivery]{db: s.db}
}

func (s *GormStore) DeliveryContainers() Repository[models.DeliveryContainer] {
	return &gormRepository[models.DeliveryContainer]{db: s.db}
}

func (s *GormStore) DeliveryHistory() Repository[models.DeliveryStatusEntry] {
	return &gormRepository[models.DeliveryStatusEntry]{db: s.db}
}

func (s *GormStore) Containers() Repository[models.Container] {
	return &gormRepository[models.Container]{db: s.db}
}

func (s *GormStore) ContainerHistory() Repository[models.ContainerHistory] {
	return &gormRepository[models.ContainerHistory]{db: s.db}
}

func (s *GormStore) Incidents() Repository[models.Incident] {
	return &gormRepository[models.Incident]{db: s.db}
}

func (s *GormStore) IncidentComments() Repository[models.IncidentComment] {
	return &gormRepository[models.IncidentComment]{db: s.db}
}

func (s *GormStore) Inspections() Repository[models.VehicleInspection] {
	return &gormRepository[models.VehicleInspection]{db: s.db}
}

func (s *GormStore) Maintenance() Repository[models.MaintenanceRecord] {
	return &gormRepository[models.MaintenanceRecord]{db: s.db}
}

func (s *GormStore) Events() Repository[models.Event] {
	return &gormRepository[models.Event]{db: s.db}
}

type gormRepository[T any] struct {
	db *gorm.DB
}

func (r *gormRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, translateError(err)
	}
	return &entity, nil
}

func (r *gormRepository[T]) FindMany(ctx context.Context, q Query) ([]T, error) {
	tx := r.db.WithContext(ctx).Model(new(T))
	if len(q.Where) > 0 {
		tx = tx.Where(q.Where)
	}
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	} else {
		tx = tx.Order("created_at")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var entities []T
	if err := tx.Find(&entities).Error; err != nil {
		return nil, translateError(err)
	}
	return entities, nil
}

func (r *gormRepository[T]) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	tx := r.db.WithContext(ctx).Model(new(T))
	if len(where) > 0 {
		tx = tx.Where(where)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *gormRepository[T]) Exists(ctx context.Context, where map[string]interface{}, excludeID string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(new(T)).Where(where)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var count int64
	if err := tx.Limit(1).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *gormRepository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *gormRepository[T]) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository[T]) UpdateWhere(ctx context.Context, id string, guard, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Where(guard).Updates(fields)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository[T]) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository[T]) DeleteWhere(ctx context.Context, where map[string]interface{}) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("refusing to delete without conditions")
	}
	res := r.db.WithContext(ctx).Where(where).Delete(new(T))
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}
