package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/internal/cache"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cache is the read-through cache used for hydrated views
type Cache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Observer receives the outcome of every mutation
type Observer interface {
	ObserveMutation(entity, operation, result string, d time.Duration)
}

// Options configures the command handlers
type Options struct {
	// Timeout bounds each operation. Views returned by mutations are read
	// inside the transaction, so a committed change never reports a timeout.
	Timeout time.Duration
	Cache   Cache
	Metrics Observer
	Clock   func() time.Time
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, interface{}) error {
	return errors.New("cache is disabled")
}

func (noopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (noopCache) Delete(context.Context, ...string) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveMutation(string, string, string, time.Duration) {}

// base carries the Entity Mutation Contract shared by every handler
type base struct {
	store   repository.Store
	cache   Cache
	metrics Observer
	timeout time.Duration
	now     func() time.Time
}

func newBase(store repository.Store, opts Options) base {
	b := base{
		store:   store,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
		now:     opts.Clock,
	}
	if b.cache == nil {
		b.cache = noopCache{}
	}
	if b.metrics == nil {
		b.metrics = noopObserver{}
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	return b
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// afterCommit bounds follow-up work on a committed mutation, such as cache
// invalidation, independently of the caller's deadline
func (b *base) afterCommit(ctx context.Context) (context.Context, context.CancelFunc) {
	return b.withTimeout(context.WithoutCancel(ctx))
}

// mutate runs fn as one transaction. Any error aborts the whole unit and is
// returned as a *domain.Error.
func (b *base) mutate(ctx context.Context, entity, operation string, fn func(ctx context.Context, tx repository.Store) error) error {
	start := time.Now()
	err := classify(b.store.WithTransaction(ctx, fn))

	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	b.metrics.ObserveMutation(entity, operation, result, time.Since(start))

	if err != nil {
		ev := log.Warn()
		if domain.KindOf(err) == domain.KindInternal {
			ev = log.Error()
		}
		ev.Err(err).Str("entity", entity).Str("operation", operation).Msg("Mutation failed")
	}
	return err
}

func (b *base) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := b.afterCommit(ctx)
	defer cancel()

	if err := b.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Failed to invalidate cache")
	}
}

func (b *base) cacheEnabled() bool {
	_, disabled := b.cache.(noopCache)
	return !disabled
}

// invalidateContainer drops a container and every delivery listing it
func (b *base) invalidateContainer(ctx context.Context, containerID string) {
	ctx, cancel := b.afterCommit(ctx)
	defer cancel()

	b.invalidate(ctx, b.containerKeys(ctx, containerID)...)
}

func (b *base) containerKeys(ctx context.Context, containerID string) []string {
	if !b.cacheEnabled() {
		return nil
	}
	keys := []string{cache.ContainerKey(containerID)}
	links, err := b.store.DeliveryContainers().FindMany(ctx, repository.Query{
		Where: map[string]interface{}{"container_id": containerID},
	})
	if err != nil {
		log.Warn().Err(err).Str("containerID", containerID).Msg("Failed to find deliveries to invalidate")
	}
	for _, link := range links {
		keys = append(keys, cache.DeliveryKey(link.DeliveryID))
	}
	return keys
}

// invalidateReferencing drops every cached delivery whose column equals id
func (b *base) invalidateReferencing(ctx context.Context, column, id string) {
	if !b.cacheEnabled() {
		return
	}
	ctx, cancel := b.afterCommit(ctx)
	defer cancel()

	deliveries, err := b.store.Deliveries().FindMany(ctx, repository.Query{
		Where: map[string]interface{}{column: id},
	})
	if err != nil {
		log.Warn().Err(err).Str(column, id).Msg("Failed to find deliveries to invalidate")
		return
	}
	keys := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		keys = append(keys, cache.DeliveryKey(d.ID))
	}
	b.invalidate(ctx, keys...)
}

// classify turns storage and context failures into typed errors
func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.Error{Kind: domain.KindTimeout, Message: "operation timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &domain.Error{Kind: domain.KindTimeout, Message: "operation cancelled", Err: err}
	case errors.Is(err, repository.ErrDuplicateKey):
		return &domain.Error{Kind: domain.KindConflict, Message: "unique constraint violated", Err: err}
	case errors.Is(err, repository.ErrNotFound):
		return &domain.Error{Kind: domain.KindNotFound, Message: "record not found", Err: err}
	default:
		return domain.Internal("internal error", err)
	}
}

// loadEntity loads the mutation target, failing with NotFound
func loadEntity[T any](ctx context.Context, repo repository.Repository[T], entity, id string) (*T, error) {
	e, err := repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", entity, err)
	}
	return e, nil
}

// requireReference checks that a foreign key resolves, failing with
// InvalidReference. Unset references are accepted.
func requireReference[T any](ctx context.Context, repo repository.Repository[T], entity string, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	_, err := repo.FindByID(ctx, *id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.InvalidReference(entity, *id)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", entity, err)
	}
	return nil
}

// ensureUnique fails with Conflict when another row already holds value
func ensureUnique[T any](ctx context.Context, repo repository.Repository[T], entity, column string, value interface{}, excludeID string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
	case *string:
		if v == nil || *v == "" {
			return nil
		}
		value = *v
	}
	exists, err := repo.Exists(ctx, map[string]interface{}{column: value}, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check %s uniqueness: %w", column, err)
	}
	if exists {
		return domain.Conflict("%s with %s %v already exists", entity, column, value)
	}
	return nil
}

// ensureUnreferenced fails with Conflict while any row of repo matches where.
// what names the referencing rows in the error.
func ensureUnreferenced[T any](ctx context.Context, repo repository.Repository[T], entity, id, what string, where map[string]interface{}) error {
	n, err := repo.Count(ctx, where)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", what, err)
	}
	if n > 0 {
		return domain.Conflict("%s %s is referenced by %d %s", entity, id, n, what)
	}
	return nil
}

// recordEvent appends an outbox row in the current transaction
func recordEvent(ctx context.Context, tx repository.Store, ev domain.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	row := &models.Event{
		ID:            ev.ID,
		AggregateID:   ev.AggregateID,
		AggregateType: ev.AggregateType,
		EventType:     ev.Type,
		Data:          data,
		Version:       ev.Version,
		ActorID:       ev.ActorID,
		Timestamp:     ev.Timestamp,
	}
	if err := tx.Events().Create(ctx, row); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	log.Debug().
		Str("eventID", row.ID).
		Str("aggregateID", row.AggregateID).
		Str("eventType", row.EventType).
		Msg("Event recorded")
	return nil
}

func newID() string {
	return uuid.NewString()
}
