package projections

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"example.com/backstage/services/fleet/config"
	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/handlers"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexedDoc struct {
	index string
	id    string
	doc   map[string]interface{}
}

type fakeIndexer struct {
	mu      sync.Mutex
	docs    []indexedDoc
	failFor string
}

func (f *fakeIndexer) Index(_ context.Context, index, id string, doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor != "" && id == f.failFor {
		return errors.New("cluster unavailable")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(doc, &m); err != nil {
		return err
	}
	f.docs = append(f.docs, indexedDoc{index: index, id: id, doc: m})
	return nil
}

func (f *fakeIndexer) byIndex(index string) []indexedDoc {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []indexedDoc
	for _, d := range f.docs {
		if d.index == index {
			out = append(out, d)
		}
	}
	return out
}

type countingObserver struct {
	ok, failed int
}

func (c *countingObserver) RecordProjection(_ string, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

var elasticCfg = config.ElasticConfig{Prefix: "test"}

func saveEvent(t *testing.T, store *memory.Store, id, eventType string, at time.Time, data interface{}) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, store.Events().Create(context.Background(), &models.Event{
		ID:            id,
		AggregateID:   "agg-" + id,
		AggregateType: domain.AggregateDelivery,
		EventType:     eventType,
		Data:          raw,
		Version:       1,
		ActorID:       "dispatcher-1",
		Timestamp:     at,
	}))
}

func TestProjectorRoutesEvents(t *testing.T) {
	indexer := &fakeIndexer{}
	p := NewProjector(indexer, elasticCfg)
	ctx := context.Background()

	status, _ := json.Marshal(domain.DeliveryStatusChangedEvent{
		DeliveryID: "d-1",
		From:       domain.DeliveryScheduled,
		To:         domain.DeliveryInTransit,
		UpdatedBy:  "driver-7",
	})
	require.NoError(t, p.Project(ctx, models.Event{ID: "e-1", EventType: domain.DeliveryStatusChanged, Data: status}))

	scan, _ := json.Marshal(domain.ContainerActionRecordedEvent{
		ContainerID: "c-1",
		HistoryID:   "h-1",
		Action:      domain.ActionCollected,
	})
	require.NoError(t, p.Project(ctx, models.Event{ID: "e-2", EventType: domain.ContainerActionRecorded, Data: scan}))

	require.NoError(t, p.Project(ctx, models.Event{ID: "e-3", EventType: domain.CustomerSaved, Data: json.RawMessage(`{}`)}))

	assert.Len(t, indexer.byIndex("test-fleet-events"), 3)

	history := indexer.byIndex("test-delivery-history")
	require.Len(t, history, 1)
	assert.Equal(t, "e-1", history[0].id)
	assert.Equal(t, "in_transit", history[0].doc["to"])

	scans := indexer.byIndex("test-container-history")
	require.Len(t, scans, 1)
	assert.Equal(t, "h-1", scans[0].id)
}

func TestProjectorRejectsMalformedData(t *testing.T) {
	p := NewProjector(&fakeIndexer{}, elasticCfg)

	err := p.Project(context.Background(), models.Event{
		ID:        "e-1",
		EventType: domain.DeliveryStatusChanged,
		Data:      json.RawMessage(`"not an object"`),
	})
	assert.Error(t, err)
}

func TestProcessBatchMarksEvents(t *testing.T) {
	store := memory.NewStore()
	indexer := &fakeIndexer{failFor: "e-2"}
	observer := &countingObserver{}
	processor := NewEventProcessor(store, NewProjector(indexer, elasticCfg), 10, observer, nil)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	saveEvent(t, store, "e-1", domain.DeliveryCreated, base, map[string]string{"id": "d-1"})
	saveEvent(t, store, "e-2", domain.DeliveryUpdated, base.Add(time.Minute), map[string]string{"id": "d-1"})

	n, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, observer.ok)
	assert.Equal(t, 1, observer.failed)

	first, err := store.Events().FindByID(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, first.Processed)
	assert.Nil(t, first.Error)

	second, err := store.Events().FindByID(ctx, "e-2")
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.False(t, second.Parked)
	assert.Equal(t, 1, second.Attempts)
	require.NotNil(t, second.Error)
	assert.Contains(t, *second.Error, "cluster unavailable")

	indexer.failFor = ""
	n, err = processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, err = store.Events().FindByID(ctx, "e-2")
	require.NoError(t, err)
	assert.True(t, second.Processed)
	assert.Nil(t, second.Error)

	n, err = processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchParksPoisonEvents(t *testing.T) {
	store := memory.NewStore()
	indexer := &fakeIndexer{failFor: "e-bad"}
	observer := &countingObserver{}
	processor := NewEventProcessor(store, NewProjector(indexer, elasticCfg), 1, observer, nil).WithMaxAttempts(3)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	saveEvent(t, store, "e-bad", domain.DeliveryStatusChanged, base, map[string]string{"id": "d-1"})
	saveEvent(t, store, "e-good", domain.DeliveryCreated, base.Add(time.Minute), map[string]string{"id": "d-1"})

	for i := 0; i < 3; i++ {
		n, err := processor.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "run %d", i)
	}
	assert.Empty(t, indexer.byIndex("test-fleet-events"))

	bad, err := store.Events().FindByID(ctx, "e-bad")
	require.NoError(t, err)
	assert.True(t, bad.Parked)
	assert.False(t, bad.Processed)
	assert.Equal(t, 3, bad.Attempts)
	require.NotNil(t, bad.Error)

	n, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	projected := indexer.byIndex("test-fleet-events")
	require.Len(t, projected, 1)
	assert.Equal(t, "e-good", projected[0].id)
	assert.Equal(t, 3, observer.failed)
	assert.Equal(t, 1, observer.ok)

	n, err = processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRespectsBatchSize(t *testing.T) {
	store := memory.NewStore()
	indexer := &fakeIndexer{}
	processor := NewEventProcessor(store, NewProjector(indexer, elasticCfg), 2, nil, nil)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"e-3", "e-1", "e-2"} {
		saveEvent(t, store, id, domain.DeliveryCreated, base.Add(time.Duration(3-i)*time.Minute), map[string]string{})
	}

	n, err := processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	projected := indexer.byIndex("test-fleet-events")
	require.Len(t, projected, 2)
	assert.Equal(t, "e-2", projected[0].id)
	assert.Equal(t, "e-1", projected[1].id)
}

func TestProjectsHandlerEvents(t *testing.T) {
	store := memory.NewStore()
	opts := handlers.Options{Timeout: 5 * time.Second}
	customers := handlers.NewCustomerHandler(store, opts)
	deliveries := handlers.NewDeliveryHandler(store, opts)
	ctx := context.Background()

	customer, err := customers.HandleCreateCustomer(ctx, handlers.CreateCustomerCommand{
		ActorID:       "ops",
		CustomerInput: handlers.CustomerInput{Name: "Riverside Clinic"},
	})
	require.NoError(t, err)
	delivery, err := deliveries.HandleCreateDelivery(ctx, handlers.CreateDeliveryCommand{
		ActorID:       "ops",
		CustomerID:    customer.ID,
		ScheduledDate: time.Now().Add(time.Hour),
		Type:          domain.DeliveryTypePickup,
	})
	require.NoError(t, err)
	_, err = deliveries.HandleTransition(ctx, handlers.TransitionDeliveryCommand{
		DeliveryID: delivery.ID,
		Status:     domain.DeliveryInTransit,
		ActorID:    "driver-7",
	})
	require.NoError(t, err)

	indexer := &fakeIndexer{}
	processor := NewEventProcessor(store, NewProjector(indexer, elasticCfg), 0, nil, nil)
	_, err = processor.ProcessBatch(ctx)
	require.NoError(t, err)

	history := indexer.byIndex("test-delivery-history")
	require.Len(t, history, 1)
	assert.Equal(t, delivery.ID, history[0].doc["delivery_id"])
	assert.Equal(t, "driver-7", history[0].doc["updated_by"])

	remaining, err := store.Events().Count(ctx, map[string]interface{}{"processed": false})
	require.NoError(t, err)
	assert.Zero(t, remaining)
}
