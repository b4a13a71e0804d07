package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	clientmodel "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/database"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/repository"
)

// MockActivityClient is a mock implementation of ActivityClient that records events
type MockActivityClient struct {
	PublishBatchFunc func(ctx context.Context, events []client.ActivityEvent) error

	mu     sync.Mutex
	events []client.ActivityEvent
}

func (m *MockActivityClient) Publish(ctx context.Context, event client.ActivityEvent) error {
	return m.PublishBatch(ctx, []client.ActivityEvent{event})
}

func (m *MockActivityClient) PublishBatch(ctx context.Context, events []client.ActivityEvent) error {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	if m.PublishBatchFunc != nil {
		return m.PublishBatchFunc(ctx, events)
	}
	return nil
}

func (m *MockActivityClient) Events() []client.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]client.ActivityEvent(nil), m.events...)
}

func (m *MockActivityClient) EventsOfType(t client.ActivityType) []client.ActivityEvent {
	var result []client.ActivityEvent
	for _, e := range m.Events() {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

type testEnv struct {
	db       *gorm.DB
	store    *repository.Store
	activity *MockActivityClient
	metrics  *metrics.Metrics
	locker   lock.Locker
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(database.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return &testEnv{
		db:       db,
		store:    repository.NewStore(db),
		activity: &MockActivityClient{},
		metrics:  metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop()),
		locker:   lock.NewLocalLocker(),
	}
}

func (e *testEnv) instanceService() FFEInstanceService {
	return NewFFEInstanceService(e.store, e.locker, e.activity, e.metrics, zap.NewNop())
}

func (e *testEnv) itemService() FFEItemService {
	return NewFFEItemService(e.store, e.locker, e.activity, e.metrics, zap.NewNop())
}

func (e *testEnv) cleanupService() StageCleanupService {
	return NewStageCleanupService(e.store, e.locker, e.activity, e.metrics, zap.NewNop())
}

func (e *testEnv) stageService() StageService {
	return NewStageService(e.store, e.locker, e.activity, zap.NewNop())
}

func seedRoom(t *testing.T, e *testEnv, orgID uuid.UUID) *domain.Room {
	t.Helper()
	room := &domain.Room{OrganizationID: orgID, ProjectID: uuid.New(), Name: "Primary Bath", RoomType: "BATHROOM"}
	require.NoError(t, e.store.Rooms.Create(context.Background(), room))
	return room
}

// bathTemplate is a vanity with three "Custom" sub-items, a per-sink towel bar and a mirror
type bathTemplate struct {
	template *domain.FFETemplate
	vanity   uuid.UUID
	cabinet  uuid.UUID
	handles  uuid.UUID
	counter  uuid.UUID
	towelBar uuid.UUID
	mirror   uuid.UUID
}

func newBathTemplate(orgID uuid.UUID, sinks int) *bathTemplate {
	bt := &bathTemplate{
		vanity:   uuid.New(),
		cabinet:  uuid.New(),
		handles:  uuid.New(),
		counter:  uuid.New(),
		towelBar: uuid.New(),
		mirror:   uuid.New(),
	}

	templateID := uuid.New()
	fixturesID := uuid.New()
	accessoriesID := uuid.New()

	subItem := func(id uuid.UUID, name string, order int) domain.FFETemplateItem {
		return domain.FFETemplateItem{
			BaseModel:        domain.BaseModel{ID: id},
			SectionID:        fixturesID,
			Name:             name,
			DisplayOrder:     order,
			QuantityMode:     domain.QuantityModeFixed,
			DefaultQuantity:  1,
			VisibilityMode:   domain.VisibilityParentOption,
			VisibilityOption: "Custom",
		}
	}

	bt.template = &domain.FFETemplate{
		BaseModel:      domain.BaseModel{ID: templateID},
		OrganizationID: orgID,
		Name:           "Bathroom",
		IsActive:       true,
		Sections: []domain.FFETemplateSection{
			{
				BaseModel:    domain.BaseModel{ID: fixturesID},
				TemplateID:   templateID,
				Name:         "Fixtures",
				DisplayOrder: 0,
				Items: []domain.FFETemplateItem{
					{
						BaseModel:       domain.BaseModel{ID: bt.vanity},
						SectionID:       fixturesID,
						Name:            "Vanity",
						DisplayOrder:    0,
						QuantityMode:    domain.QuantityModeFixed,
						DefaultQuantity: 1,
						Options:         datatypes.JSONSlice[string]{"Standard", "Custom"},
						VisibilityMode:  domain.VisibilityAlways,
						LinkedItemIDs:   datatypes.JSONSlice[uuid.UUID]{bt.cabinet, bt.handles, bt.counter},
					},
					subItem(bt.cabinet, "Cabinet", 1),
					subItem(bt.handles, "Handles", 2),
					subItem(bt.counter, "Counter", 3),
				},
			},
			{
				BaseModel:    domain.BaseModel{ID: accessoriesID},
				TemplateID:   templateID,
				Name:         "Accessories",
				DisplayOrder: 1,
				Items: []domain.FFETemplateItem{
					{
						BaseModel:       domain.BaseModel{ID: bt.towelBar},
						SectionID:       accessoriesID,
						Name:            "Towel Bar",
						DisplayOrder:    0,
						QuantityMode:    domain.QuantityModePerSubUnit,
						DefaultQuantity: sinks,
						SubUnitLabel:    "Sink",
						VisibilityMode:  domain.VisibilityAlways,
					},
					{
						BaseModel:       domain.BaseModel{ID: bt.mirror},
						SectionID:       accessoriesID,
						Name:            "Mirror",
						DisplayOrder:    1,
						QuantityMode:    domain.QuantityModeFixed,
						DefaultQuantity: 1,
						Options:         datatypes.JSONSlice[string]{"Framed", "Frameless"},
						VisibilityMode:  domain.VisibilityAlways,
					},
				},
			},
		},
	}
	return bt
}

func seedBathTemplate(t *testing.T, e *testEnv, orgID uuid.UUID, sinks int) *bathTemplate {
	t.Helper()
	bt := newBathTemplate(orgID, sinks)
	require.NoError(t, e.db.Create(bt.template).Error)
	return bt
}

// flattenItems lists every item of an instance tree, sub-items included
func flattenItems(t *testing.T, e *testEnv, roomID uuid.UUID) []*domain.RoomFFEItem {
	t.Helper()
	instance, err := e.store.Instances.FindByRoomID(context.Background(), roomID)
	require.NoError(t, err)
	items, err := e.store.Items.FindByInstanceID(context.Background(), instance.ID)
	require.NoError(t, err)
	return items
}

func itemsNamed(items []*domain.RoomFFEItem, name string) []*domain.RoomFFEItem {
	var result []*domain.RoomFFEItem
	for _, item := range items {
		if item.Name == name {
			result = append(result, item)
		}
	}
	return result
}

func childrenOf(items []*domain.RoomFFEItem, parentID uuid.UUID) []*domain.RoomFFEItem {
	var result []*domain.RoomFFEItem
	for _, item := range items {
		if item.ParentItemID != nil && *item.ParentItemID == parentID {
			result = append(result, item)
		}
	}
	return result
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric clientmodel.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}
