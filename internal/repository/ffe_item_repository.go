package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// FFEItemRepository defines data access for room FFE items
type FFEItemRepository interface {
	CreateBatch(ctx context.Context, items []*domain.RoomFFEItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RoomFFEItem, error)
	FindByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]*domain.RoomFFEItem, error)
	FindByQuantityGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.RoomFFEItem, error)
	FindByParentIDs(ctx context.Context, parentIDs []uuid.UUID) ([]*domain.RoomFFEItem, error)
	UpdateWithVersion(ctx context.Context, item *domain.RoomFFEItem, fields map[string]interface{}) error
	UpdateVisibility(ctx context.Context, ids []uuid.UUID, visible bool) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

type ffeItemRepositoryImpl struct {
	db *gorm.DB
}

// NewFFEItemRepository creates a new instance of FFEItemRepository
func NewFFEItemRepository(db *gorm.DB) FFEItemRepository {
	return &ffeItemRepositoryImpl{db: db}
}

func itemsInDisplayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC").Order("sub_unit_index ASC").Order("created_at ASC").Order("id ASC")
}

// CreateBatch inserts items in batches
func (r *ffeItemRepositoryImpl) CreateBatch(ctx context.Context, items []*domain.RoomFFEItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&items, 100).Error
}

// FindByID finds an item by ID
func (r *ffeItemRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.RoomFFEItem, error) {
	var item domain.RoomFFEItem
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByInstanceID lists every item of an instance in display order
func (r *ffeItemRepositoryImpl) FindByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]*domain.RoomFFEItem, error) {
	var items []*domain.RoomFFEItem
	if err := itemsInDisplayOrder(r.db.WithContext(ctx)).
		Where("instance_id = ?", instanceID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByQuantityGroup lists the rows of one PER_SUB_UNIT group by sub-unit index
func (r *ffeItemRepositoryImpl) FindByQuantityGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.RoomFFEItem, error) {
	var items []*domain.RoomFFEItem
	if err := r.db.WithContext(ctx).
		Where("quantity_group_id = ? AND parent_item_id IS NULL", groupID).
		Order("sub_unit_index ASC").
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByParentIDs lists the sub-items of the given parents
func (r *ffeItemRepositoryImpl) FindByParentIDs(ctx context.Context, parentIDs []uuid.UUID) ([]*domain.RoomFFEItem, error) {
	var items []*domain.RoomFFEItem
	if len(parentIDs) == 0 {
		return items, nil
	}
	if err := itemsInDisplayOrder(r.db.WithContext(ctx)).
		Where("parent_item_id IN ?", parentIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateWithVersion applies fields only if the row still carries item.Version,
// bumping the version. ErrVersionConflict is returned when another writer got there first.
func (r *ffeItemRepositoryImpl) UpdateWithVersion(ctx context.Context, item *domain.RoomFFEItem, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&domain.RoomFFEItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	item.Version++
	return nil
}

// UpdateVisibility refreshes the cached visibility flag without bumping versions
func (r *ffeItemRepositoryImpl) UpdateVisibility(ctx context.Context, ids []uuid.UUID, visible bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.RoomFFEItem{}).
		Where("id IN ?", ids).
		UpdateColumn("visible", visible).Error
}

// DeleteByIDs soft-deletes items
func (r *ffeItemRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.RoomFFEItem{}).Error
}
