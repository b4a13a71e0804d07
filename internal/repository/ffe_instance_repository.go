package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// FFEInstanceRepository defines data access for room FFE instances and sections
type FFEInstanceRepository interface {
	Create(ctx context.Context, instance *domain.RoomFFEInstance) error
	CreateSections(ctx context.Context, sections []*domain.RoomFFESection) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RoomFFEInstance, error)
	FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.RoomFFEInstance, error)
	FindTreeByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.RoomFFEInstance, error)
}

type ffeInstanceRepositoryImpl struct {
	db *gorm.DB
}

// NewFFEInstanceRepository creates a new instance of FFEInstanceRepository
func NewFFEInstanceRepository(db *gorm.DB) FFEInstanceRepository {
	return &ffeInstanceRepositoryImpl{db: db}
}

// Create inserts the instance row only; sections and items are inserted separately
func (r *ffeInstanceRepositoryImpl) Create(ctx context.Context, instance *domain.RoomFFEInstance) error {
	return r.db.WithContext(ctx).Omit("Sections", "Room").Create(instance).Error
}

// CreateSections inserts section rows without their items
func (r *ffeInstanceRepositoryImpl) CreateSections(ctx context.Context, sections []*domain.RoomFFESection) error {
	if len(sections) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Items").Create(&sections).Error
}

// FindByID finds an instance without its tree
func (r *ffeInstanceRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.RoomFFEInstance, error) {
	var instance domain.RoomFFEInstance
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindByRoomID finds the room's instance without its tree
func (r *ffeInstanceRepositoryImpl) FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.RoomFFEInstance, error) {
	var instance domain.RoomFFEInstance
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindTreeByRoomID finds the room's instance with sections and items in display order
func (r *ffeInstanceRepositoryImpl) FindTreeByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.RoomFFEInstance, error) {
	var instance domain.RoomFFEInstance
	if err := r.db.WithContext(ctx).
		Preload("Sections", orderedByDisplay).
		Preload("Sections.Items", itemsInDisplayOrder).
		Where("room_id = ?", roomID).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}
