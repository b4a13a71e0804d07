package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// RoomRepository defines the interface for room data access
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// roomRepositoryImpl is the GORM implementation of RoomRepository
type roomRepositoryImpl struct {
	db *gorm.DB
}

// NewRoomRepository creates a new instance of RoomRepository
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepositoryImpl{db: db}
}

// Create creates a room without touching its associations
func (r *roomRepositoryImpl) Create(ctx context.Context, room *domain.Room) error {
	return r.db.WithContext(ctx).Omit("Stages").Create(room).Error
}

// FindByID finds a room by ID
func (r *roomRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// Exists reports whether a non-deleted room exists
func (r *roomRepositoryImpl) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
