package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// StageRepository defines data access for stages and their design sections
type StageRepository interface {
	CreateBatch(ctx context.Context, stages []*domain.Stage) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error)
	FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]*domain.Stage, error)
	FindByRoomAndTypes(ctx context.Context, roomID uuid.UUID, types []domain.StageType) ([]*domain.Stage, error)
	ListActive(ctx context.Context, orgID *uuid.UUID) ([]*domain.Stage, error)
	Update(ctx context.Context, stage *domain.Stage) error
	SoftDelete(ctx context.Context, ids []uuid.UUID) error

	ReassignSections(ctx context.Context, sectionIDs []uuid.UUID, stageID uuid.UUID) error
	CountSectionsByRoom(ctx context.Context, roomID uuid.UUID) (int64, error)
}

type stageRepositoryImpl struct {
	db *gorm.DB
}

// NewStageRepository creates a new instance of StageRepository
func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepositoryImpl{db: db}
}

func stagesInCreationOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// CreateBatch creates stages in a single statement
func (r *stageRepositoryImpl) CreateBatch(ctx context.Context, stages []*domain.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("DesignSections").Create(&stages).Error
}

// FindByID finds a stage with its design sections
func (r *stageRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	var stage domain.Stage
	if err := r.db.WithContext(ctx).
		Preload("DesignSections", orderedByDisplay).
		Where("id = ?", id).
		First(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindByRoomID lists a room's stages in creation order
func (r *stageRepositoryImpl) FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]*domain.Stage, error) {
	var stages []*domain.Stage
	if err := stagesInCreationOrder(r.db.WithContext(ctx)).
		Preload("DesignSections", orderedByDisplay).
		Where("room_id = ?", roomID).
		Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// FindByRoomAndTypes lists a room's stages of the given types in creation order
func (r *stageRepositoryImpl) FindByRoomAndTypes(ctx context.Context, roomID uuid.UUID, types []domain.StageType) ([]*domain.Stage, error) {
	var stages []*domain.Stage
	if err := stagesInCreationOrder(r.db.WithContext(ctx)).
		Preload("DesignSections", orderedByDisplay).
		Where("room_id = ? AND type IN ?", roomID, types).
		Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// ListActive returns every non-deleted stage, optionally scoped to one
// organization, without design sections
func (r *stageRepositoryImpl) ListActive(ctx context.Context, orgID *uuid.UUID) ([]*domain.Stage, error) {
	query := r.db.WithContext(ctx).Model(&domain.Stage{}).Select("stages.*")
	if orgID != nil {
		query = query.
			Joins("JOIN rooms ON rooms.id = stages.room_id AND rooms.deleted_at IS NULL").
			Where("rooms.organization_id = ?", *orgID)
	}

	var stages []*domain.Stage
	if err := query.
		Order("stages.room_id ASC").
		Order("stages.created_at ASC").
		Order("stages.id ASC").
		Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// Update writes the stage's progress columns (status, assignee, timestamps).
// A deleted or missing stage yields gorm.ErrRecordNotFound and is never recreated.
func (r *stageRepositoryImpl) Update(ctx context.Context, stage *domain.Stage) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":         string(stage.Status),
		"assigned_to_id": nil,
		"started_at":     nil,
		"completed_at":   nil,
		"updated_at":     now,
	}
	if stage.AssignedToID != nil {
		updates["assigned_to_id"] = *stage.AssignedToID
	}
	if stage.StartedAt != nil {
		updates["started_at"] = *stage.StartedAt
	}
	if stage.CompletedAt != nil {
		updates["completed_at"] = *stage.CompletedAt
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Stage{}).
		Where("id = ?", stage.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	stage.UpdatedAt = now
	return nil
}

// SoftDelete marks stages deleted
func (r *stageRepositoryImpl) SoftDelete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Stage{}).Error
}

// ReassignSections moves design sections onto another stage
func (r *stageRepositoryImpl) ReassignSections(ctx context.Context, sectionIDs []uuid.UUID, stageID uuid.UUID) error {
	if len(sectionIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.DesignSection{}).
		Where("id IN ?", sectionIDs).
		Update("stage_id", stageID).Error
}

// CountSectionsByRoom counts non-deleted design sections under the room's non-deleted stages
func (r *stageRepositoryImpl) CountSectionsByRoom(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.DesignSection{}).
		Joins("JOIN stages ON stages.id = design_sections.stage_id AND stages.deleted_at IS NULL").
		Where("stages.room_id = ?", roomID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
