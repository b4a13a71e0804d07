package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// StageService defines the interface for room workflow stage business logic
type StageService interface {
	CreateRoomWithStages(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	ListRoomStages(ctx context.Context, roomID uuid.UUID) ([]dto.StageResponse, error)
	UpdateStage(ctx context.Context, stageID uuid.UUID, req *dto.UpdateStageRequest) (*dto.StageResponse, error)
	UpdateStageStatus(ctx context.Context, stageID uuid.UUID, status domain.StageStatus) (*dto.StageResponse, error)
	AssignStage(ctx context.Context, stageID uuid.UUID, assigneeID *uuid.UUID) (*dto.StageResponse, error)
}

// stageServiceImpl is the implementation of StageService
type stageServiceImpl struct {
	store    *repository.Store
	locker   lock.Locker
	activity client.ActivityClient
	logger   *zap.Logger
}

// NewStageService creates a new instance of StageService
func NewStageService(store *repository.Store, locker lock.Locker, activity client.ActivityClient, logger *zap.Logger) StageService {
	if activity == nil {
		activity = client.NewNoOpActivityClient()
	}
	return &stageServiceImpl{
		store:    store,
		locker:   locker,
		activity: activity,
		logger:   logger,
	}
}

// CreateRoomWithStages creates a room and one stage per workflow type in one transaction
func (s *stageServiceImpl) CreateRoomWithStages(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, response.NewValidationError("Room name is required", "")
	}

	room := &domain.Room{
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		Name:           strings.TrimSpace(req.Name),
		RoomType:       req.RoomType,
	}

	var stages []*domain.Stage
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Rooms.Create(ctx, room); err != nil {
			return err
		}

		stages = make([]*domain.Stage, 0, len(domain.WorkflowStageTypes))
		for _, stageType := range domain.WorkflowStageTypes {
			stages = append(stages, &domain.Stage{
				RoomID: room.ID,
				Type:   stageType,
				Status: domain.StageStatusNotStarted,
			})
		}
		return tx.Stages.CreateBatch(ctx, stages)
	})
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to create room", err.Error())
	}

	s.logger.Info("Room created",
		zap.String("room_id", room.ID.String()),
		zap.String("organization_id", room.OrganizationID.String()),
		zap.Int("stages", len(stages)),
	)

	publishActivity(ctx, s.activity, s.logger, client.ActivityEvent{
		Type:           client.ActivityRoomCreated,
		OrganizationID: room.OrganizationID,
		RoomID:         room.ID,
		ResourceType:   "ROOM",
		ResourceID:     room.ID,
		Metadata:       map[string]interface{}{"name": room.Name},
	})

	resp := &dto.RoomResponse{
		RoomID:         room.ID,
		OrganizationID: room.OrganizationID,
		ProjectID:      room.ProjectID,
		Name:           room.Name,
		RoomType:       room.RoomType,
		Stages:         make([]dto.StageResponse, 0, len(stages)),
		CreatedAt:      room.CreatedAt,
	}
	for _, stage := range stages {
		resp.Stages = append(resp.Stages, toStageResponse(stage))
	}
	return resp, nil
}

// ListRoomStages lists the room's stages in creation order
func (s *stageServiceImpl) ListRoomStages(ctx context.Context, roomID uuid.UUID) ([]dto.StageResponse, error) {
	exists, err := s.store.Rooms.Exists(ctx, roomID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to verify room", err.Error())
	}
	if !exists {
		return nil, response.NewNotFoundError("Room not found", "")
	}

	stages, err := s.store.Stages.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch stages", err.Error())
	}

	result := make([]dto.StageResponse, 0, len(stages))
	for _, stage := range stages {
		result = append(result, toStageResponse(stage))
	}
	return result, nil
}

// UpdateStageStatus changes a stage's status
func (s *stageServiceImpl) UpdateStageStatus(ctx context.Context, stageID uuid.UUID, status domain.StageStatus) (*dto.StageResponse, error) {
	value := string(status)
	return s.UpdateStage(ctx, stageID, &dto.UpdateStageRequest{Status: &value})
}

// AssignStage sets or clears the stage's assignee
func (s *stageServiceImpl) AssignStage(ctx context.Context, stageID uuid.UUID, assigneeID *uuid.UUID) (*dto.StageResponse, error) {
	value := ""
	if assigneeID != nil {
		value = assigneeID.String()
	}
	return s.UpdateStage(ctx, stageID, &dto.UpdateStageRequest{AssignedToID: &value})
}

// UpdateStage applies a status and/or assignee change.
// Completing a stage opens the next workflow stage when the room is missing it.
func (s *stageServiceImpl) UpdateStage(ctx context.Context, stageID uuid.UUID, req *dto.UpdateStageRequest) (*dto.StageResponse, error) {
	if req == nil || (req.Status == nil && req.AssignedToID == nil) {
		return nil, response.NewValidationError("No fields to update", "")
	}

	var status domain.StageStatus
	if req.Status != nil {
		status = domain.StageStatus(*req.Status)
		if !status.Valid() {
			return nil, response.NewValidationError("Invalid stage status", *req.Status)
		}
	}

	var assignee *uuid.UUID
	if req.AssignedToID != nil && strings.TrimSpace(*req.AssignedToID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.AssignedToID))
		if err != nil {
			return nil, response.NewValidationError("Invalid assignee ID", *req.AssignedToID)
		}
		assignee = &id
	}

	current, err := s.store.Stages.FindByID(ctx, stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Stage not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch stage", err.Error())
	}

	// Serializes with the duplicate merger, which may delete or rewrite this stage
	release, err := s.locker.Acquire(ctx, lock.RoomKey(current.RoomID))
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to lock room", err.Error())
	}
	defer release()

	var (
		stage    *domain.Stage
		previous domain.StageStatus
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		stage, err = tx.Stages.FindByID(ctx, stageID)
		if err != nil {
			return err
		}

		previous = stage.Status
		if req.Status != nil {
			applyStageStatus(stage, status, time.Now().UTC())
		}
		if req.AssignedToID != nil {
			stage.AssignedToID = assignee
		}

		if err := tx.Stages.Update(ctx, stage); err != nil {
			return err
		}
		if req.Status != nil && status == domain.StageStatusCompleted && previous != domain.StageStatusCompleted {
			return openNextStage(ctx, tx, stage)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Stage not found", stageID.String())
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to update stage", err.Error())
	}

	s.logger.Info("Stage updated",
		zap.String("stage_id", stage.ID.String()),
		zap.String("room_id", stage.RoomID.String()),
		zap.String("status", string(stage.Status)),
	)

	if room, err := s.store.Rooms.FindByID(ctx, stage.RoomID); err == nil {
		publishActivity(ctx, s.activity, s.logger, client.ActivityEvent{
			Type:           client.ActivityStageUpdated,
			OrganizationID: room.OrganizationID,
			RoomID:         room.ID,
			ResourceType:   "STAGE",
			ResourceID:     stage.ID,
			Metadata: map[string]interface{}{
				"type":           string(stage.Type),
				"previousStatus": string(previous),
				"status":         string(stage.Status),
			},
		})
	}

	resp := toStageResponse(stage)
	return &resp, nil
}

// applyStageStatus sets status and keeps the progress timestamps consistent with it
func applyStageStatus(stage *domain.Stage, status domain.StageStatus, now time.Time) {
	if stage.StartedAt == nil && status != domain.StageStatusNotStarted && status != domain.StageStatusNotApplicable {
		stage.StartedAt = &now
	}
	if status == domain.StageStatusCompleted {
		if stage.Status != domain.StageStatusCompleted || stage.CompletedAt == nil {
			stage.CompletedAt = &now
		}
	} else {
		stage.CompletedAt = nil
	}
	stage.Status = status
}

// openNextStage creates the workflow stage after stage if the room has none of that type
func openNextStage(ctx context.Context, tx *repository.Store, stage *domain.Stage) error {
	next, ok := nextWorkflowStage(stage.Type.Canonical())
	if !ok {
		return nil
	}

	existing, err := tx.Stages.FindByRoomAndTypes(ctx, stage.RoomID, stageTypesOf(next))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	return tx.Stages.CreateBatch(ctx, []*domain.Stage{{
		RoomID: stage.RoomID,
		Type:   next,
		Status: domain.StageStatusNotStarted,
	}})
}

func nextWorkflowStage(current domain.StageType) (domain.StageType, bool) {
	for i, t := range domain.WorkflowStageTypes {
		if t == current && i+1 < len(domain.WorkflowStageTypes) {
			return domain.WorkflowStageTypes[i+1], true
		}
	}
	return "", false
}

func toStageResponse(stage *domain.Stage) dto.StageResponse {
	resp := dto.StageResponse{
		StageID:        stage.ID,
		RoomID:         stage.RoomID,
		Type:           string(stage.Type),
		Status:         string(stage.Status),
		AssignedToID:   stage.AssignedToID,
		StartedAt:      stage.StartedAt,
		CompletedAt:    stage.CompletedAt,
		DesignSections: make([]dto.DesignSectionResponse, 0, len(stage.DesignSections)),
		CreatedAt:      stage.CreatedAt,
		UpdatedAt:      stage.UpdatedAt,
	}
	for _, section := range stage.DesignSections {
		resp.DesignSections = append(resp.DesignSections, dto.DesignSectionResponse{
			SectionID:    section.ID,
			Type:         section.Type,
			Content:      section.Content,
			DisplayOrder: section.DisplayOrder,
		})
	}
	return resp
}
