package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// StageCleanupService defines the interface for detecting and merging duplicate stages
type StageCleanupService interface {
	FindDuplicates(ctx context.Context, orgID *uuid.UUID) ([]dto.DuplicateStageGroupResponse, error)
	MergeDuplicates(ctx context.Context, roomID uuid.UUID, stageType domain.StageType, stageIDs []uuid.UUID) (*dto.StageMergeResult, error)
	RunCleanup(ctx context.Context, req *dto.StageCleanupRequest) (*dto.StageCleanupReport, error)
}

// stageCleanupServiceImpl is the implementation of StageCleanupService
type stageCleanupServiceImpl struct {
	store    *repository.Store
	locker   lock.Locker
	activity client.ActivityClient
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewStageCleanupService creates a new instance of StageCleanupService
func NewStageCleanupService(
	store *repository.Store,
	locker lock.Locker,
	activity client.ActivityClient,
	m *metrics.Metrics,
	logger *zap.Logger,
) StageCleanupService {
	if activity == nil {
		activity = client.NewNoOpActivityClient()
	}
	return &stageCleanupServiceImpl{
		store:    store,
		locker:   locker,
		activity: activity,
		metrics:  m,
		logger:   logger,
	}
}

// FindDuplicates lists rooms holding more than one non-deleted stage of a canonical type
func (s *stageCleanupServiceImpl) FindDuplicates(ctx context.Context, orgID *uuid.UUID) ([]dto.DuplicateStageGroupResponse, error) {
	stages, err := s.store.Stages.ListActive(ctx, orgID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to list stages", err.Error())
	}

	groups := FindDuplicateGroups(stages)
	result := make([]dto.DuplicateStageGroupResponse, 0, len(groups))
	for _, group := range groups {
		result = append(result, dto.DuplicateStageGroupResponse{
			RoomID:   group.RoomID,
			Type:     string(group.Type),
			StageIDs: stageIDs(group.Stages),
		})
	}
	return result, nil
}

// MergeDuplicates merges the given stages of one room and canonical type into a single survivor.
// The group is re-read and re-planned inside the transaction; stages that no longer exist are ignored.
func (s *stageCleanupServiceImpl) MergeDuplicates(ctx context.Context, roomID uuid.UUID, stageType domain.StageType, ids []uuid.UUID) (*dto.StageMergeResult, error) {
	if !stageType.Valid() {
		return nil, response.NewValidationError("Invalid stage type", string(stageType))
	}
	ids = removeDuplicateUUIDs(ids)
	if len(ids) == 0 {
		return nil, response.NewValidationError("At least one stage ID is required", "")
	}

	result, _, err := s.mergeGroup(ctx, roomID, stageType.Canonical(), ids, false)
	if err != nil {
		var conflict *StageMergeConflictError
		if errors.As(err, &conflict) {
			s.logger.Warn("Duplicate stages need manual review",
				zap.String("room_id", roomID.String()),
				zap.String("type", string(conflict.Type)),
				zap.String("reason", conflict.Reason),
			)
			return nil, mergeConflictAppError(conflict)
		}
		return nil, asAppError(err, "Failed to merge duplicate stages")
	}
	return result, nil
}

// mergeGroup plans and, unless dryRun, applies one group merge under the room lock.
// A nil stageIDs merges every stage of the canonical type.
func (s *stageCleanupServiceImpl) mergeGroup(ctx context.Context, roomID uuid.UUID, canonical domain.StageType, ids []uuid.UUID, dryRun bool) (*dto.StageMergeResult, *StageMergePlan, error) {
	types := stageTypesOf(canonical)

	if dryRun {
		stages, err := s.store.Stages.FindByRoomAndTypes(ctx, roomID, types)
		if err != nil {
			return nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch stages", err.Error())
		}
		return planResult(roomID, canonical, filterStages(stages, ids))
	}

	release, err := s.locker.Acquire(ctx, lock.RoomKey(roomID))
	if err != nil {
		return nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to lock room", err.Error())
	}
	defer release()

	var (
		result *dto.StageMergeResult
		plan   *StageMergePlan
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		stages, err := tx.Stages.FindByRoomAndTypes(ctx, roomID, types)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch stages", err.Error())
		}

		result, plan, err = planResult(roomID, canonical, filterStages(stages, ids))
		if err != nil || plan == nil {
			return err
		}

		if plan.CopyFrom != nil {
			applyLegacyProgress(plan.Survivor, plan.CopyFrom)
			if err := tx.Stages.Update(ctx, plan.Survivor); err != nil {
				return response.NewAppError(response.ErrCodeInternal, "Failed to update surviving stage", err.Error())
			}
		}
		if err := tx.Stages.ReassignSections(ctx, plan.SectionIDs, plan.Survivor.ID); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to reassign design sections", err.Error())
		}
		if err := tx.Stages.SoftDelete(ctx, stageIDs(plan.Losers)); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to remove duplicate stages", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if plan != nil && len(plan.Losers) > 0 {
		s.logger.Info("Duplicate stages merged",
			zap.String("room_id", roomID.String()),
			zap.String("type", string(canonical)),
			zap.String("survivor_id", plan.Survivor.ID.String()),
			zap.Int("removed", len(plan.Losers)),
			zap.Int("sections_reassigned", len(plan.SectionIDs)),
			zap.String("rule", plan.Rule),
		)
	}
	return result, plan, nil
}

// planResult plans the merge of stages. Fewer than two stages need no merge.
func planResult(roomID uuid.UUID, canonical domain.StageType, stages []*domain.Stage) (*dto.StageMergeResult, *StageMergePlan, error) {
	switch len(stages) {
	case 0:
		return nil, nil, response.NewNotFoundError("No stages left to merge", "")
	case 1:
		return &dto.StageMergeResult{
			RoomID:          roomID,
			Type:            string(canonical),
			SurvivorID:      stages[0].ID,
			RemovedStageIDs: []uuid.UUID{},
			Rule:            "single-stage",
		}, nil, nil
	}

	plan, err := PlanGroupMerge(DuplicateStageGroup{RoomID: roomID, Type: canonical, Stages: stages})
	if err != nil {
		return nil, nil, err
	}

	result := &dto.StageMergeResult{
		RoomID:             roomID,
		Type:               string(canonical),
		SurvivorID:         plan.Survivor.ID,
		RemovedStageIDs:    stageIDs(plan.Losers),
		SectionsReassigned: len(plan.SectionIDs),
		Rule:               plan.Rule,
	}
	if plan.CopyFrom != nil {
		copied := plan.CopyFrom.ID
		result.CopiedFromLegacyID = &copied
	}
	return result, plan, nil
}

// stageTypesOf lists the stored types that count as canonical
func stageTypesOf(canonical domain.StageType) []domain.StageType {
	types := []domain.StageType{canonical}
	if domain.StageTypeDesign.Canonical() == canonical {
		types = append(types, domain.StageTypeDesign)
	}
	return types
}

func filterStages(stages []*domain.Stage, ids []uuid.UUID) []*domain.Stage {
	if ids == nil {
		return stages
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := make([]*domain.Stage, 0, len(ids))
	for _, stage := range stages {
		if wanted[stage.ID] {
			filtered = append(filtered, stage)
		}
	}
	return filtered
}

func mergeConflictAppError(conflict *StageMergeConflictError) *response.AppError {
	return response.NewMergeConflictError("Duplicate stages cannot be merged automatically", conflict.Reason).
		WithMeta("roomId", conflict.RoomID.String()).
		WithMeta("type", string(conflict.Type)).
		WithMeta("stageIds", conflict.StageIDs).
		WithMeta("activeStageIds", conflict.ActiveStageIDs)
}

// RunCleanup merges every duplicate group found in one snapshot of the stages.
// Conflicting groups are reported and left untouched. Any other failure stops the run;
// the report of the groups merged so far is returned together with the error.
func (s *stageCleanupServiceImpl) RunCleanup(ctx context.Context, req *dto.StageCleanupRequest) (*dto.StageCleanupReport, error) {
	if req == nil {
		req = &dto.StageCleanupRequest{}
	}
	startedAt := time.Now()

	stages, err := s.store.Stages.ListActive(ctx, req.OrganizationID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to list stages", err.Error())
	}

	rooms := make(map[uuid.UUID]bool)
	for _, stage := range stages {
		rooms[stage.RoomID] = true
	}

	report := &dto.StageCleanupReport{
		DryRun:         req.DryRun,
		RoomsProcessed: len(rooms),
		Merges:         []dto.StageMergeResult{},
		Conflicts:      []dto.StageMergeConflict{},
		StartedAt:      startedAt.UTC(),
	}

	var (
		events []client.ActivityEvent
		runErr *response.AppError
	)
	organizations := make(map[uuid.UUID]uuid.UUID)

	for _, group := range FindDuplicateGroups(stages) {
		result, _, err := s.mergeGroup(ctx, group.RoomID, group.Type, nil, req.DryRun)
		if response.IsCode(err, response.ErrCodeNotFound) {
			// merged or deleted since the snapshot
			continue
		}
		if err != nil {
			var conflict *StageMergeConflictError
			if !errors.As(err, &conflict) {
				runErr = asAppError(err, "Failed to merge duplicate stages").
					WithMeta("roomId", group.RoomID.String()).
					WithMeta("mergesCompleted", len(report.Merges))
				break
			}

			s.logger.Warn("Duplicate stages need manual review",
				zap.String("room_id", conflict.RoomID.String()),
				zap.String("type", string(conflict.Type)),
				zap.String("reason", conflict.Reason),
				zap.Int("stages", len(conflict.StageIDs)),
			)
			report.Conflicts = append(report.Conflicts, dto.StageMergeConflict{
				RoomID:         conflict.RoomID,
				Type:           string(conflict.Type),
				StageIDs:       conflict.StageIDs,
				ActiveStageIDs: conflict.ActiveStageIDs,
				Reason:         conflict.Reason,
			})
			if !req.DryRun {
				events = append(events, s.mergeEvent(ctx, organizations, client.ActivityStageMergeConflict, conflict.RoomID, conflict.StageIDs[0], map[string]interface{}{
					"type":     string(conflict.Type),
					"stageIds": conflict.StageIDs,
					"reason":   conflict.Reason,
				}))
			}
			continue
		}

		if len(result.RemovedStageIDs) == 0 {
			continue
		}

		report.Merges = append(report.Merges, *result)
		report.StagesRemoved += len(result.RemovedStageIDs)
		report.SectionsReassigned += result.SectionsReassigned

		if !req.DryRun {
			events = append(events, s.mergeEvent(ctx, organizations, client.ActivityStageDuplicatesMerged, result.RoomID, result.SurvivorID, map[string]interface{}{
				"type":               result.Type,
				"removedStageIds":    result.RemovedStageIDs,
				"sectionsReassigned": result.SectionsReassigned,
				"rule":               result.Rule,
			}))
		}
	}

	duration := time.Since(startedAt)
	report.DurationMs = duration.Milliseconds()

	if !req.DryRun && s.metrics != nil {
		s.metrics.RecordStageCleanup(len(report.Merges), report.StagesRemoved, len(report.Conflicts), duration)
	}

	logFields := []zap.Field{
		zap.Bool("dry_run", req.DryRun),
		zap.Int("rooms_processed", report.RoomsProcessed),
		zap.Int("merges", len(report.Merges)),
		zap.Int("stages_removed", report.StagesRemoved),
		zap.Int("sections_reassigned", report.SectionsReassigned),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Duration("duration", duration),
	}

	publishActivity(ctx, s.activity, s.logger, events...)

	if runErr != nil {
		s.logger.Error("Stage cleanup stopped early", append(logFields, zap.Error(runErr))...)
		return report, runErr
	}
	s.logger.Info("Stage cleanup finished", logFields...)
	return report, nil
}

func (s *stageCleanupServiceImpl) mergeEvent(ctx context.Context, organizations map[uuid.UUID]uuid.UUID, eventType client.ActivityType, roomID, resourceID uuid.UUID, metadata map[string]interface{}) client.ActivityEvent {
	orgID, ok := organizations[roomID]
	if !ok {
		if room, err := s.store.Rooms.FindByID(ctx, roomID); err == nil {
			orgID = room.OrganizationID
		}
		organizations[roomID] = orgID
	}
	return client.ActivityEvent{
		Type:           eventType,
		OrganizationID: orgID,
		RoomID:         roomID,
		ResourceType:   "STAGE",
		ResourceID:     resourceID,
		Metadata:       metadata,
	}
}
