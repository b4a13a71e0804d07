package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoomRequest represents the request to create a room with its workflow stages
type CreateRoomRequest struct {
	OrganizationID uuid.UUID `json:"organizationId" binding:"required"`
	ProjectID      uuid.UUID `json:"projectId" binding:"required"`
	Name           string    `json:"name" binding:"required,min=1,max=255"`
	RoomType       string    `json:"roomType" binding:"omitempty,max=100"`
}

// RoomResponse represents a room and its stages
type RoomResponse struct {
	RoomID         uuid.UUID       `json:"roomId"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	ProjectID      uuid.UUID       `json:"projectId"`
	Name           string          `json:"name"`
	RoomType       string          `json:"roomType"`
	Stages         []StageResponse `json:"stages"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// StageResponse represents a workflow stage
type StageResponse struct {
	StageID        uuid.UUID               `json:"stageId"`
	RoomID         uuid.UUID               `json:"roomId"`
	Type           string                  `json:"type"`
	Status         string                  `json:"status"`
	AssignedToID   *uuid.UUID              `json:"assignedToId"`
	StartedAt      *time.Time              `json:"startedAt"`
	CompletedAt    *time.Time              `json:"completedAt"`
	DesignSections []DesignSectionResponse `json:"designSections"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// DesignSectionResponse represents a design section of a stage
type DesignSectionResponse struct {
	SectionID    uuid.UUID `json:"sectionId"`
	Type         string    `json:"type"`
	Content      string    `json:"content"`
	DisplayOrder int       `json:"displayOrder"`
}

// UpdateStageRequest represents a stage status or assignee change.
// An empty assignedToId unassigns the stage.
type UpdateStageRequest struct {
	Status       *string `json:"status" binding:"omitempty,oneof=NOT_STARTED IN_PROGRESS PENDING_APPROVAL REVISION_REQUESTED COMPLETED NOT_APPLICABLE"`
	AssignedToID *string `json:"assignedToId"`
}

// DuplicateStageGroupResponse is one violation of the one-stage-per-type rule
type DuplicateStageGroupResponse struct {
	RoomID   uuid.UUID   `json:"roomId"`
	Type     string      `json:"type"`
	StageIDs []uuid.UUID `json:"stageIds"`
}

// MergeStagesRequest selects the stages of one room to merge
type MergeStagesRequest struct {
	RoomID   uuid.UUID   `json:"roomId" binding:"required"`
	Type     string      `json:"type" binding:"required"`
	StageIDs []uuid.UUID `json:"stageIds" binding:"required,min=1"`
}

// StageCleanupRequest scopes a cleanup run
type StageCleanupRequest struct {
	OrganizationID *uuid.UUID `json:"orgId"`
	DryRun         bool       `json:"dryRun"`
}

// StageMergeResult describes one merged (or, in a dry run, planned) group
type StageMergeResult struct {
	RoomID             uuid.UUID   `json:"roomId"`
	Type               string      `json:"type"`
	SurvivorID         uuid.UUID   `json:"survivorId"`
	RemovedStageIDs    []uuid.UUID `json:"removedStageIds"`
	SectionsReassigned int         `json:"sectionsReassigned"`
	CopiedFromLegacyID *uuid.UUID  `json:"copiedFromLegacyId,omitempty"`
	Rule               string      `json:"rule"`
}

// StageMergeConflict describes a group left untouched for manual review
type StageMergeConflict struct {
	RoomID         uuid.UUID   `json:"roomId"`
	Type           string      `json:"type"`
	StageIDs       []uuid.UUID `json:"stageIds"`
	ActiveStageIDs []uuid.UUID `json:"activeStageIds"`
	Reason         string      `json:"reason"`
}

// StageCleanupReport is the structured outcome of a cleanup run
type StageCleanupReport struct {
	DryRun             bool                 `json:"dryRun"`
	RoomsProcessed     int                  `json:"roomsProcessed"`
	StagesRemoved      int                  `json:"stagesRemoved"`
	SectionsReassigned int                  `json:"sectionsReassigned"`
	Merges             []StageMergeResult   `json:"merges"`
	Conflicts          []StageMergeConflict `json:"conflicts"`
	StartedAt          time.Time            `json:"startedAt"`
	DurationMs         int64                `json:"durationMs"`
}
