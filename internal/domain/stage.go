package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageType represents a workflow phase of a room
type StageType string

const (
	// StageTypeDesign is the legacy design phase, superseded by StageTypeDesignConcept
	StageTypeDesign         StageType = "DESIGN"
	StageTypeDesignConcept  StageType = "DESIGN_CONCEPT"
	StageTypeThreeD         StageType = "THREE_D"
	StageTypeClientApproval StageType = "CLIENT_APPROVAL"
	StageTypeDrawings       StageType = "DRAWINGS"
	StageTypeFFE            StageType = "FFE"
)

// WorkflowStageTypes lists the stages seeded for every new room, in workflow order
var WorkflowStageTypes = []StageType{
	StageTypeDesignConcept,
	StageTypeThreeD,
	StageTypeClientApproval,
	StageTypeDrawings,
	StageTypeFFE,
}

// Valid reports whether the stage type is a known value
func (t StageType) Valid() bool {
	switch t {
	case StageTypeDesign, StageTypeDesignConcept, StageTypeThreeD,
		StageTypeClientApproval, StageTypeDrawings, StageTypeFFE:
		return true
	default:
		return false
	}
}

// Canonical returns the type a stage counts as for the one-stage-per-type rule.
// Legacy DESIGN stages count as DESIGN_CONCEPT.
func (t StageType) Canonical() StageType {
	if t == StageTypeDesign {
		return StageTypeDesignConcept
	}
	return t
}

// IsLegacy reports whether the type has been superseded by another type
func (t StageType) IsLegacy() bool {
	return t.Canonical() != t
}

// StageStatus represents the progress of a stage
type StageStatus string

const (
	StageStatusNotStarted        StageStatus = "NOT_STARTED"
	StageStatusInProgress        StageStatus = "IN_PROGRESS"
	StageStatusPendingApproval   StageStatus = "PENDING_APPROVAL"
	StageStatusRevisionRequested StageStatus = "REVISION_REQUESTED"
	StageStatusCompleted         StageStatus = "COMPLETED"
	StageStatusNotApplicable     StageStatus = "NOT_APPLICABLE"
)

// Valid reports whether the stage status is a known value
func (s StageStatus) Valid() bool {
	switch s {
	case StageStatusNotStarted, StageStatusInProgress, StageStatusPendingApproval,
		StageStatusRevisionRequested, StageStatusCompleted, StageStatusNotApplicable:
		return true
	default:
		return false
	}
}

// Stage represents one workflow phase attached to a room.
// A room holds at most one non-deleted stage per canonical type; the
// partial unique index is installed by database.EnsureStageUniqueIndex.
type Stage struct {
	BaseModel
	RoomID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_stages_room_id;index:idx_stages_room_type,priority:1" json:"room_id"`
	Type           StageType       `gorm:"type:varchar(50);not null;index:idx_stages_room_type,priority:2" json:"type"`
	Status         StageStatus     `gorm:"type:varchar(50);not null;default:'NOT_STARTED'" json:"status"`
	AssignedToID   *uuid.UUID      `gorm:"type:uuid;index:idx_stages_assigned_to_id" json:"assigned_to_id"`
	StartedAt      *time.Time      `gorm:"type:timestamp" json:"started_at"`
	CompletedAt    *time.Time      `gorm:"type:timestamp" json:"completed_at"`
	DesignSections []DesignSection `gorm:"foreignKey:StageID;constraint:OnDelete:CASCADE" json:"design_sections,omitempty"`
}

// TableName specifies the table name for Stage
func (Stage) TableName() string {
	return "stages"
}

// DesignSection is a content block owned by a design stage
type DesignSection struct {
	BaseModel
	StageID      uuid.UUID `gorm:"type:uuid;not null;index:idx_design_sections_stage_id" json:"stage_id"`
	Type         string    `gorm:"type:varchar(50);not null" json:"type"`
	Content      string    `gorm:"type:text" json:"content"`
	DisplayOrder int       `gorm:"type:int;not null;default:0" json:"display_order"`
}

// TableName specifies the table name for DesignSection
func (DesignSection) TableName() string {
	return "design_sections"
}

// IsEmpty reports whether the section carries no user content
func (s DesignSection) IsEmpty() bool {
	return strings.TrimSpace(s.Content) == ""
}
