package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"room-ffe-api/internal/domain"
)

// Merge rules recorded on every plan
const (
	MergeRuleActiveArrival  = "active-arrival"
	MergeRuleLegacyActivity = "legacy-activity"
	MergeRuleActiveLegacy   = "active-legacy"
	MergeRuleFirstArrival   = "first-arrival"
	MergeRuleFirstLegacy    = "first-legacy"
)

// DuplicateStageGroup is a set of non-deleted stages of one room sharing a canonical type.
// Stages are in creation order.
type DuplicateStageGroup struct {
	RoomID uuid.UUID
	Type   domain.StageType
	Stages []*domain.Stage
}

// StageMergePlan is the outcome of planning one group
type StageMergePlan struct {
	RoomID   uuid.UUID
	Type     domain.StageType
	Survivor *domain.Stage
	Losers   []*domain.Stage
	// CopyFrom is the legacy stage whose progress the survivor takes over, if any
	CopyFrom *domain.Stage
	Rule     string
	// SectionIDs are the losers' design sections to move onto the survivor
	SectionIDs []uuid.UUID
}

// StageMergeConflictError explains why a group needs manual review
type StageMergeConflictError struct {
	RoomID         uuid.UUID
	Type           domain.StageType
	StageIDs       []uuid.UUID
	ActiveStageIDs []uuid.UUID
	Reason         string
}

func (e *StageMergeConflictError) Error() string {
	return "stage merge conflict: " + e.Reason
}

type groupKey struct {
	roomID    uuid.UUID
	stageType domain.StageType
}

// FindDuplicateGroups groups stages by room and canonical type and returns the groups
// with more than one member, ordered by room then type.
func FindDuplicateGroups(stages []*domain.Stage) []DuplicateStageGroup {
	grouped := make(map[groupKey][]*domain.Stage)
	for _, stage := range stages {
		if stage == nil || stage.DeletedAt.Valid {
			continue
		}
		key := groupKey{roomID: stage.RoomID, stageType: stage.Type.Canonical()}
		grouped[key] = append(grouped[key], stage)
	}

	var groups []DuplicateStageGroup
	for key, members := range grouped {
		if len(members) < 2 {
			continue
		}
		sortByCreation(members)
		groups = append(groups, DuplicateStageGroup{
			RoomID: key.roomID,
			Type:   key.stageType,
			Stages: members,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].RoomID != groups[j].RoomID {
			return groups[i].RoomID.String() < groups[j].RoomID.String()
		}
		return groups[i].Type < groups[j].Type
	})
	return groups
}

func sortByCreation(stages []*domain.Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		if !stages[i].CreatedAt.Equal(stages[j].CreatedAt) {
			return stages[i].CreatedAt.Before(stages[j].CreatedAt)
		}
		return stages[i].ID.String() < stages[j].ID.String()
	})
}

// isStageActive reports whether a stage shows any progress or content
func isStageActive(stage *domain.Stage) bool {
	if stage.Status != domain.StageStatusNotStarted {
		return true
	}
	for _, section := range stage.DesignSections {
		if !section.IsEmpty() {
			return true
		}
	}
	return false
}

// PlanGroupMerge picks the survivor of a duplicate group:
// an active arrival stage wins; otherwise the single active legacy stage's progress is
// carried onto the first arrival stage; otherwise the first arrival (or legacy) stage wins.
// More than one active stage of the same kind is a conflict.
func PlanGroupMerge(group DuplicateStageGroup) (*StageMergePlan, error) {
	if len(group.Stages) == 0 {
		return nil, &StageMergeConflictError{RoomID: group.RoomID, Type: group.Type, Reason: "group has no stages"}
	}

	stages := append([]*domain.Stage(nil), group.Stages...)
	sortByCreation(stages)

	var arrivals, legacy, activeArrivals, activeLegacy []*domain.Stage
	for _, stage := range stages {
		active := isStageActive(stage)
		if stage.Type.IsLegacy() {
			legacy = append(legacy, stage)
			if active {
				activeLegacy = append(activeLegacy, stage)
			}
		} else {
			arrivals = append(arrivals, stage)
			if active {
				activeArrivals = append(activeArrivals, stage)
			}
		}
	}

	conflict := func(reason string, active []*domain.Stage) error {
		return &StageMergeConflictError{
			RoomID:         group.RoomID,
			Type:           group.Type,
			StageIDs:       stageIDs(stages),
			ActiveStageIDs: stageIDs(active),
			Reason:         reason,
		}
	}

	plan := &StageMergePlan{RoomID: group.RoomID, Type: group.Type}
	switch {
	case len(activeArrivals) > 1:
		return nil, conflict("more than one active stage of the current type", activeArrivals)
	case len(activeArrivals) == 1:
		plan.Survivor = activeArrivals[0]
		plan.Rule = MergeRuleActiveArrival
	case len(activeLegacy) > 1:
		return nil, conflict("more than one active legacy stage", activeLegacy)
	case len(activeLegacy) == 1 && len(arrivals) > 0:
		plan.Survivor = arrivals[0]
		plan.CopyFrom = activeLegacy[0]
		plan.Rule = MergeRuleLegacyActivity
	case len(activeLegacy) == 1:
		plan.Survivor = activeLegacy[0]
		plan.Rule = MergeRuleActiveLegacy
	case len(arrivals) > 0:
		plan.Survivor = arrivals[0]
		plan.Rule = MergeRuleFirstArrival
	default:
		plan.Survivor = legacy[0]
		plan.Rule = MergeRuleFirstLegacy
	}

	for _, stage := range stages {
		if stage.ID == plan.Survivor.ID {
			continue
		}
		plan.Losers = append(plan.Losers, stage)
		for _, section := range stage.DesignSections {
			plan.SectionIDs = append(plan.SectionIDs, section.ID)
		}
	}

	return plan, nil
}

// applyLegacyProgress copies a legacy stage's progress onto the survivor
func applyLegacyProgress(survivor, legacy *domain.Stage) {
	survivor.Status = legacy.Status
	survivor.StartedAt = copyTime(legacy.StartedAt)
	survivor.CompletedAt = copyTime(legacy.CompletedAt)
	if legacy.AssignedToID != nil {
		assignee := *legacy.AssignedToID
		survivor.AssignedToID = &assignee
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stageIDs(stages []*domain.Stage) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(stages))
	for _, stage := range stages {
		ids = append(ids, stage.ID)
	}
	return ids
}
