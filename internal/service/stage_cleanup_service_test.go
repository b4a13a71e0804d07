package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/database"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/response"
)

// seedStage inserts a stage created minute minutes after plannerEpoch, one design section per content
func seedStage(t *testing.T, e *testEnv, roomID uuid.UUID, stageType domain.StageType, status domain.StageStatus, minute int, sections ...string) *domain.Stage {
	t.Helper()
	stage := planStage(roomID, stageType, status, minute, sections...)
	require.NoError(t, e.db.Create(stage).Error)
	return stage
}

func sectionCount(t *testing.T, e *testEnv, roomID uuid.UUID) int64 {
	t.Helper()
	count, err := e.store.Stages.CountSectionsByRoom(context.Background(), roomID)
	require.NoError(t, err)
	return count
}

func remainingStageIDs(t *testing.T, e *testEnv, roomID uuid.UUID) []uuid.UUID {
	t.Helper()
	stages, err := e.store.Stages.FindByRoomID(context.Background(), roomID)
	require.NoError(t, err)
	return stageIDs(stages)
}

func TestRunCleanup_ActiveArrivalSurvives(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	room := seedRoom(t, e, uuid.New())

	id1 := seedStage(t, e, room.ID, domain.StageTypeDesign, domain.StageStatusNotStarted, 0)
	id2 := seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusNotStarted, 1)
	id3 := seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusInProgress, 2, "moodboard", "palette")
	require.Error(t, database.EnsureStageUniqueIndex(e.db))

	report, err := e.cleanupService().RunCleanup(ctx, &dto.StageCleanupRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.RoomsProcessed)
	assert.Equal(t, 2, report.StagesRemoved)
	assert.Empty(t, report.Conflicts)
	require.Len(t, report.Merges, 1)
	merge := report.Merges[0]
	assert.Equal(t, id3.ID, merge.SurvivorID)
	assert.ElementsMatch(t, []uuid.UUID{id1.ID, id2.ID}, merge.RemovedStageIDs)
	assert.Equal(t, MergeRuleActiveArrival, merge.Rule)
	assert.Equal(t, string(domain.StageTypeDesignConcept), merge.Type)

	assert.Equal(t, []uuid.UUID{id3.ID}, remainingStageIDs(t, e, room.ID))
	assert.Equal(t, int64(2), sectionCount(t, e, room.ID))
	assert.NoError(t, database.EnsureStageUniqueIndex(e.db))

	assert.Equal(t, float64(1), counterValue(t, e.metrics.StageMergesTotal))
	assert.Equal(t, float64(2), counterValue(t, e.metrics.StagesRemovedTotal))

	events := e.activity.EventsOfType(client.ActivityStageDuplicatesMerged)
	require.Len(t, events, 1)
	assert.Equal(t, room.OrganizationID, events[0].OrganizationID)
	assert.Equal(t, id3.ID, events[0].ResourceID)

	again, err := e.cleanupService().RunCleanup(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Merges)
	assert.Zero(t, again.StagesRemoved)
	assert.Equal(t, []uuid.UUID{id3.ID}, remainingStageIDs(t, e, room.ID))
}

func TestRunCleanup_UniquenessRestoration(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	room := seedRoom(t, e, uuid.New())

	seedStage(t, e, room.ID, domain.StageTypeDesign, domain.StageStatusNotStarted, 0, "")
	seedStage(t, e, room.ID, domain.StageTypeDesign, domain.StageStatusNotStarted, 1)
	seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusNotStarted, 2)
	withNotes := seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusNotStarted, 3, "client likes brass")
	before := sectionCount(t, e, room.ID)

	report, err := e.cleanupService().RunCleanup(ctx, &dto.StageCleanupRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.StagesRemoved)

	stages, err := e.store.Stages.FindByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, withNotes.ID, stages[0].ID)
	assert.Equal(t, domain.StageTypeDesignConcept, stages[0].Type)
	assert.Equal(t, before, sectionCount(t, e, room.ID))
}

func TestRunCleanup_LegacyActivityIsCarriedOver(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	room := seedRoom(t, e, uuid.New())

	legacy := planStage(room.ID, domain.StageTypeDesign, domain.StageStatusInProgress, 0, "concept sketch")
	assignee := uuid.New()
	started := plannerEpoch.Add(30 * time.Minute)
	legacy.AssignedToID = &assignee
	legacy.StartedAt = &started
	require.NoError(t, e.db.Create(legacy).Error)
	arrival := seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusNotStarted, 1, "")

	report, err := e.cleanupService().RunCleanup(ctx, &dto.StageCleanupRequest{})
	require.NoError(t, err)
	require.Len(t, report.Merges, 1)
	assert.Equal(t, arrival.ID, report.Merges[0].SurvivorID)
	require.NotNil(t, report.Merges[0].CopiedFromLegacyID)
	assert.Equal(t, legacy.ID, *report.Merges[0].CopiedFromLegacyID)
	assert.Equal(t, 1, report.SectionsReassigned)

	survivor, err := e.store.Stages.FindByID(ctx, arrival.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusInProgress, survivor.Status)
	require.NotNil(t, survivor.AssignedToID)
	assert.Equal(t, assignee, *survivor.AssignedToID)
	require.NotNil(t, survivor.StartedAt)
	assert.True(t, started.Equal(*survivor.StartedAt))
	assert.Len(t, survivor.DesignSections, 2)
	assert.Equal(t, int64(2), sectionCount(t, e, room.ID))
}

func TestRunCleanup_ConflictsAreReportedAndLeftUntouched(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	orgID := uuid.New()
	contested := seedRoom(t, e, orgID)
	clean := seedRoom(t, e, orgID)

	a := seedStage(t, e, contested.ID, domain.StageTypeThreeD, domain.StageStatusInProgress, 0)
	b := seedStage(t, e, contested.ID, domain.StageTypeThreeD, domain.StageStatusCompleted, 1)
	keep := seedStage(t, e, clean.ID, domain.StageTypeDrawings, domain.StageStatusNotStarted, 0)
	drop := seedStage(t, e, clean.ID, domain.StageTypeDrawings, domain.StageStatusNotStarted, 1)

	report, err := e.cleanupService().RunCleanup(ctx, &dto.StageCleanupRequest{})
	require.NoError(t, err)

	require.Len(t, report.Conflicts, 1)
	conflict := report.Conflicts[0]
	assert.Equal(t, contested.ID, conflict.RoomID)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, conflict.ActiveStageIDs)
	assert.NotEmpty(t, conflict.Reason)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, remainingStageIDs(t, e, contested.ID))

	require.Len(t, report.Merges, 1)
	assert.Equal(t, keep.ID, report.Merges[0].SurvivorID)
	assert.Equal(t, []uuid.UUID{drop.ID}, report.Merges[0].RemovedStageIDs)
	assert.Equal(t, MergeRuleFirstArrival, report.Merges[0].Rule)

	assert.Equal(t, float64(1), counterValue(t, e.metrics.StageMergeConflictsTotal))
	conflictEvents := e.activity.EventsOfType(client.ActivityStageMergeConflict)
	require.Len(t, conflictEvents, 1)
	assert.Equal(t, orgID, conflictEvents[0].OrganizationID)
}

func TestRunCleanup_DryRunChangesNothing(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	room := seedRoom(t, e, uuid.New())
	first := seedStage(t, e, room.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 0)
	second := seedStage(t, e, room.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 1, "")

	report, err := e.cleanupService().RunCleanup(ctx, &dto.StageCleanupRequest{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	require.Len(t, report.Merges, 1)
	assert.Equal(t, first.ID, report.Merges[0].SurvivorID)
	assert.Equal(t, 1, report.SectionsReassigned)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, remainingStageIDs(t, e, room.ID))
	assert.Zero(t, counterValue(t, e.metrics.StageMergesTotal))
	assert.Empty(t, e.activity.Events())
}

func TestRunCleanup_OrganizationScope(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	orgA, orgB := uuid.New(), uuid.New()
	roomA := seedRoom(t, e, orgA)
	roomB := seedRoom(t, e, orgB)
	seedStage(t, e, roomA.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 0)
	seedStage(t, e, roomA.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 1)
	seedStage(t, e, roomB.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 0)
	seedStage(t, e, roomB.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 1)

	svc := e.cleanupService()

	groups, err := svc.FindDuplicates(ctx, &orgB)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, roomB.ID, groups[0].RoomID)
	assert.Len(t, groups[0].StageIDs, 2)

	report, err := svc.RunCleanup(ctx, &dto.StageCleanupRequest{OrganizationID: &orgA})
	require.NoError(t, err)
	assert.Equal(t, 1, report.RoomsProcessed)
	require.Len(t, report.Merges, 1)
	assert.Equal(t, roomA.ID, report.Merges[0].RoomID)

	assert.Len(t, remainingStageIDs(t, e, roomA.ID), 1)
	assert.Len(t, remainingStageIDs(t, e, roomB.ID), 2)

	all, err := svc.FindDuplicates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, roomB.ID, all[0].RoomID)
}

func TestMergeDuplicates(t *testing.T) {
	ctx := context.Background()

	t.Run("성공: 지정한 단계만 병합", func(t *testing.T) {
		e := setupTestEnv(t)
		room := seedRoom(t, e, uuid.New())
		first := seedStage(t, e, room.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 0)
		second := seedStage(t, e, room.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 1)
		third := seedStage(t, e, room.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 2)

		result, err := e.cleanupService().MergeDuplicates(ctx, room.ID, domain.StageTypeFFE, []uuid.UUID{second.ID, third.ID, third.ID})
		require.NoError(t, err)
		assert.Equal(t, second.ID, result.SurvivorID)
		assert.Equal(t, []uuid.UUID{third.ID}, result.RemovedStageIDs)
		assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, remainingStageIDs(t, e, room.ID))
	})

	t.Run("성공: 레거시 타입 이름으로도 병합", func(t *testing.T) {
		e := setupTestEnv(t)
		room := seedRoom(t, e, uuid.New())
		legacy := seedStage(t, e, room.ID, domain.StageTypeDesign, domain.StageStatusNotStarted, 0)
		arrival := seedStage(t, e, room.ID, domain.StageTypeDesignConcept, domain.StageStatusNotStarted, 1)

		result, err := e.cleanupService().MergeDuplicates(ctx, room.ID, domain.StageTypeDesign, []uuid.UUID{legacy.ID, arrival.ID})
		require.NoError(t, err)
		assert.Equal(t, arrival.ID, result.SurvivorID)
		assert.Equal(t, string(domain.StageTypeDesignConcept), result.Type)
	})

	t.Run("실패: 자동 병합 불가", func(t *testing.T) {
		e := setupTestEnv(t)
		room := seedRoom(t, e, uuid.New())
		a := seedStage(t, e, room.ID, domain.StageTypeDrawings, domain.StageStatusInProgress, 0)
		b := seedStage(t, e, room.ID, domain.StageTypeDrawings, domain.StageStatusNotStarted, 1, "markup")

		_, err := e.cleanupService().MergeDuplicates(ctx, room.ID, domain.StageTypeDrawings, []uuid.UUID{a.ID, b.ID})
		require.Error(t, err)
		appErr, ok := err.(*response.AppError)
		require.True(t, ok)
		assert.Equal(t, response.ErrCodeMergeConflict, appErr.Code)
		assert.Equal(t, room.ID.String(), appErr.Meta["roomId"])
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, appErr.Meta["activeStageIds"])
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, remainingStageIDs(t, e, room.ID))
	})

	t.Run("실패: 잘못된 요청", func(t *testing.T) {
		e := setupTestEnv(t)
		room := seedRoom(t, e, uuid.New())
		svc := e.cleanupService()

		_, err := svc.MergeDuplicates(ctx, room.ID, domain.StageType("KITCHEN"), []uuid.UUID{uuid.New()})
		assert.True(t, response.IsCode(err, response.ErrCodeValidation))

		_, err = svc.MergeDuplicates(ctx, room.ID, domain.StageTypeFFE, nil)
		assert.True(t, response.IsCode(err, response.ErrCodeValidation))

		_, err = svc.MergeDuplicates(ctx, room.ID, domain.StageTypeFFE, []uuid.UUID{uuid.New()})
		assert.True(t, response.IsCode(err, response.ErrCodeNotFound))
	})
}

// Cleanup never changes a room's section count, leaves duplicates only where it reported a
// conflict, and a second run has nothing left to merge.
func TestProperty_CleanupIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	types := []domain.StageType{domain.StageTypeDesign, domain.StageTypeDesignConcept, domain.StageTypeFFE}

	properties.Property("cleanup converges in one run", prop.ForAll(
		func(codes []int) bool {
			e := setupTestEnv(t)
			ctx := context.Background()
			rooms := []*domain.Room{seedRoom(t, e, uuid.New()), seedRoom(t, e, uuid.New())}

			for i, code := range codes {
				status := domain.StageStatusNotStarted
				if (code/3)%2 == 1 {
					status = domain.StageStatusInProgress
				}
				sections := make([]string, (code/6)%3)
				if status != domain.StageStatusNotStarted {
					for j := range sections {
						sections[j] = "content"
					}
				}
				seedStage(t, e, rooms[(code/18)%2].ID, types[code%3], status, i, sections...)
			}

			before := make(map[uuid.UUID]int64)
			for _, room := range rooms {
				before[room.ID] = sectionCount(t, e, room.ID)
			}

			svc := e.cleanupService()
			first, err := svc.RunCleanup(ctx, &dto.StageCleanupRequest{})
			if err != nil {
				return false
			}

			for _, room := range rooms {
				if sectionCount(t, e, room.ID) != before[room.ID] {
					return false
				}
			}

			contested := make(map[string]bool)
			for _, c := range first.Conflicts {
				contested[c.RoomID.String()+c.Type] = true
			}
			left, err := svc.FindDuplicates(ctx, nil)
			if err != nil {
				return false
			}
			for _, g := range left {
				if !contested[g.RoomID.String()+g.Type] {
					return false
				}
			}

			second, err := svc.RunCleanup(ctx, &dto.StageCleanupRequest{})
			if err != nil {
				return false
			}
			return len(second.Merges) == 0 && len(second.Conflicts) == len(first.Conflicts)
		},
		gen.SliceOfN(8, gen.IntRange(0, 35)),
	))

	properties.TestingRun(t)
}

// flakyLocker grants the first allowed acquisitions and fails the rest
type flakyLocker struct {
	inner   lock.Locker
	allowed int
}

func (l *flakyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.allowed == 0 {
		return nil, errors.New("lock backend unavailable")
	}
	l.allowed--
	return l.inner.Acquire(ctx, key)
}

func TestRunCleanup_FailureKeepsPartialReport(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	orgID := uuid.New()
	first := seedRoom(t, e, orgID)
	second := seedRoom(t, e, orgID)

	firstKeep := seedStage(t, e, first.ID, domain.StageTypeDrawings, domain.StageStatusNotStarted, 0)
	seedStage(t, e, first.ID, domain.StageTypeDrawings, domain.StageStatusNotStarted, 1)
	secondKeep := seedStage(t, e, second.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 10)
	seedStage(t, e, second.ID, domain.StageTypeFFE, domain.StageStatusNotStarted, 11)

	svc := NewStageCleanupService(e.store, &flakyLocker{inner: lock.NewLocalLocker(), allowed: 1}, e.activity, e.metrics, zap.NewNop())
	report, err := svc.RunCleanup(ctx, &dto.StageCleanupRequest{OrganizationID: &orgID})

	require.Error(t, err)
	assert.True(t, response.IsCode(err, response.ErrCodeInternal))
	var appErr *response.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 1, appErr.Meta["mergesCompleted"])

	// groups are visited in room order; whichever came second failed
	merged, mergedKeep, failed := first, firstKeep, second
	if appErr.Meta["roomId"] == first.ID.String() {
		merged, mergedKeep, failed = second, secondKeep, first
	}
	assert.Equal(t, failed.ID.String(), appErr.Meta["roomId"])

	require.NotNil(t, report)
	require.Len(t, report.Merges, 1)
	assert.Equal(t, mergedKeep.ID, report.Merges[0].SurvivorID)
	assert.Equal(t, 1, report.StagesRemoved)
	assert.Equal(t, []uuid.UUID{mergedKeep.ID}, remainingStageIDs(t, e, merged.ID))
	assert.Len(t, remainingStageIDs(t, e, failed.ID), 2)

	assert.Equal(t, float64(1), counterValue(t, e.metrics.StageMergesTotal))
	assert.Len(t, e.activity.EventsOfType(client.ActivityStageDuplicatesMerged), 1)
}
