package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// setupBathRoom materializes the bath template with the given number of towel bars
func setupBathRoom(t *testing.T, sinks int) (*testEnv, *domain.Room) {
	t.Helper()
	env := setupTestEnv(t)
	orgID := uuid.New()
	room := seedRoom(t, env, orgID)
	bt := seedBathTemplate(t, env, orgID, sinks)
	_, err := env.instanceService().Materialize(context.Background(), room.ID, materializeReq(bt.template.ID.String(), dto.MaterializeFailIfExists))
	require.NoError(t, err)
	return env, room
}

func towelBars(t *testing.T, env *testEnv, roomID uuid.UUID) []*domain.RoomFFEItem {
	t.Helper()
	rows := itemsNamed(flattenItems(t, env, roomID), "Towel Bar")
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubUnitIndex < rows[j].SubUnitIndex })
	return rows
}

func assertGroupConsistent(t *testing.T, rows []*domain.RoomFFEItem, want int) {
	t.Helper()
	require.Len(t, rows, want)
	for i, row := range rows {
		assert.Equal(t, i+1, row.SubUnitIndex)
		assert.Equal(t, want, row.Quantity)
		assert.Equal(t, *rows[0].QuantityGroupID, *row.QuantityGroupID)
	}
}

func TestUpdateItem_Status(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	ctx := context.Background()
	svc := env.itemService()
	mirror := itemsNamed(flattenItems(t, env, room.ID), "Mirror")[0]

	t.Run("성공: 현재 상태로 변경", func(t *testing.T) {
		resp, err := svc.SetStatus(ctx, mirror.ID, string(domain.ItemStatusCompleted))
		require.NoError(t, err)
		assert.Equal(t, string(domain.ItemStatusCompleted), resp.Item.Status)
		assert.Equal(t, 2, resp.Item.Version)
		assert.True(t, resp.Item.Visible)
	})

	t.Run("실패: 폐기된 상태는 할당 불가", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, mirror.ID, string(domain.ItemStatusSelected))
		require.Error(t, err)
		assert.True(t, response.IsCode(err, response.ErrCodeValidation))
	})

	t.Run("실패: 알 수 없는 상태", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, mirror.ID, "ORDERED")
		require.Error(t, err)
		assert.True(t, response.IsCode(err, response.ErrCodeValidation))
	})

	t.Run("성공: 폐기된 상태에서 벗어날 수 있음", func(t *testing.T) {
		require.NoError(t, env.db.Model(&domain.RoomFFEItem{}).Where("id = ?", mirror.ID).Update("status", domain.ItemStatusPending).Error)

		got, err := env.instanceService().GetInstance(ctx, room.ID)
		require.NoError(t, err)
		legacy := false
		for _, item := range got.Sections[1].Items {
			if item.ItemID == mirror.ID {
				legacy = item.LegacyStatus
			}
		}
		assert.True(t, legacy)

		resp, err := svc.SetStatus(ctx, mirror.ID, string(domain.ItemStatusUndecided))
		require.NoError(t, err)
		assert.Equal(t, string(domain.ItemStatusUndecided), resp.Item.Status)
		assert.False(t, resp.Item.LegacyStatus)
	})

	assert.Equal(t, 2.0, counterValue(t, env.metrics.FFEItemUpdatesTotal.WithLabelValues("status")))
	events := env.activity.EventsOfType(client.ActivityFFEItemUpdated)
	require.Len(t, events, 2)
	assert.Equal(t, mirror.ID, events[0].ResourceID)
	assert.Equal(t, room.OrganizationID, events[0].OrganizationID)
}

func TestUpdateItem_Note(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	ctx := context.Background()
	svc := env.itemService()
	mirror := itemsNamed(flattenItems(t, env, room.ID), "Mirror")[0]

	_, err := svc.SetNote(ctx, mirror.ID, strings.Repeat("가", MaxItemNoteLength+1))
	require.Error(t, err)
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))

	resp, err := svc.SetNote(ctx, mirror.ID, strings.Repeat("가", MaxItemNoteLength))
	require.NoError(t, err)
	assert.Equal(t, MaxItemNoteLength, len([]rune(resp.Item.Note)))
}

func TestUpdateItem_SelectedOptionDrivesSubItemVisibility(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	ctx := context.Background()
	svc := env.itemService()
	items := flattenItems(t, env, room.ID)
	vanity := itemsNamed(items, "Vanity")[0]
	subItems := childrenOf(items, vanity.ID)
	require.Len(t, subItems, 3)
	mirror := itemsNamed(items, "Mirror")[0]

	resp, err := svc.SetSelectedOption(ctx, vanity.ID, " custom ")
	require.NoError(t, err)
	assert.Equal(t, "Custom", resp.Item.SelectedOption, "declared spelling is stored")

	assert.Len(t, resp.Visibility, 4)
	assert.True(t, resp.Visibility[vanity.ID])
	for _, sub := range subItems {
		assert.True(t, resp.Visibility[sub.ID], sub.Name)
	}
	_, touched := resp.Visibility[mirror.ID]
	assert.False(t, touched, "unrelated items are not reported")

	after := flattenItems(t, env, room.ID)
	for _, sub := range childrenOf(after, vanity.ID) {
		assert.True(t, sub.Visible, "cached flag refreshed for %s", sub.Name)
		assert.Equal(t, 1, sub.Version, "visibility refresh does not bump versions")
	}
	for _, item := range after {
		if item.ParentItemID == nil {
			assert.True(t, item.Visible)
		}
	}

	resp, err = svc.SetSelectedOption(ctx, vanity.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "", resp.Item.SelectedOption)
	for _, sub := range subItems {
		assert.False(t, resp.Visibility[sub.ID])
	}

	_, err = svc.SetSelectedOption(ctx, vanity.ID, "Gold")
	require.Error(t, err)
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))
}

func TestUpdateItem_ExpectedVersion(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	ctx := context.Background()
	svc := env.itemService()
	mirror := itemsNamed(flattenItems(t, env, room.ID), "Mirror")[0]

	_, err := svc.UpdateItem(ctx, mirror.ID, &dto.UpdateFFEItemRequest{Note: strPtr("first"), ExpectedVersion: intPtr(1)})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, mirror.ID, &dto.UpdateFFEItemRequest{Note: strPtr("second"), ExpectedVersion: intPtr(1)})
	require.Error(t, err)
	var appErr *response.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, response.ErrCodeStaleVersion, appErr.Code)
	assert.Equal(t, 2, appErr.Meta["currentVersion"])
	assert.Equal(t, 1.0, counterValue(t, env.metrics.FFEItemWriteConflictsTotal.WithLabelValues("stale")))

	stored, err := env.store.Items.FindByID(ctx, mirror.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Note)
}

func TestUpdateItem_Validation(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	ctx := context.Background()
	svc := env.itemService()
	mirror := itemsNamed(flattenItems(t, env, room.ID), "Mirror")[0]

	tests := []struct {
		name   string
		itemID uuid.UUID
		req    *dto.UpdateFFEItemRequest
		code   string
	}{
		{"실패: 변경 필드 없음", mirror.ID, &dto.UpdateFFEItemRequest{}, response.ErrCodeValidation},
		{"실패: 요청 없음", mirror.ID, nil, response.ErrCodeValidation},
		{"실패: 수량 0", mirror.ID, &dto.UpdateFFEItemRequest{Quantity: intPtr(0)}, response.ErrCodeValidation},
		{"실패: 존재하지 않는 항목", uuid.New(), &dto.UpdateFFEItemRequest{Note: strPtr("x")}, response.ErrCodeNotFound},
		{"실패: 존재하지 않는 항목의 수량", uuid.New(), &dto.UpdateFFEItemRequest{Quantity: intPtr(2)}, response.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateItem(ctx, tt.itemID, tt.req)
			require.Error(t, err)
			assert.True(t, response.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestVersionedWriteError(t *testing.T) {
	id := uuid.New()

	err := versionedWriteError(id, repository.ErrVersionConflict)
	assert.True(t, response.IsCode(err, response.ErrCodeWriteConflict))

	err = versionedWriteError(id, errors.New("disk full"))
	assert.True(t, response.IsCode(err, response.ErrCodeInternal))
}

func TestSetQuantity_Fixed(t *testing.T) {
	env, room := setupBathRoom(t, 1)
	mirror := itemsNamed(flattenItems(t, env, room.ID), "Mirror")[0]

	resp, err := env.itemService().SetQuantity(context.Background(), mirror.ID, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Item.Quantity)
	assert.Empty(t, resp.AddedItemIDs)
	assert.Len(t, itemsNamed(flattenItems(t, env, room.ID), "Mirror"), 1)
}

func TestSetQuantity_PerSubUnitIncrease(t *testing.T) {
	env, room := setupBathRoom(t, 2)
	rows := towelBars(t, env, room.ID)

	resp, err := env.itemService().SetQuantity(context.Background(), rows[0].ID, 4, false)
	require.NoError(t, err)
	assert.Len(t, resp.AddedItemIDs, 2)
	assert.Empty(t, resp.RemovedItemIDs)
	assert.Equal(t, 4, resp.Item.Quantity)

	after := towelBars(t, env, room.ID)
	assertGroupConsistent(t, after, 4)
	for _, row := range after[2:] {
		assert.Equal(t, domain.ItemStatusNotStarted, row.Status)
		assert.True(t, row.Visible)
		assert.Equal(t, 1, row.Version)
	}
}

func TestSetQuantity_PerSubUnitClonesSubItemsWithFreshState(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	room := seedRoom(t, env, uuid.New())
	_, err := env.instanceService().Materialize(ctx, room.ID, materializeReq("default", dto.MaterializeFailIfExists))
	require.NoError(t, err)
	svc := env.itemService()

	sinks := itemsNamed(flattenItems(t, env, room.ID), "Sink")
	require.Len(t, sinks, 1)
	faucets := childrenOf(flattenItems(t, env, room.ID), sinks[0].ID)
	require.Len(t, faucets, 1)

	_, err = svc.SetNote(ctx, faucets[0].ID, "matte black")
	require.NoError(t, err)
	_, err = svc.SetSelectedOption(ctx, sinks[0].ID, "Vessel")
	require.NoError(t, err)

	resp, err := svc.SetQuantity(ctx, sinks[0].ID, 3, false)
	require.NoError(t, err)
	assert.Len(t, resp.AddedItemIDs, 4, "two sinks and their faucets")

	items := flattenItems(t, env, room.ID)
	sinks = itemsNamed(items, "Sink")
	sort.Slice(sinks, func(i, j int) bool { return sinks[i].SubUnitIndex < sinks[j].SubUnitIndex })
	assertGroupConsistent(t, sinks, 3)
	assert.Equal(t, "Vessel", sinks[0].SelectedOption)

	for _, sink := range sinks[1:] {
		assert.Empty(t, sink.SelectedOption)
		children := childrenOf(items, sink.ID)
		require.Len(t, children, 1)
		assert.Equal(t, "Faucet", children[0].Name)
		assert.Empty(t, children[0].Note)
		assert.Equal(t, domain.ItemStatusNotStarted, children[0].Status)
		assert.Equal(t, 1, children[0].Quantity)
	}
}

func TestSetQuantity_PerSubUnitDecrease(t *testing.T) {
	ctx := context.Background()

	t.Run("성공: 맞춤 설정 없는 행을 높은 번호부터 제거", func(t *testing.T) {
		env, room := setupBathRoom(t, 3)
		svc := env.itemService()
		rows := towelBars(t, env, room.ID)

		_, err := svc.SetNote(ctx, rows[0].ID, "polished nickel")
		require.NoError(t, err)

		resp, err := svc.SetQuantity(ctx, rows[0].ID, 2, false)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{rows[2].ID}, resp.RemovedItemIDs)

		after := towelBars(t, env, room.ID)
		assertGroupConsistent(t, after, 2)
		assert.Equal(t, rows[0].ID, after[0].ID)
		assert.Equal(t, rows[1].ID, after[1].ID)
	})

	t.Run("실패: 맞춤 설정 손실은 확인 필요", func(t *testing.T) {
		env, room := setupBathRoom(t, 3)
		svc := env.itemService()
		rows := towelBars(t, env, room.ID)

		_, err := svc.SetStatus(ctx, rows[1].ID, string(domain.ItemStatusUndecided))
		require.NoError(t, err)
		_, err = svc.SetNote(ctx, rows[2].ID, "left of mirror")
		require.NoError(t, err)

		_, err = svc.SetQuantity(ctx, rows[1].ID, 1, false)
		require.Error(t, err)
		var appErr *response.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, response.ErrCodeConflict, appErr.Code)
		assert.Equal(t, []string{rows[2].ID.String()}, appErr.Meta["itemIds"])
		assertGroupConsistent(t, towelBars(t, env, room.ID), 3)

		resp, err := svc.SetQuantity(ctx, rows[1].ID, 1, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{rows[0].ID, rows[2].ID}, resp.RemovedItemIDs)
		assert.Equal(t, rows[1].ID, resp.Item.ItemID)
		assert.Equal(t, 1, resp.Item.SubUnitIndex)

		after := towelBars(t, env, room.ID)
		assertGroupConsistent(t, after, 1)
		assert.Equal(t, domain.ItemStatusUndecided, after[0].Status)
	})

	t.Run("실패: 하위 항목의 맞춤 설정도 보호", func(t *testing.T) {
		env := setupTestEnv(t)
		room := seedRoom(t, env, uuid.New())
		_, err := env.instanceService().Materialize(ctx, room.ID, materializeReq("default", dto.MaterializeFailIfExists))
		require.NoError(t, err)
		svc := env.itemService()

		sink := itemsNamed(flattenItems(t, env, room.ID), "Sink")[0]
		resp, err := svc.SetQuantity(ctx, sink.ID, 2, false)
		require.NoError(t, err)
		require.Len(t, resp.AddedItemIDs, 2)

		items := flattenItems(t, env, room.ID)
		var second *domain.RoomFFEItem
		for _, s := range itemsNamed(items, "Sink") {
			if s.SubUnitIndex == 2 {
				second = s
			}
		}
		require.NotNil(t, second)
		faucet := childrenOf(items, second.ID)[0]
		_, err = svc.SetNote(ctx, faucet.ID, "wall mounted")
		require.NoError(t, err)
		_, err = svc.SetNote(ctx, sink.ID, "primary")
		require.NoError(t, err)

		_, err = svc.SetQuantity(ctx, sink.ID, 1, false)
		require.Error(t, err)
		var appErr *response.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, []string{second.ID.String()}, appErr.Meta["itemIds"])

		resp, err = svc.SetQuantity(ctx, sink.ID, 1, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{second.ID, faucet.ID}, resp.RemovedItemIDs)
		assert.Len(t, itemsNamed(flattenItems(t, env, room.ID), "Faucet"), 1)
	})
}

// After any sequence of confirmed quantity changes the group holds exactly n rows
// numbered 1..n, each carrying quantity n.
func TestProperty_QuantityConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("group rows always match the requested quantity", prop.ForAll(
		func(initial int, targets []int, customize []bool) bool {
			env, room := setupBathRoom(t, initial)
			svc := env.itemService()
			ctx := context.Background()

			for i, target := range targets {
				rows := towelBars(t, env, room.ID)
				edited := rows[i%len(rows)]
				if i < len(customize) && customize[i] {
					if _, err := svc.SetNote(ctx, edited.ID, "customized"); err != nil {
						return false
					}
				}
				if _, err := svc.SetQuantity(ctx, edited.ID, target, true); err != nil {
					return false
				}

				after := towelBars(t, env, room.ID)
				if len(after) != target {
					return false
				}
				for idx, row := range after {
					if row.SubUnitIndex != idx+1 || row.Quantity != target {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 4),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.SliceOfN(4, gen.Bool()),
	))

	properties.TestingRun(t)
}
