package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// MaxItemNoteLength is the longest note, in characters, an item may carry
const MaxItemNoteLength = 5000

// FFEItemService defines the interface for tracking the state of room FFE items.
// Each setter is a single-field UpdateItem.
type FFEItemService interface {
	UpdateItem(ctx context.Context, itemID uuid.UUID, req *dto.UpdateFFEItemRequest) (*dto.UpdateFFEItemResponse, error)
	SetStatus(ctx context.Context, itemID uuid.UUID, status string) (*dto.UpdateFFEItemResponse, error)
	SetNote(ctx context.Context, itemID uuid.UUID, note string) (*dto.UpdateFFEItemResponse, error)
	SetSelectedOption(ctx context.Context, itemID uuid.UUID, option string) (*dto.UpdateFFEItemResponse, error)
	SetQuantity(ctx context.Context, itemID uuid.UUID, count int, confirmDataLoss bool) (*dto.UpdateFFEItemResponse, error)
}

// ffeItemServiceImpl is the implementation of FFEItemService
type ffeItemServiceImpl struct {
	store    *repository.Store
	locker   lock.Locker
	activity client.ActivityClient
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewFFEItemService creates a new instance of FFEItemService
func NewFFEItemService(
	store *repository.Store,
	locker lock.Locker,
	activity client.ActivityClient,
	m *metrics.Metrics,
	logger *zap.Logger,
) FFEItemService {
	if activity == nil {
		activity = client.NewNoOpActivityClient()
	}
	return &ffeItemServiceImpl{
		store:    store,
		locker:   locker,
		activity: activity,
		metrics:  m,
		logger:   logger,
	}
}

func (s *ffeItemServiceImpl) SetStatus(ctx context.Context, itemID uuid.UUID, status string) (*dto.UpdateFFEItemResponse, error) {
	return s.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Status: &status})
}

func (s *ffeItemServiceImpl) SetNote(ctx context.Context, itemID uuid.UUID, note string) (*dto.UpdateFFEItemResponse, error) {
	return s.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Note: &note})
}

func (s *ffeItemServiceImpl) SetSelectedOption(ctx context.Context, itemID uuid.UUID, option string) (*dto.UpdateFFEItemResponse, error) {
	return s.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{SelectedOption: &option})
}

func (s *ffeItemServiceImpl) SetQuantity(ctx context.Context, itemID uuid.UUID, count int, confirmDataLoss bool) (*dto.UpdateFFEItemResponse, error) {
	return s.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Quantity: &count, ConfirmDataLoss: confirmDataLoss})
}

// itemUpdate is what one UpdateItem transaction produced
type itemUpdate struct {
	item       *domain.RoomFFEItem
	instance   *domain.RoomFFEInstance
	visibility map[uuid.UUID]bool
	added      []uuid.UUID
	removed    []uuid.UUID
	fields     []string
}

// UpdateItem applies status, note, selected option and quantity in that order, in one transaction.
// A PER_SUB_UNIT quantity change rewrites the item's whole quantity group under the room lock.
func (s *ffeItemServiceImpl) UpdateItem(ctx context.Context, itemID uuid.UUID, req *dto.UpdateFFEItemRequest) (*dto.UpdateFFEItemResponse, error) {
	if err := validateItemUpdate(req); err != nil {
		return nil, err
	}

	if req.Quantity != nil {
		instance, err := s.instanceOfItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		release, err := s.locker.Acquire(ctx, lock.RoomKey(instance.RoomID))
		if err != nil {
			return nil, response.NewAppError(response.ErrCodeInternal, "Failed to lock room", err.Error())
		}
		defer release()
	}

	var result *itemUpdate
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		result, err = s.applyItemUpdate(ctx, tx, itemID, req)
		return err
	})
	if err != nil {
		switch {
		case response.IsCode(err, response.ErrCodeStaleVersion):
			s.recordConflict("stale")
		case response.IsCode(err, response.ErrCodeWriteConflict):
			s.recordConflict("race")
		}
		return nil, asAppError(err, "Failed to update FFE item")
	}

	if s.metrics != nil {
		s.metrics.IncrementItemUpdate(result.fields...)
	}

	s.logger.Info("FFE item updated",
		zap.String("item_id", result.item.ID.String()),
		zap.String("instance_id", result.item.InstanceID.String()),
		zap.Strings("fields", result.fields),
		zap.Int("version", result.item.Version),
		zap.Int("added", len(result.added)),
		zap.Int("removed", len(result.removed)),
	)

	s.publishItemUpdated(ctx, result)

	return &dto.UpdateFFEItemResponse{
		Item:           toFFEItemResponse(result.item, result.visibility[result.item.ID]),
		Visibility:     result.visibility,
		AddedItemIDs:   result.added,
		RemovedItemIDs: result.removed,
	}, nil
}

func validateItemUpdate(req *dto.UpdateFFEItemRequest) error {
	if req == nil || !req.HasChanges() {
		return response.NewValidationError("No fields to update", "")
	}

	if req.Status != nil {
		status := domain.ItemStatus(*req.Status)
		if status.IsLegacy() {
			return response.NewValidationError("Status has been retired and can no longer be assigned", *req.Status)
		}
		if !status.IsCurrent() {
			return response.NewValidationError("Invalid item status", *req.Status)
		}
	}

	if req.Note != nil && utf8.RuneCountInString(*req.Note) > MaxItemNoteLength {
		return response.NewValidationError("Note is too long",
			fmt.Sprintf("note must be at most %d characters", MaxItemNoteLength))
	}

	if req.Quantity != nil && *req.Quantity < 1 {
		return response.NewValidationError("Quantity must be at least 1", fmt.Sprintf("quantity=%d", *req.Quantity))
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion < 1 {
		return response.NewValidationError("Invalid expected version", "")
	}

	return nil
}

func (s *ffeItemServiceImpl) instanceOfItem(ctx context.Context, itemID uuid.UUID) (*domain.RoomFFEInstance, error) {
	item, err := s.store.Items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("FFE item not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE item", err.Error())
	}

	instance, err := s.store.Instances.FindByID(ctx, item.InstanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("FFE instance not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE instance", err.Error())
	}
	return instance, nil
}

func (s *ffeItemServiceImpl) applyItemUpdate(ctx context.Context, tx *repository.Store, itemID uuid.UUID, req *dto.UpdateFFEItemRequest) (*itemUpdate, error) {
	item, err := tx.Items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("FFE item not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE item", err.Error())
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion != item.Version {
		return nil, response.NewAppError(response.ErrCodeStaleVersion, "FFE item was changed by someone else",
			fmt.Sprintf("expected version %d, current version %d", *req.ExpectedVersion, item.Version)).
			WithMeta("itemId", item.ID.String()).
			WithMeta("currentVersion", item.Version)
	}

	instance, err := tx.Instances.FindByID(ctx, item.InstanceID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE instance", err.Error())
	}

	result := &itemUpdate{item: item, instance: instance}
	fields := make(map[string]interface{})

	if req.Status != nil {
		item.Status = domain.ItemStatus(*req.Status)
		fields["status"] = item.Status
		result.fields = append(result.fields, "status")
	}

	if req.Note != nil {
		item.Note = *req.Note
		fields["note"] = item.Note
		result.fields = append(result.fields, "note")
	}

	if req.SelectedOption != nil {
		option := strings.TrimSpace(*req.SelectedOption)
		if option != "" {
			if !item.HasOption(option) {
				return nil, response.NewValidationError("Option is not available for this item", option).
					WithMeta("options", []string(item.Options))
			}
			option = declaredOption(item, option)
		}
		item.SelectedOption = option
		fields["selected_option"] = item.SelectedOption
		result.fields = append(result.fields, "selected_option")
	}

	resizeGroup := false
	if req.Quantity != nil {
		result.fields = append(result.fields, "quantity")
		if item.QuantityMode == domain.QuantityModePerSubUnit && item.QuantityGroupID != nil && item.ParentItemID == nil {
			resizeGroup = true
		} else {
			item.Quantity = *req.Quantity
			fields["quantity"] = item.Quantity
		}
	}

	if len(fields) > 0 {
		if err := tx.Items.UpdateWithVersion(ctx, item, fields); err != nil {
			return nil, versionedWriteError(item.ID, err)
		}
	}

	if resizeGroup {
		survivor, added, removed, err := resizeQuantityGroup(ctx, tx, item, *req.Quantity, req.ConfirmDataLoss)
		if err != nil {
			return nil, err
		}
		result.item = survivor
		result.added = added
		result.removed = removed
	}

	all, err := tx.Items.FindByInstanceID(ctx, item.InstanceID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE items", err.Error())
	}
	visibility := ResolveVisibility(all)
	show, hide := staleVisibility(all, visibility)
	if err := tx.Items.UpdateVisibility(ctx, show, true); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to refresh item visibility", err.Error())
	}
	if err := tx.Items.UpdateVisibility(ctx, hide, false); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to refresh item visibility", err.Error())
	}
	result.item.Visible = visibility[result.item.ID]

	result.visibility = affectedVisibility(all, visibility, result.item.ID, result.added)
	return result, nil
}

// declaredOption returns the item's own spelling of option
func declaredOption(item *domain.RoomFFEItem, option string) string {
	for _, o := range item.Options {
		if strings.EqualFold(strings.TrimSpace(o), option) {
			return o
		}
	}
	return option
}

func versionedWriteError(itemID uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return response.NewAppError(response.ErrCodeWriteConflict, "FFE item was changed concurrently", "").
			WithMeta("itemId", itemID.String())
	}
	return response.NewAppError(response.ErrCodeInternal, "Failed to update FFE item", err.Error())
}

// affectedVisibility narrows visibility to the edited item, its sub-items and every added row
func affectedVisibility(all []*domain.RoomFFEItem, visibility map[uuid.UUID]bool, itemID uuid.UUID, added []uuid.UUID) map[uuid.UUID]bool {
	roots := map[uuid.UUID]bool{itemID: true}
	for _, id := range added {
		roots[id] = true
	}

	affected := make(map[uuid.UUID]bool)
	for _, item := range all {
		if roots[item.ID] || (item.ParentItemID != nil && roots[*item.ParentItemID]) {
			affected[item.ID] = visibility[item.ID]
		}
	}
	return affected
}

// resizeQuantityGroup grows or shrinks the PER_SUB_UNIT group of item to target rows.
// Rows are removed uncustomized first, highest sub-unit index first; removing customized
// rows requires confirmDataLoss. Surviving rows are renumbered 1..target. It returns the
// row that represents the edited item afterwards.
func resizeQuantityGroup(ctx context.Context, tx *repository.Store, item *domain.RoomFFEItem, target int, confirmDataLoss bool) (*domain.RoomFFEItem, []uuid.UUID, []uuid.UUID, error) {
	rows, err := tx.Items.FindByQuantityGroup(ctx, *item.QuantityGroupID)
	if err != nil {
		return nil, nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch quantity group", err.Error())
	}

	found := false
	for i, row := range rows {
		if row.ID == item.ID {
			rows[i] = item
			found = true
		}
	}
	if !found {
		rows = append(rows, item)
	}

	rowIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		rowIDs = append(rowIDs, row.ID)
	}
	children, err := tx.Items.FindByParentIDs(ctx, rowIDs)
	if err != nil {
		return nil, nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch sub-items", err.Error())
	}
	childrenOf := make(map[uuid.UUID][]*domain.RoomFFEItem)
	for _, child := range children {
		childrenOf[*child.ParentItemID] = append(childrenOf[*child.ParentItemID], child)
	}

	customized := func(row *domain.RoomFFEItem) bool {
		if row.IsCustomized() {
			return true
		}
		for _, child := range childrenOf[row.ID] {
			if child.IsCustomized() {
				return true
			}
		}
		return false
	}

	var (
		added     []uuid.UUID
		removed   []uuid.UUID
		survivors []*domain.RoomFFEItem
		newRows   []*domain.RoomFFEItem
	)

	switch {
	case target < len(rows):
		candidates := append([]*domain.RoomFFEItem(nil), rows...)
		sort.SliceStable(candidates, func(i, j int) bool {
			ci, cj := customized(candidates[i]), customized(candidates[j])
			if ci != cj {
				return !ci
			}
			ei, ej := candidates[i].ID == item.ID, candidates[j].ID == item.ID
			if ei != ej {
				return !ei
			}
			return candidates[i].SubUnitIndex > candidates[j].SubUnitIndex
		})

		toRemove := candidates[:len(rows)-target]
		removing := make(map[uuid.UUID]bool, len(toRemove))
		var lost []string
		for _, row := range toRemove {
			removing[row.ID] = true
			if customized(row) {
				lost = append(lost, row.ID.String())
			}
		}

		if len(lost) > 0 && !confirmDataLoss {
			return nil, nil, nil, response.NewConflictError("Reducing quantity would discard customized items",
				fmt.Sprintf("%d customized item(s) would be removed; resend with confirmDataLoss to proceed", len(lost))).
				WithMeta("itemIds", lost).
				WithMeta("quantity", len(rows)).
				WithMeta("requestedQuantity", target)
		}

		for _, row := range rows {
			if removing[row.ID] {
				removed = append(removed, row.ID)
				for _, child := range childrenOf[row.ID] {
					removed = append(removed, child.ID)
				}
				continue
			}
			survivors = append(survivors, row)
		}

		if err := tx.Items.DeleteByIDs(ctx, removed); err != nil {
			return nil, nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to remove items", err.Error())
		}

	case target > len(rows):
		survivors = rows
		for i := len(rows); i < target; i++ {
			row := cloneFreshRow(item, nil)
			newRows = append(newRows, row)
			added = append(added, row.ID)
			for _, child := range childrenOf[item.ID] {
				sub := cloneFreshRow(child, &row.ID)
				newRows = append(newRows, sub)
				added = append(added, sub.ID)
			}
		}

	default:
		survivors = rows
	}

	sort.SliceStable(survivors, func(i, j int) bool { return survivors[i].SubUnitIndex < survivors[j].SubUnitIndex })
	for i, row := range survivors {
		index := i + 1
		if row.SubUnitIndex == index && row.Quantity == target {
			continue
		}
		if err := tx.Items.UpdateWithVersion(ctx, row, map[string]interface{}{
			"sub_unit_index": index,
			"quantity":       target,
		}); err != nil {
			return nil, nil, nil, versionedWriteError(row.ID, err)
		}
		row.SubUnitIndex = index
		row.Quantity = target
	}

	next := len(survivors) + 1
	for _, row := range newRows {
		if row.ParentItemID == nil {
			row.Quantity = target
			row.SubUnitIndex = next
			next++
		}
	}
	if err := tx.Items.CreateBatch(ctx, newRows); err != nil {
		return nil, nil, nil, response.NewAppError(response.ErrCodeInternal, "Failed to add items", err.Error())
	}

	representative := item
	for _, id := range removed {
		if id == item.ID && len(survivors) > 0 {
			representative = survivors[0]
		}
	}
	return representative, added, removed, nil
}

// cloneFreshRow copies the definition of source into a new row without any user state
func cloneFreshRow(source *domain.RoomFFEItem, parentID *uuid.UUID) *domain.RoomFFEItem {
	row := &domain.RoomFFEItem{
		BaseModel:        domain.BaseModel{ID: uuid.New()},
		InstanceID:       source.InstanceID,
		SectionID:        source.SectionID,
		TemplateItemID:   source.TemplateItemID,
		ParentItemID:     parentID,
		Name:             source.Name,
		Description:      source.Description,
		Category:         source.Category,
		DisplayOrder:     source.DisplayOrder,
		Status:           domain.ItemStatusNotStarted,
		Options:          copyOptions(source.Options),
		Quantity:         source.Quantity,
		QuantityMode:     source.QuantityMode,
		QuantityGroupID:  source.QuantityGroupID,
		SubUnitIndex:     source.SubUnitIndex,
		SubUnitLabel:     source.SubUnitLabel,
		VisibilityMode:   source.VisibilityMode,
		VisibilityOption: source.VisibilityOption,
		Visible:          parentID == nil,
		Version:          1,
	}
	return row
}

func (s *ffeItemServiceImpl) recordConflict(kind string) {
	if s.metrics != nil {
		s.metrics.IncrementItemWriteConflict(kind)
	}
}

func (s *ffeItemServiceImpl) publishItemUpdated(ctx context.Context, result *itemUpdate) {
	room, err := s.store.Rooms.FindByID(ctx, result.instance.RoomID)
	if err != nil {
		s.logger.Warn("Skipping activity event: room lookup failed",
			zap.String("room_id", result.instance.RoomID.String()),
			zap.Error(err),
		)
		return
	}

	publishActivity(ctx, s.activity, s.logger, client.ActivityEvent{
		Type:           client.ActivityFFEItemUpdated,
		OrganizationID: room.OrganizationID,
		RoomID:         room.ID,
		ResourceType:   "FFE_ITEM",
		ResourceID:     result.item.ID,
		Metadata: map[string]interface{}{
			"itemName": result.item.Name,
			"fields":   result.fields,
			"version":  result.item.Version,
			"added":    len(result.added),
			"removed":  len(result.removed),
		},
	})
}
