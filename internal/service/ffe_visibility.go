package service

import (
	"strings"

	"github.com/google/uuid"

	"room-ffe-api/internal/domain"
)

// ResolveVisibility computes the visibility of every item of one instance.
// Top-level items are always visible. A sub-item is visible only when its parent is a
// top-level item present in items and the sub-item's predicate holds for the parent's
// selected option. Sub-items of sub-items are never visible.
func ResolveVisibility(items []*domain.RoomFFEItem) map[uuid.UUID]bool {
	byID := make(map[uuid.UUID]*domain.RoomFFEItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	visibility := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		visibility[item.ID] = isItemVisible(item, byID)
	}
	return visibility
}

func isItemVisible(item *domain.RoomFFEItem, byID map[uuid.UUID]*domain.RoomFFEItem) bool {
	if item.ParentItemID == nil {
		return true
	}

	parent, ok := byID[*item.ParentItemID]
	if !ok || parent.ParentItemID != nil {
		return false
	}

	return predicateHolds(item.VisibilityMode, item.VisibilityOption, parent.SelectedOption)
}

func predicateHolds(mode domain.VisibilityMode, required, selected string) bool {
	switch mode {
	case "", domain.VisibilityAlways:
		return true
	case domain.VisibilityParentOption:
		selected = strings.TrimSpace(selected)
		if selected == "" {
			return false
		}
		return strings.EqualFold(selected, strings.TrimSpace(required))
	default:
		return false
	}
}

// staleVisibility returns the ids whose cached flag disagrees with visibility, split by target value
func staleVisibility(items []*domain.RoomFFEItem, visibility map[uuid.UUID]bool) (show, hide []uuid.UUID) {
	for _, item := range items {
		visible := visibility[item.ID]
		if item.Visible == visible {
			continue
		}
		if visible {
			show = append(show, item.ID)
		} else {
			hide = append(hide, item.ID)
		}
	}
	return show, hide
}
