package dto

import (
	"time"

	"github.com/google/uuid"
)

// Materialize modes
const (
	MaterializeFailIfExists   = "FAIL_IF_EXISTS"
	MaterializeReturnExisting = "RETURN_EXISTING"

	// DefaultTemplateRef selects the built-in default FFE set
	DefaultTemplateRef = "default"
)

// MaterializeFFERequest represents the request to create a room's FFE instance
type MaterializeFFERequest struct {
	// TemplateID is a template UUID or "default"
	TemplateID string `json:"templateId" binding:"required"`
	Mode       string `json:"mode" binding:"required,oneof=FAIL_IF_EXISTS RETURN_EXISTING"`
}

// MaterializeFFEResponse wraps the instance and whether this call created it
type MaterializeFFEResponse struct {
	Created  bool                 `json:"created"`
	Instance *FFEInstanceResponse `json:"instance"`
}

// FFEInstanceResponse represents a room's FFE tree with resolved visibility
type FFEInstanceResponse struct {
	InstanceID   uuid.UUID            `json:"instanceId"`
	RoomID       uuid.UUID            `json:"roomId"`
	TemplateID   *uuid.UUID           `json:"templateId"`
	TemplateName string               `json:"templateName"`
	Sections     []FFESectionResponse `json:"sections"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// FFESectionResponse represents one section of an instance
type FFESectionResponse struct {
	SectionID    uuid.UUID         `json:"sectionId"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	DisplayOrder int               `json:"displayOrder"`
	Items        []FFEItemResponse `json:"items"`
}

// FFEItemResponse represents a top-level item or a sub-item
type FFEItemResponse struct {
	ItemID           uuid.UUID         `json:"itemId"`
	SectionID        uuid.UUID         `json:"sectionId"`
	TemplateItemID   *uuid.UUID        `json:"templateItemId"`
	ParentItemID     *uuid.UUID        `json:"parentItemId"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	DisplayOrder     int               `json:"displayOrder"`
	Status           string            `json:"status"`
	LegacyStatus     bool              `json:"legacyStatus"`
	Note             string            `json:"note"`
	SelectedOption   string            `json:"selectedOption"`
	Options          []string          `json:"options"`
	Quantity         int               `json:"quantity"`
	QuantityMode     string            `json:"quantityMode"`
	QuantityGroupID  *uuid.UUID        `json:"quantityGroupId"`
	SubUnitIndex     int               `json:"subUnitIndex"`
	SubUnitLabel     string            `json:"subUnitLabel"`
	VisibilityMode   string            `json:"visibilityMode"`
	VisibilityOption string            `json:"visibilityOption"`
	Visible          bool              `json:"visible"`
	Version          int               `json:"version"`
	SubItems         []FFEItemResponse `json:"subItems,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// UpdateFFEItemRequest represents a partial item update. Fields are applied in the
// order status, note, selectedOption, quantity within one transaction.
type UpdateFFEItemRequest struct {
	Status          *string `json:"status"`
	Note            *string `json:"note" binding:"omitempty,max=5000"`
	SelectedOption  *string `json:"selectedOption" binding:"omitempty,max=100"`
	Quantity        *int    `json:"quantity"`
	ConfirmDataLoss bool    `json:"confirmDataLoss"`
	ExpectedVersion *int    `json:"expectedVersion" binding:"omitempty,min=1"`
}

// HasChanges reports whether the request touches any field
func (r *UpdateFFEItemRequest) HasChanges() bool {
	return r.Status != nil || r.Note != nil || r.SelectedOption != nil || r.Quantity != nil
}

// UpdateFFEItemResponse is the updated item plus the recomputed visibility of the
// items whose visibility depends on it
type UpdateFFEItemResponse struct {
	Item           FFEItemResponse    `json:"item"`
	Visibility     map[uuid.UUID]bool `json:"visibility"`
	AddedItemIDs   []uuid.UUID        `json:"addedItemIds,omitempty"`
	RemovedItemIDs []uuid.UUID        `json:"removedItemIds,omitempty"`
}
