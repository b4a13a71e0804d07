package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuantityMode describes how many rows an FFE item turns into
type QuantityMode string

const (
	// QuantityModeFixed keeps a single row carrying a count
	QuantityModeFixed QuantityMode = "FIXED"
	// QuantityModePerSubUnit keeps one independently tracked row per sub-unit (e.g. one per sink)
	QuantityModePerSubUnit QuantityMode = "PER_SUB_UNIT"
)

// Valid reports whether the quantity mode is a known value
func (m QuantityMode) Valid() bool {
	return m == QuantityModeFixed || m == QuantityModePerSubUnit
}

// VisibilityMode is the predicate a sub-item declares against its parent's chosen option
type VisibilityMode string

const (
	VisibilityAlways       VisibilityMode = "ALWAYS"
	VisibilityParentOption VisibilityMode = "PARENT_OPTION"
)

// Valid reports whether the visibility mode is a known value
func (m VisibilityMode) Valid() bool {
	return m == VisibilityAlways || m == VisibilityParentOption
}

// FFETemplate is an organization-scoped, reusable definition of FFE sections and items
type FFETemplate struct {
	BaseModel
	OrganizationID uuid.UUID            `gorm:"type:uuid;not null;index:idx_ffe_templates_organization_id" json:"organization_id"`
	Name           string               `gorm:"type:varchar(255);not null" json:"name"`
	Description    string               `gorm:"type:text" json:"description"`
	RoomType       string               `gorm:"type:varchar(100)" json:"room_type"`
	IsActive       bool                 `gorm:"not null" json:"is_active"`
	Sections       []FFETemplateSection `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

// TableName specifies the table name for FFETemplate
func (FFETemplate) TableName() string {
	return "ffe_templates"
}

// FFETemplateSection is a named, ordered grouping of template items
type FFETemplateSection struct {
	BaseModel
	TemplateID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_ffe_template_sections_template_id" json:"template_id"`
	Name         string            `gorm:"type:varchar(255);not null" json:"name"`
	Description  string            `gorm:"type:text" json:"description"`
	DisplayOrder int               `gorm:"type:int;not null;default:0" json:"display_order"`
	Items        []FFETemplateItem `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name for FFETemplateSection
func (FFETemplateSection) TableName() string {
	return "ffe_template_sections"
}

// FFETemplateItem defines one trackable FFE item.
// Items referenced from another item's LinkedItemIDs are sub-item definitions and
// are only materialized underneath that parent.
type FFETemplateItem struct {
	BaseModel
	SectionID        uuid.UUID                      `gorm:"type:uuid;not null;index:idx_ffe_template_items_section_id" json:"section_id"`
	Name             string                         `gorm:"type:varchar(255);not null" json:"name"`
	Description      string                         `gorm:"type:text" json:"description"`
	Category         string                         `gorm:"type:varchar(100)" json:"category"`
	DisplayOrder     int                            `gorm:"type:int;not null;default:0" json:"display_order"`
	QuantityMode     QuantityMode                   `gorm:"type:varchar(20);not null;default:'FIXED'" json:"quantity_mode"`
	DefaultQuantity  int                            `gorm:"type:int;not null;default:1" json:"default_quantity"`
	SubUnitLabel     string                         `gorm:"type:varchar(100)" json:"sub_unit_label"`
	Options          datatypes.JSONSlice[string]    `json:"options"`
	VisibilityMode   VisibilityMode                 `gorm:"type:varchar(20);not null;default:'ALWAYS'" json:"visibility_mode"`
	VisibilityOption string                         `gorm:"type:varchar(100)" json:"visibility_option"`
	LinkedItemIDs    datatypes.JSONSlice[uuid.UUID] `json:"linked_item_ids"`
}

// TableName specifies the table name for FFETemplateItem
func (FFETemplateItem) TableName() string {
	return "ffe_template_items"
}
