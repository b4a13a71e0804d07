package domain

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ItemStatus represents the selection progress of a room FFE item
type ItemStatus string

const (
	ItemStatusNotStarted ItemStatus = "NOT_STARTED"
	ItemStatusUndecided  ItemStatus = "UNDECIDED"
	ItemStatusCompleted  ItemStatus = "COMPLETED"

	// Retired values still present on older rows. They can be read and moved
	// away from but are never assigned again.
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusSelected  ItemStatus = "SELECTED"
	ItemStatusConfirmed ItemStatus = "CONFIRMED"
	ItemStatusNotNeeded ItemStatus = "NOT_NEEDED"
)

// IsCurrent reports whether the status may be assigned by new writes
func (s ItemStatus) IsCurrent() bool {
	switch s {
	case ItemStatusNotStarted, ItemStatusUndecided, ItemStatusCompleted:
		return true
	default:
		return false
	}
}

// IsLegacy reports whether the status is a retired value
func (s ItemStatus) IsLegacy() bool {
	switch s {
	case ItemStatusPending, ItemStatusSelected, ItemStatusConfirmed, ItemStatusNotNeeded:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is readable at all
func (s ItemStatus) Valid() bool {
	return s.IsCurrent() || s.IsLegacy()
}

// RoomFFEInstance is the room-owned, template-independent copy of FFE sections and items
type RoomFFEInstance struct {
	BaseModel
	RoomID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_room_ffe_instances_room_id" json:"room_id"`
	TemplateID   *uuid.UUID       `gorm:"type:uuid;index:idx_room_ffe_instances_template_id" json:"template_id"`
	TemplateName string           `gorm:"type:varchar(255)" json:"template_name"`
	Room         *Room            `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	Sections     []RoomFFESection `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

// TableName specifies the table name for RoomFFEInstance
func (RoomFFEInstance) TableName() string {
	return "room_ffe_instances"
}

// RoomFFESection is an ordered grouping within an instance
type RoomFFESection struct {
	BaseModel
	InstanceID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_room_ffe_sections_instance_id" json:"instance_id"`
	Name         string        `gorm:"type:varchar(255);not null" json:"name"`
	Description  string        `gorm:"type:text" json:"description"`
	DisplayOrder int           `gorm:"type:int;not null;default:0" json:"display_order"`
	Items        []RoomFFEItem `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name for RoomFFESection
func (RoomFFESection) TableName() string {
	return "room_ffe_sections"
}

// RoomFFEItem is one independently tracked FFE row of a room.
// Visible is a cache of the resolver's result and is never authoritative.
type RoomFFEItem struct {
	BaseModel
	InstanceID       uuid.UUID                   `gorm:"type:uuid;not null;index:idx_room_ffe_items_instance_id" json:"instance_id"`
	SectionID        uuid.UUID                   `gorm:"type:uuid;not null;index:idx_room_ffe_items_section_id" json:"section_id"`
	TemplateItemID   *uuid.UUID                  `gorm:"type:uuid" json:"template_item_id"`
	ParentItemID     *uuid.UUID                  `gorm:"type:uuid;index:idx_room_ffe_items_parent_item_id" json:"parent_item_id"`
	Name             string                      `gorm:"type:varchar(255);not null" json:"name"`
	Description      string                      `gorm:"type:text" json:"description"`
	Category         string                      `gorm:"type:varchar(100)" json:"category"`
	DisplayOrder     int                         `gorm:"type:int;not null;default:0" json:"display_order"`
	Status           ItemStatus                  `gorm:"type:varchar(20);not null;default:'NOT_STARTED'" json:"status"`
	Note             string                      `gorm:"type:text" json:"note"`
	SelectedOption   string                      `gorm:"type:varchar(100)" json:"selected_option"`
	Options          datatypes.JSONSlice[string] `json:"options"`
	Quantity         int                         `gorm:"type:int;not null;default:1" json:"quantity"`
	QuantityMode     QuantityMode                `gorm:"type:varchar(20);not null;default:'FIXED'" json:"quantity_mode"`
	QuantityGroupID  *uuid.UUID                  `gorm:"type:uuid;index:idx_room_ffe_items_quantity_group_id" json:"quantity_group_id"`
	SubUnitIndex     int                         `gorm:"type:int;not null;default:0" json:"sub_unit_index"`
	SubUnitLabel     string                      `gorm:"type:varchar(100)" json:"sub_unit_label"`
	VisibilityMode   VisibilityMode              `gorm:"type:varchar(20);not null;default:'ALWAYS'" json:"visibility_mode"`
	VisibilityOption string                      `gorm:"type:varchar(100)" json:"visibility_option"`
	Visible          bool                        `gorm:"not null" json:"visible"`
	Version          int                         `gorm:"type:int;not null;default:1" json:"version"`
}

// TableName specifies the table name for RoomFFEItem
func (RoomFFEItem) TableName() string {
	return "room_ffe_items"
}

// HasOption reports whether option is one of the item's declared options.
// Items without declared options accept any option.
func (i *RoomFFEItem) HasOption(option string) bool {
	if len(i.Options) == 0 {
		return true
	}
	for _, o := range i.Options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(option)) {
			return true
		}
	}
	return false
}

// IsCustomized reports whether the row carries user work of its own
func (i *RoomFFEItem) IsCustomized() bool {
	return i.Status != ItemStatusNotStarted ||
		strings.TrimSpace(i.Note) != "" ||
		strings.TrimSpace(i.SelectedOption) != ""
}
