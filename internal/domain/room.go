package domain

import "github.com/google/uuid"

// Room represents a physical room of a design project
type Room struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index:idx_rooms_organization_id" json:"organization_id"`
	ProjectID      uuid.UUID `gorm:"type:uuid;not null;index:idx_rooms_project_id" json:"project_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	RoomType       string    `gorm:"type:varchar(100)" json:"room_type"`
	Stages         []Stage   `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
}

// TableName specifies the table name for Room
func (Room) TableName() string {
	return "rooms"
}
