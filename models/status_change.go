package models

import "time"

const StatusLogTable = "eut_status_log"

// StatusChange records an administrative status override on a unit.
type StatusChange struct {
	ID          string          `gorm:"size:36;primaryKey" json:"id"`
	EquipmentID string          `gorm:"size:36;index;not null" json:"equipmentId"`
	FromStatus  EquipmentStatus `gorm:"size:20;not null" json:"fromStatus"`
	ToStatus    EquipmentStatus `gorm:"size:20;not null" json:"toStatus"`
	Actor       string          `gorm:"size:255;not null" json:"actor"`
	Reason      *string         `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (StatusChange) TableName() string { return StatusLogTable }
