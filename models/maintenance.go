package models

import "time"

const MaintenanceTable = "eut_maintenance"

type MaintenanceRecord struct {
	ID          string    `gorm:"size:36;primaryKey" json:"id"`
	EquipmentID string    `gorm:"size:36;index;not null" json:"equipmentId"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Cost        float64   `gorm:"not null;default:0" json:"cost"`
	PerformedAt time.Time `gorm:"index;not null" json:"performedAt"`
	PerformedBy string    `gorm:"size:255" json:"performedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (MaintenanceRecord) TableName() string { return MaintenanceTable }
