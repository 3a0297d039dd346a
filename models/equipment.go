// models/equipment.go
package models

import "time"

const EquipmentTable = "eut_equipment"

type EquipmentStatus string

const (
	StatusAvailable   EquipmentStatus = "available"
	StatusUnavailable EquipmentStatus = "unavailable"
	StatusCheckedOut  EquipmentStatus = "checked-out"
)

func (s EquipmentStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusCheckedOut:
		return true
	}
	return false
}

// Equipment is one tracked physical unit. Status is written by the lifecycle
// coordinator on checkout/check-in and by guarded administrative overrides.
type Equipment struct {
	ID          string          `gorm:"size:36;primaryKey" json:"id"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Brand       string          `gorm:"size:200" json:"brand"`
	IntakeDate  *time.Time      `json:"intakeDate,omitempty"`
	Status      EquipmentStatus `gorm:"size:20;not null;default:'available';index" json:"status"`
	ScanCode    *string         `gorm:"size:255;uniqueIndex" json:"scanCode,omitempty"` // printed tag payload
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (Equipment) TableName() string { return EquipmentTable }
