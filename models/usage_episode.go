// models/usage_episode.go
package models

import "time"

const UsageEpisodeTable = "eut_usage_episodes"

// UsageEpisode is one checkout-to-check-in interval. EndTime == nil means the
// unit is still out; TotalHours is only meaningful once EndTime is set.
type UsageEpisode struct {
	ID          string     `gorm:"size:36;primaryKey" json:"id"`
	EquipmentID string     `gorm:"size:36;index:idx_eut_usage_equipment_start,priority:1;not null" json:"equipmentId"`
	RequesterID string     `gorm:"size:36;index;not null" json:"requesterId"`
	Activity    string     `gorm:"size:255;not null" json:"activity"`
	StartTime   time.Time  `gorm:"index:idx_eut_usage_equipment_start,priority:2,sort:desc;not null" json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	TotalHours  float64    `gorm:"not null;default:0" json:"totalHours"`

	Signature   string `gorm:"type:text" json:"signature,omitempty"`
	Notes       string `gorm:"type:text" json:"notes,omitempty"`
	WithdrawnBy string `gorm:"size:255" json:"withdrawnBy,omitempty"`

	// snapshot of the unit at checkout time
	Description string `gorm:"size:500" json:"description,omitempty"`
	Brand       string `gorm:"size:200" json:"brand,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UsageEpisode) TableName() string { return UsageEpisodeTable }

func (u *UsageEpisode) Open() bool { return u.EndTime == nil }
