package db

import (
	"context"
	"errors"
	"time"

	"equipment_usage_tracker/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MaintenanceInput struct {
	EquipmentID string
	Description string
	Cost        float64
	PerformedAt time.Time
	PerformedBy string
}

func (r *Repo) CreateMaintenance(ctx context.Context, in MaintenanceInput) (*models.MaintenanceRecord, error) {
	m := &models.MaintenanceRecord{
		ID:          uuid.NewString(),
		EquipmentID: in.EquipmentID,
		Description: in.Description,
		Cost:        in.Cost,
		PerformedAt: in.PerformedAt,
		PerformedBy: in.PerformedBy,
	}
	if err := r.DB.WithContext(ctx).Create(m).Error; err != nil {
		return nil, storeErr("create maintenance", err)
	}
	return m, nil
}

func (r *Repo) FindMaintenanceByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	var m models.MaintenanceRecord
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("maintenance record", id)
		}
		return nil, storeErr("find maintenance", err)
	}
	return &m, nil
}

// ListMaintenance returns records newest first, optionally for one unit.
func (r *Repo) ListMaintenance(ctx context.Context, equipmentID string) ([]models.MaintenanceRecord, error) {
	q := r.DB.WithContext(ctx).Model(&models.MaintenanceRecord{}).Order("performed_at DESC")
	if equipmentID != "" {
		q = q.Where("equipment_id = ?", equipmentID)
	}
	out := []models.MaintenanceRecord{}
	if err := q.Find(&out).Error; err != nil {
		return nil, storeErr("list maintenance", err)
	}
	return out, nil
}

func (r *Repo) UpdateMaintenance(ctx context.Context, id string, in MaintenanceInput) error {
	res := r.DB.WithContext(ctx).Model(&models.MaintenanceRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"equipment_id": in.EquipmentID,
			"description":  in.Description,
			"cost":         in.Cost,
			"performed_at": in.PerformedAt,
			"performed_by": in.PerformedBy,
		})
	if res.Error != nil {
		return storeErr("update maintenance", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("maintenance record", id)
	}
	return nil
}

func (r *Repo) DeleteMaintenance(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.MaintenanceRecord{ID: id})
	if res.Error != nil {
		return storeErr("delete maintenance", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("maintenance record", id)
	}
	return nil
}
