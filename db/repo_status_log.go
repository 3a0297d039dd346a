package db

import (
	"context"

	"equipment_usage_tracker/models"

	"github.com/google/uuid"
)

// AppendStatusChange records one administrative override.
func (r *Repo) AppendStatusChange(ctx context.Context, c *models.StatusChange) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = Now()
	}
	if err := r.DB.WithContext(ctx).Create(c).Error; err != nil {
		return storeErr("append status change", err)
	}
	return nil
}

// ListStatusChanges returns the override log of a unit, newest first.
func (r *Repo) ListStatusChanges(ctx context.Context, equipmentID string, limit int) ([]models.StatusChange, error) {
	q := r.DB.WithContext(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	out := []models.StatusChange{}
	if err := q.Find(&out).Error; err != nil {
		return nil, storeErr("list status changes", err)
	}
	return out, nil
}
