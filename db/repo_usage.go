package db

import (
	"context"
	"errors"
	"time"

	"equipment_usage_tracker/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const latestFirst = "start_time DESC, created_at DESC"

// CreateEpisode inserts an open episode. The partial unique index on open
// episodes turns a second concurrent checkout into ErrConflict.
func (r *Repo) CreateEpisode(ctx context.Context, ep *models.UsageEpisode) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if err := r.DB.WithContext(ctx).Create(ep).Error; err != nil {
		return storeErr("create usage episode", err)
	}
	return nil
}

func (r *Repo) FindEpisodeByID(ctx context.Context, id string) (*models.UsageEpisode, error) {
	var ep models.UsageEpisode
	if err := r.DB.WithContext(ctx).First(&ep, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("usage episode", id)
		}
		return nil, storeErr("find usage episode", err)
	}
	return &ep, nil
}

// LatestEpisode returns the episode with the greatest start time for the unit.
func (r *Repo) LatestEpisode(ctx context.Context, equipmentID string) (*models.UsageEpisode, error) {
	var ep models.UsageEpisode
	err := r.DB.WithContext(ctx).
		Where("equipment_id = ?", equipmentID).
		Order(latestFirst).
		Limit(1).
		Take(&ep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("usage history for equipment", equipmentID)
		}
		return nil, storeErr("latest usage episode", err)
	}
	return &ep, nil
}

// OpenEpisode returns the currently open episode of the unit, if any.
func (r *Repo) OpenEpisode(ctx context.Context, equipmentID string) (*models.UsageEpisode, error) {
	var ep models.UsageEpisode
	err := r.DB.WithContext(ctx).
		Where("equipment_id = ? AND end_time IS NULL", equipmentID).
		Order(latestFirst).
		Limit(1).
		Take(&ep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("open usage episode for equipment", equipmentID)
		}
		return nil, storeErr("open usage episode", err)
	}
	return &ep, nil
}

// CloseEpisode sets end time and duration on an episode that is still open.
// The update is conditioned on end_time IS NULL; if it touches no row another
// check-in got there first and ErrConcurrencyConflict is returned.
func (r *Repo) CloseEpisode(ctx context.Context, episodeID string, end time.Time, hours float64) error {
	res := r.DB.WithContext(ctx).Model(&models.UsageEpisode{}).
		Where("id = ? AND end_time IS NULL", episodeID).
		Updates(map[string]any{
			"end_time":    end,
			"total_hours": hours,
			"updated_at":  Now(),
		})
	if res.Error != nil {
		return storeErr("close usage episode", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrConcurrencyConflict
	}
	return nil
}

// ListEpisodesForEquipment returns at most limit episodes, newest start first.
func (r *Repo) ListEpisodesForEquipment(ctx context.Context, equipmentID string, limit int) ([]models.UsageEpisode, error) {
	return r.ListEpisodes(ctx, EpisodeFilter{EquipmentID: equipmentID, Limit: limit})
}

type EpisodeFilter struct {
	EquipmentID string
	RequesterID string
	Status      string // "", "open", "returned"
	Limit       int    // <= 0 means no limit
}

func (r *Repo) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]models.UsageEpisode, error) {
	q := r.DB.WithContext(ctx).Model(&models.UsageEpisode{}).Order(latestFirst)
	if f.EquipmentID != "" {
		q = q.Where("equipment_id = ?", f.EquipmentID)
	}
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	switch f.Status {
	case "open":
		q = q.Where("end_time IS NULL")
	case "returned":
		q = q.Where("end_time IS NOT NULL")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	eps := []models.UsageEpisode{}
	if err := q.Find(&eps).Error; err != nil {
		return nil, storeErr("list usage episodes", err)
	}
	return eps, nil
}

// LatestEpisodes maps each given equipment id to its most recent episode.
// Units without history are absent from the map.
func (r *Repo) LatestEpisodes(ctx context.Context, equipmentIDs []string) (map[string]models.UsageEpisode, error) {
	out := make(map[string]models.UsageEpisode, len(equipmentIDs))
	if len(equipmentIDs) == 0 {
		return out, nil
	}
	var eps []models.UsageEpisode
	err := r.DB.WithContext(ctx).
		Where("equipment_id IN ?", equipmentIDs).
		Where("start_time = (SELECT MAX(s.start_time) FROM " + models.UsageEpisodeTable +
			" s WHERE s.equipment_id = " + models.UsageEpisodeTable + ".equipment_id)").
		Order("created_at DESC").
		Find(&eps).Error
	if err != nil {
		return nil, storeErr("latest usage episodes", err)
	}
	for _, ep := range eps {
		if _, seen := out[ep.EquipmentID]; !seen {
			out[ep.EquipmentID] = ep
		}
	}
	return out, nil
}

type EpisodeUpdate struct {
	EquipmentID string
	RequesterID string
	Activity    string
	StartTime   time.Time
	EndTime     *time.Time
	TotalHours  float64
	Signature   string
	Notes       string
	WithdrawnBy string
}

// UpdateEpisode is the administrative rewrite of an episode. It bypasses the
// checkout/check-in state machine entirely.
func (r *Repo) UpdateEpisode(ctx context.Context, id string, in EpisodeUpdate) error {
	res := r.DB.WithContext(ctx).Model(&models.UsageEpisode{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"equipment_id": in.EquipmentID,
			"requester_id": in.RequesterID,
			"activity":     in.Activity,
			"start_time":   in.StartTime,
			"end_time":     in.EndTime,
			"total_hours":  in.TotalHours,
			"signature":    in.Signature,
			"notes":        in.Notes,
			"withdrawn_by": in.WithdrawnBy,
			"updated_at":   Now(),
		})
	if res.Error != nil {
		return storeErr("update usage episode", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("usage episode", id)
	}
	return nil
}

func (r *Repo) DeleteEpisode(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.UsageEpisode{ID: id})
	if res.Error != nil {
		return storeErr("delete usage episode", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("usage episode", id)
	}
	return nil
}
