package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"
	"equipment_usage_tracker/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type CheckoutInput struct {
	EquipmentID string
	RequesterID string
	Activity    string
	Signature   string
	WithdrawnBy string
	Notes       string
	// optional snapshot; defaults to the unit's current attributes
	Description string
	Brand       string
}

func (in CheckoutInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EquipmentID, validation.Required),
		validation.Field(&in.RequesterID, validation.Required),
		validation.Field(&in.Activity, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Signature, validation.Required),
		validation.Field(&in.WithdrawnBy, validation.Required, validation.Length(1, 255)),
	)
}

// Hours is the recorded duration of an episode: elapsed hours rounded to two
// decimals. An end before start gives a negative value.
func Hours(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Hours()*100) / 100
}

// Checkout opens a usage episode for the unit and marks it checked-out.
//
// A unit that already has an open episode is rejected with ErrConflict, and
// the partial unique index on open episodes turns a concurrent duplicate into
// the same error. Units marked unavailable cannot be checked out.
func (c *Coordinator) Checkout(ctx context.Context, in CheckoutInput) (ep *models.UsageEpisode, err error) {
	defer func() { c.metrics.Transition("checkout", err) }()

	in = trimCheckout(in)
	if err := db.NewValidationError(in.Validate()); err != nil {
		return nil, err
	}
	equipmentID, err := db.ParseID("equipment id", in.EquipmentID)
	if err != nil {
		return nil, err
	}
	requesterID, err := db.ParseID("requester id", in.RequesterID)
	if err != nil {
		return nil, err
	}

	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		it, err := tx.LockEquipment(ctx, equipmentID)
		if err != nil {
			return err
		}
		if it.Status == models.StatusUnavailable {
			return fmt.Errorf("equipment %s is marked unavailable: %w", equipmentID, db.ErrConflict)
		}
		open, err := tx.OpenEpisode(ctx, equipmentID)
		switch {
		case err == nil:
			return fmt.Errorf("equipment %s is already checked out (episode %s): %w", equipmentID, open.ID, db.ErrConflict)
		case !errors.Is(err, db.ErrNotFound):
			return err
		}

		desc, brand := in.Description, in.Brand
		if desc == "" {
			desc = it.Description
		}
		if brand == "" {
			brand = it.Brand
		}
		ep = &models.UsageEpisode{
			EquipmentID: equipmentID,
			RequesterID: requesterID,
			Activity:    in.Activity,
			StartTime:   c.clock(),
			Signature:   in.Signature,
			Notes:       in.Notes,
			WithdrawnBy: in.WithdrawnBy,
			Description: desc,
			Brand:       brand,
		}
		if err := tx.CreateEpisode(ctx, ep); err != nil {
			return err
		}
		return tx.SetEquipmentStatus(ctx, equipmentID, models.StatusCheckedOut)
	})
	if err != nil {
		c.logFailure("checkout", equipmentID, err)
		return nil, err
	}

	c.invalidate(ctx, equipmentID)
	ev := events.New(events.TypeCheckout, equipmentID)
	ev.EpisodeID = ep.ID
	ev.RequesterID = ep.RequesterID
	ev.Status = string(models.StatusCheckedOut)
	c.publish(ctx, ev)
	c.log.Info("equipment checked out", "equipment_id", equipmentID, "episode_id", ep.ID, "requester_id", requesterID)
	return ep, nil
}

// Checkin closes the most recent episode of the unit.
//
// Outcomes: no episode at all is ErrNotFound; a most recent episode that is
// already closed is an *db.AlreadyReturnedError (ErrConflict); losing the
// conditional update to a concurrent check-in is ErrConcurrencyConflict.
// end overrides the current time when non-nil.
func (c *Coordinator) Checkin(ctx context.Context, equipmentID string, end *time.Time) (ep *models.UsageEpisode, err error) {
	defer func() { c.metrics.Transition("checkin", err) }()

	equipmentID, err = db.ParseID("equipment id", strings.TrimSpace(equipmentID))
	if err != nil {
		return nil, err
	}

	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		latest, err := tx.LatestEpisode(ctx, equipmentID)
		if err != nil {
			return err
		}
		if !latest.Open() {
			return &db.AlreadyReturnedError{EpisodeID: latest.ID, ReturnedAt: *latest.EndTime}
		}

		endAt := c.clock()
		if end != nil {
			endAt = end.UTC().Truncate(time.Microsecond)
		}
		hours := Hours(latest.StartTime, endAt)
		if hours < 0 {
			c.log.Warn("check-in ends before checkout, recording negative duration",
				"equipment_id", equipmentID, "episode_id", latest.ID,
				"start", latest.StartTime, "end", endAt)
		}

		if c.beforeClose != nil {
			if err := c.beforeClose(ctx, tx, latest); err != nil {
				return err
			}
		}
		if err := tx.CloseEpisode(ctx, latest.ID, endAt, hours); err != nil {
			return err
		}
		if err := tx.SetEquipmentStatus(ctx, equipmentID, models.StatusAvailable); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return err
			}
			c.log.Warn("closed episode of unregistered equipment", "equipment_id", equipmentID, "episode_id", latest.ID)
		}
		latest.EndTime = &endAt
		latest.TotalHours = hours
		ep = latest
		return nil
	})
	if err != nil {
		c.logFailure("checkin", equipmentID, err)
		return nil, err
	}

	c.invalidate(ctx, equipmentID)
	c.metrics.ObserveHours(ep.TotalHours)
	ev := events.New(events.TypeCheckin, equipmentID)
	ev.EpisodeID = ep.ID
	ev.RequesterID = ep.RequesterID
	ev.Status = string(models.StatusAvailable)
	ev.TotalHours = &ep.TotalHours
	c.publish(ctx, ev)
	c.log.Info("equipment checked in", "equipment_id", equipmentID, "episode_id", ep.ID, "total_hours", ep.TotalHours)
	return ep, nil
}

// History lists the unit's episodes newest first. limit <= 0 selects the
// configured default; larger values are capped.
func (c *Coordinator) History(ctx context.Context, equipmentID string, limit int) ([]models.UsageEpisode, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(equipmentID))
	if err != nil {
		return nil, err
	}
	return c.repo.ListEpisodesForEquipment(ctx, id, c.historyLimit(limit))
}

// LastEpisode is the most recent episode of the unit, open or closed.
func (c *Coordinator) LastEpisode(ctx context.Context, equipmentID string) (*models.UsageEpisode, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(equipmentID))
	if err != nil {
		return nil, err
	}
	return c.repo.LatestEpisode(ctx, id)
}

type EpisodeQuery struct {
	EquipmentID string
	RequesterID string
	Status      string // "", "open", "returned"
	Limit       int
}

func (c *Coordinator) ListEpisodes(ctx context.Context, q EpisodeQuery) ([]models.UsageEpisode, error) {
	f := db.EpisodeFilter{Status: q.Status, Limit: q.Limit}
	if err := db.NewValidationError(validation.Errors{
		"status": validation.Validate(q.Status, validation.In("open", "returned")),
		"limit":  validation.Validate(q.Limit, validation.Min(0)),
	}.Filter()); err != nil {
		return nil, err
	}
	var err error
	if q.EquipmentID != "" {
		if f.EquipmentID, err = db.ParseID("equipment id", q.EquipmentID); err != nil {
			return nil, err
		}
	}
	if q.RequesterID != "" {
		if f.RequesterID, err = db.ParseID("requester id", q.RequesterID); err != nil {
			return nil, err
		}
	}
	return c.repo.ListEpisodes(ctx, f)
}

func (c *Coordinator) GetEpisode(ctx context.Context, id string) (*models.UsageEpisode, error) {
	id, err := db.ParseID("episode id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return c.repo.FindEpisodeByID(ctx, id)
}

type EpisodeInput struct {
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

func (in EpisodeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EquipmentID, validation.Required),
		validation.Field(&in.RequesterID, validation.Required),
		validation.Field(&in.Activity, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.StartTime, validation.Required),
	)
}

// UpdateEpisode rewrites an episode as given. It is a trusted correction, not
// a transition: duration is stored as supplied, not recomputed. The stored
// status of every affected unit is realigned with its ledger afterwards.
func (c *Coordinator) UpdateEpisode(ctx context.Context, id string, in EpisodeInput) (*models.UsageEpisode, error) {
	id, err := db.ParseID("episode id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if err := db.NewValidationError(in.Validate()); err != nil {
		return nil, err
	}
	if in.EquipmentID, err = db.ParseID("equipment id", in.EquipmentID); err != nil {
		return nil, err
	}
	if in.RequesterID, err = db.ParseID("requester id", in.RequesterID); err != nil {
		return nil, err
	}

	var (
		updated  *models.UsageEpisode
		affected []string
	)
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		before, err := tx.FindEpisodeByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.FindEquipmentByID(ctx, in.EquipmentID); err != nil {
			return err
		}
		err = tx.UpdateEpisode(ctx, id, db.EpisodeUpdate{
			EquipmentID: in.EquipmentID,
			RequesterID: in.RequesterID,
			Activity:    in.Activity,
			StartTime:   in.StartTime.UTC(),
			EndTime:     utcPtr(in.EndTime),
			TotalHours:  in.TotalHours,
			Signature:   in.Signature,
			Notes:       in.Notes,
			WithdrawnBy: in.WithdrawnBy,
		})
		if err != nil {
			return err
		}
		affected = uniq(before.EquipmentID, in.EquipmentID)
		for _, eq := range affected {
			if err := c.syncStatus(ctx, tx, eq); err != nil {
				return err
			}
		}
		updated, err = tx.FindEpisodeByID(ctx, id)
		return err
	})
	if err != nil {
		c.logFailure("update episode", id, err)
		return nil, err
	}
	c.invalidate(ctx, affected...)
	c.log.Info("usage episode overridden", "episode_id", id, "equipment_id", updated.EquipmentID)
	return updated, nil
}

func (c *Coordinator) DeleteEpisode(ctx context.Context, id string) error {
	id, err := db.ParseID("episode id", strings.TrimSpace(id))
	if err != nil {
		return err
	}
	var equipmentID string
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		ep, err := tx.FindEpisodeByID(ctx, id)
		if err != nil {
			return err
		}
		equipmentID = ep.EquipmentID
		if err := tx.DeleteEpisode(ctx, id); err != nil {
			return err
		}
		return c.syncStatus(ctx, tx, equipmentID)
	})
	if err != nil {
		c.logFailure("delete episode", id, err)
		return err
	}
	c.invalidate(ctx, equipmentID)
	c.log.Info("usage episode deleted", "episode_id", id, "equipment_id", equipmentID)
	return nil
}

// syncStatus makes the stored status agree with the ledger after an override.
// An unavailable flag on a unit without an open episode is kept.
func (c *Coordinator) syncStatus(ctx context.Context, tx *db.Repo, equipmentID string) error {
	it, err := tx.FindEquipmentByID(ctx, equipmentID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	state, err := deriveState(ctx, tx, equipmentID)
	if err != nil {
		return err
	}
	want := it.Status
	switch {
	case state == StateCheckedOut:
		want = models.StatusCheckedOut
	case it.Status == models.StatusCheckedOut:
		want = models.StatusAvailable
	}
	if want == it.Status {
		return nil
	}
	return tx.SetEquipmentStatus(ctx, equipmentID, want)
}

func (c *Coordinator) logFailure(op, id string, err error) {
	if errors.Is(err, db.ErrStoreUnavailable) {
		c.log.Error(op+" failed", "id", id, "error", err)
		return
	}
	c.log.Debug(op+" rejected", "id", id, "error", err)
}

func trimCheckout(in CheckoutInput) CheckoutInput {
	in.EquipmentID = strings.TrimSpace(in.EquipmentID)
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.Activity = strings.TrimSpace(in.Activity)
	in.WithdrawnBy = strings.TrimSpace(in.WithdrawnBy)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Description = strings.TrimSpace(in.Description)
	in.Brand = strings.TrimSpace(in.Brand)
	return in
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func uniq(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
