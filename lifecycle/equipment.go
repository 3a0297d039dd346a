package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"
	"equipment_usage_tracker/models"
	"equipment_usage_tracker/search"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type EquipmentInput struct {
	Description string
	Brand       string
	IntakeDate  *time.Time
	ScanCode    *string
	// Status applies on create only; empty means available.
	Status models.EquipmentStatus
}

func (in EquipmentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Brand, validation.Length(0, 200)),
		validation.Field(&in.ScanCode, validation.NilOrNotEmpty, validation.Length(1, 255)),
		// a new unit has no episode, so it cannot start checked out
		validation.Field(&in.Status, validation.In(models.StatusAvailable, models.StatusUnavailable)),
	)
}

func (in EquipmentInput) registry() db.EquipmentInput {
	return db.EquipmentInput{
		Description: strings.TrimSpace(in.Description),
		Brand:       strings.TrimSpace(in.Brand),
		IntakeDate:  in.IntakeDate,
		ScanCode:    in.ScanCode,
	}
}

func (c *Coordinator) CreateEquipment(ctx context.Context, in EquipmentInput) (*models.Equipment, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := db.NewValidationError(in.Validate()); err != nil {
		return nil, err
	}
	it, err := c.repo.CreateEquipment(ctx, in.registry(), in.Status)
	if err != nil {
		c.logFailure("create equipment", "", err)
		return nil, err
	}
	c.log.Info("equipment registered", "equipment_id", it.ID)
	return it, nil
}

func (c *Coordinator) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return c.repo.FindEquipmentByID(ctx, id)
}

// UpdateEquipment changes descriptive attributes only; status goes through
// UpdateStatus or the transitions.
func (c *Coordinator) UpdateEquipment(ctx context.Context, id string, in EquipmentInput) (*models.Equipment, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Status = ""
	if err := db.NewValidationError(in.Validate()); err != nil {
		return nil, err
	}
	if err := c.repo.UpdateEquipment(ctx, id, in.registry()); err != nil {
		c.logFailure("update equipment", id, err)
		return nil, err
	}
	return c.repo.FindEquipmentByID(ctx, id)
}

type StatusUpdate struct {
	Status models.EquipmentStatus
	Actor  string
	Reason string
}

func (in StatusUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Status, validation.Required,
			validation.In(models.StatusAvailable, models.StatusUnavailable, models.StatusCheckedOut)),
		validation.Field(&in.Actor, validation.Length(0, 255)),
	)
}

// UpdateStatus is the administrative override. It may not contradict the
// ledger: while an episode is open the only accepted status is checked-out,
// and checked-out is refused for a unit without an open episode. Accepted
// changes are appended to the status log.
func (c *Coordinator) UpdateStatus(ctx context.Context, id string, in StatusUpdate) (*models.Equipment, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	in.Actor = strings.TrimSpace(in.Actor)
	if in.Actor == "" {
		in.Actor = "admin"
	}
	if err := db.NewValidationError(in.Validate()); err != nil {
		return nil, err
	}

	var (
		it      *models.Equipment
		changed bool
	)
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		var err error
		if it, err = tx.LockEquipment(ctx, id); err != nil {
			return err
		}
		state, err := deriveState(ctx, tx, id)
		if err != nil {
			return err
		}
		if state == StateCheckedOut && in.Status != models.StatusCheckedOut {
			return fmt.Errorf("equipment %s has an open usage episode; check it in first: %w", id, db.ErrConflict)
		}
		if state == StateAvailable && in.Status == models.StatusCheckedOut {
			return fmt.Errorf("equipment %s has no open usage episode; use checkout: %w", id, db.ErrConflict)
		}
		if it.Status == in.Status {
			return nil
		}

		entry := &models.StatusChange{
			EquipmentID: id,
			FromStatus:  it.Status,
			ToStatus:    in.Status,
			Actor:       in.Actor,
		}
		if r := strings.TrimSpace(in.Reason); r != "" {
			entry.Reason = &r
		}
		if err := tx.SetEquipmentStatus(ctx, id, in.Status); err != nil {
			return err
		}
		if err := tx.AppendStatusChange(ctx, entry); err != nil {
			return err
		}
		it.Status = in.Status
		changed = true
		return nil
	})
	if err != nil {
		c.logFailure("update status", id, err)
		return nil, err
	}
	if changed {
		c.invalidate(ctx, id)
		c.metrics.StatusOverride(string(in.Status))
		ev := events.New(events.TypeStatusOverride, id)
		ev.Status = string(in.Status)
		c.publish(ctx, ev)
		c.log.Info("equipment status overridden", "equipment_id", id, "status", in.Status, "actor", in.Actor)
	}
	return it, nil
}

// StatusLog lists administrative overrides of a unit, newest first.
func (c *Coordinator) StatusLog(ctx context.Context, id string, limit int) ([]models.StatusChange, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if _, err := c.repo.FindEquipmentByID(ctx, id); err != nil {
		return nil, err
	}
	return c.repo.ListStatusChanges(ctx, id, c.historyLimit(limit))
}

// DeleteEquipment removes a unit that has no open episode. Its closed
// history stays in the ledger.
func (c *Coordinator) DeleteEquipment(ctx context.Context, id string) error {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return err
	}
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		if _, err := tx.LockEquipment(ctx, id); err != nil {
			return err
		}
		open, err := tx.OpenEpisode(ctx, id)
		switch {
		case err == nil:
			return fmt.Errorf("equipment %s is checked out (episode %s): %w", id, open.ID, db.ErrConflict)
		case !errors.Is(err, db.ErrNotFound):
			return err
		}
		return tx.DeleteEquipment(ctx, id)
	})
	if err != nil {
		c.logFailure("delete equipment", id, err)
		return err
	}
	c.invalidate(ctx, id)
	c.log.Info("equipment deleted", "equipment_id", id)
	return nil
}

// DerivedState reports the ledger state of a unit, served from the cache
// when possible.
func (c *Coordinator) DerivedState(ctx context.Context, id string) (State, error) {
	id, err := db.ParseID("equipment id", strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	if _, err := c.repo.FindEquipmentByID(ctx, id); err != nil {
		return "", err
	}
	cacheable := false
	var gen int64
	if c.cache != nil {
		v, ok, err := c.cache.Get(ctx, id)
		if err != nil {
			c.log.Warn("state cache read failed", "equipment_id", id, "error", err)
		}
		c.metrics.CacheLookup(ok)
		if ok {
			return State(v), nil
		}
		if gen, err = c.cache.Generation(ctx, id); err != nil {
			c.log.Warn("state cache read failed", "equipment_id", id, "error", err)
		} else {
			cacheable = true
		}
	}
	state, err := deriveState(ctx, c.repo, id)
	if err != nil {
		return "", err
	}
	if cacheable {
		stored, err := c.cache.Set(ctx, id, string(state), gen)
		switch {
		case err != nil:
			c.log.Warn("state cache write failed", "equipment_id", id, "error", err)
		case !stored:
			c.log.Debug("state cache write dropped, ledger changed meanwhile", "equipment_id", id)
		}
	}
	return state, nil
}

func deriveState(ctx context.Context, r *db.Repo, equipmentID string) (State, error) {
	latest, err := r.LatestEpisode(ctx, equipmentID)
	if errors.Is(err, db.ErrNotFound) {
		return StateAvailable, nil
	}
	if err != nil {
		return "", err
	}
	if latest.Open() {
		return StateCheckedOut, nil
	}
	return StateAvailable, nil
}

// EquipmentView is a unit with its ledger-derived state and, while checked
// out, the open episode.
type EquipmentView struct {
	models.Equipment
	State       State                `json:"state"`
	OpenEpisode *models.UsageEpisode `json:"openEpisode,omitempty"`
}

// ListEquipment resolves term with the search package and decorates each
// match with its derived state. An unmatched term is an empty list.
func (c *Coordinator) ListEquipment(ctx context.Context, term, status string) ([]EquipmentView, error) {
	status = strings.TrimSpace(status)
	if err := db.NewValidationError(validation.Errors{
		"status": validation.Validate(models.EquipmentStatus(status),
			validation.In(models.StatusAvailable, models.StatusUnavailable, models.StatusCheckedOut)),
	}.Filter()); err != nil {
		return nil, err
	}

	items, err := c.repo.ListEquipment(ctx, search.Resolve(term).WithStatus(status))
	if err != nil {
		c.logFailure("list equipment", "", err)
		return nil, err
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	latest, err := c.repo.LatestEpisodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]EquipmentView, 0, len(items))
	for _, it := range items {
		v := EquipmentView{Equipment: it, State: StateAvailable}
		if ep, ok := latest[it.ID]; ok && ep.Open() {
			ep := ep
			v.State = StateCheckedOut
			v.OpenEpisode = &ep
		}
		views = append(views, v)
	}
	return views, nil
}

// View returns a single unit decorated like ListEquipment.
func (c *Coordinator) View(ctx context.Context, id string) (*EquipmentView, error) {
	it, err := c.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &EquipmentView{Equipment: *it, State: StateAvailable}
	latest, err := c.repo.LatestEpisode(ctx, it.ID)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return nil, err
	case latest.Open():
		v.State = StateCheckedOut
		v.OpenEpisode = latest
	}
	return v, nil
}
