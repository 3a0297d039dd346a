package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipment_usage_tracker/models"
	"equipment_usage_tracker/search"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var searchColumns = map[search.Field]string{
	search.FieldID:          "id",
	search.FieldScanCode:    "scan_code",
	search.FieldDescription: "description",
	search.FieldBrand:       "brand",
}

type EquipmentInput struct {
	Description string
	Brand       string
	IntakeDate  *time.Time
	ScanCode    *string
}

func (r *Repo) CreateEquipment(ctx context.Context, in EquipmentInput, status models.EquipmentStatus) (*models.Equipment, error) {
	if status == "" {
		status = models.StatusAvailable
	}
	it := &models.Equipment{
		ID:          uuid.NewString(),
		Description: in.Description,
		Brand:       in.Brand,
		IntakeDate:  in.IntakeDate,
		Status:      status,
		ScanCode:    blankToNil(in.ScanCode),
	}
	if err := r.DB.WithContext(ctx).Create(it).Error; err != nil {
		return nil, storeErr("create equipment", err)
	}
	return it, nil
}

func (r *Repo) FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error) {
	var it models.Equipment
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("equipment", id)
		}
		return nil, storeErr("find equipment", err)
	}
	return &it, nil
}

// LockEquipment loads the unit with a row lock (SELECT ... FOR UPDATE) so that
// transitions on the same unit serialize inside a transaction. SQLite has no
// row locks; the driver drops the clause and the single connection serializes.
func (r *Repo) LockEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	var it models.Equipment
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("equipment", id)
		}
		return nil, storeErr("lock equipment", err)
	}
	return &it, nil
}

func (r *Repo) FindEquipmentByScanCode(ctx context.Context, code string) (*models.Equipment, error) {
	var it models.Equipment
	if err := r.DB.WithContext(ctx).First(&it, "scan_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("equipment with scan code", code)
		}
		return nil, storeErr("find equipment", err)
	}
	return &it, nil
}

// UpdateEquipment rewrites the descriptive attributes. Status is not touched
// here; it only changes through checkout/check-in or SetEquipmentStatus.
func (r *Repo) UpdateEquipment(ctx context.Context, id string, in EquipmentInput) error {
	res := r.DB.WithContext(ctx).Model(&models.Equipment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"description": in.Description,
			"brand":       in.Brand,
			"intake_date": in.IntakeDate,
			"scan_code":   blankToNil(in.ScanCode),
			"updated_at":  Now(),
		})
	if res.Error != nil {
		return storeErr("update equipment", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("equipment", id)
	}
	return nil
}

func (r *Repo) SetEquipmentStatus(ctx context.Context, id string, status models.EquipmentStatus) error {
	res := r.DB.WithContext(ctx).Model(&models.Equipment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": Now(),
		})
	if res.Error != nil {
		return storeErr("set equipment status", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("equipment", id)
	}
	return nil
}

func (r *Repo) DeleteEquipment(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.Equipment{ID: id})
	if res.Error != nil {
		return storeErr("delete equipment", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("equipment", id)
	}
	return nil
}

// ListEquipment applies a resolved search query. Exact matches (identifier,
// scan code) win outright; substring matches on description/brand are only
// consulted when no exact match exists. Precedence is decided before the
// status filter, so a term naming a unit in another status yields an empty
// list rather than unrelated substring matches. No match is an empty list.
func (r *Repo) ListEquipment(ctx context.Context, q search.Query) ([]models.Equipment, error) {
	all := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.Equipment{}).Order("created_at DESC")
	}
	base := func() *gorm.DB {
		tx := all()
		if q.Status != "" {
			tx = tx.Where("status = ?", q.Status)
		}
		return tx
	}

	if q.Empty() {
		return r.findEquipment(base())
	}

	if exact := q.Exact(); len(exact) > 0 {
		items, err := r.findEquipment(where(all(), exact))
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return filterStatus(items, q.Status), nil
		}
	}
	if contains := q.Contains(); len(contains) > 0 {
		return r.findEquipment(where(base(), contains))
	}
	return []models.Equipment{}, nil
}

func filterStatus(items []models.Equipment, status string) []models.Equipment {
	if status == "" {
		return items
	}
	out := []models.Equipment{}
	for _, it := range items {
		if string(it.Status) == status {
			out = append(out, it)
		}
	}
	return out
}

func (r *Repo) findEquipment(tx *gorm.DB) ([]models.Equipment, error) {
	items := []models.Equipment{}
	if err := tx.Find(&items).Error; err != nil {
		return nil, storeErr("list equipment", err)
	}
	return items, nil
}

// where ORs the predicates together as one parenthesised condition.
func where(tx *gorm.DB, preds []search.Predicate) *gorm.DB {
	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		col, ok := searchColumns[p.Field]
		if !ok {
			continue
		}
		switch p.Match {
		case search.MatchExact:
			clauses = append(clauses, col+" = ?")
			args = append(args, p.Value)
		case search.MatchContains:
			clauses = append(clauses, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col))
			args = append(args, search.LikePattern(p.Value))
		}
	}
	if len(clauses) == 0 {
		return tx.Where("1 = 0")
	}
	return tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
