package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"equipment_usage_tracker/db"
	"equipment_usage_tracker/lifecycle"
	"equipment_usage_tracker/models"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// CatalogEntry is one unit in the seed catalog file.
type CatalogEntry struct {
	Description string `yaml:"description"`
	Brand       string `yaml:"brand"`
	IntakeDate  string `yaml:"intake_date"`
	ScanCode    string `yaml:"scan_code"`
	Status      string `yaml:"status"`
}

type catalogFile struct {
	Equipment []CatalogEntry `yaml:"equipment"`
}

// BootstrapCatalog registers the units listed in path whose scan code is not
// yet known. Entries without a scan code are always created, so give every
// entry one if the file is loaded on each start. Returns the number created.
func BootstrapCatalog(ctx context.Context, path string, coord *lifecycle.Coordinator, log hclog.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	created := 0
	for i, e := range file.Equipment {
		in, err := e.input()
		if err != nil {
			return created, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if in.ScanCode != nil {
			_, err := coord.Repo().FindEquipmentByScanCode(ctx, *in.ScanCode)
			if err == nil {
				continue
			}
			if !errors.Is(err, db.ErrNotFound) {
				return created, err
			}
		}
		it, err := coord.CreateEquipment(ctx, in)
		if err != nil {
			return created, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		created++
		log.Info("catalog equipment registered", "equipment_id", it.ID, "description", it.Description)
	}
	return created, nil
}

func (e CatalogEntry) input() (lifecycle.EquipmentInput, error) {
	in := lifecycle.EquipmentInput{
		Description: e.Description,
		Brand:       e.Brand,
		Status:      models.EquipmentStatus(strings.TrimSpace(e.Status)),
	}
	if e.ScanCode != "" {
		code := e.ScanCode
		in.ScanCode = &code
	}
	if e.IntakeDate != "" {
		t, err := ParseTime(e.IntakeDate)
		if err != nil {
			return in, err
		}
		in.IntakeDate = &t
	}
	return in, nil
}

// ParseTime accepts the date formats operators actually type (RFC 3339,
// "2024-03-01", "03/01/2024 14:00", unix seconds) and returns UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unrecognised time %q", db.ErrValidation, s)
	}
	return t.UTC(), nil
}
