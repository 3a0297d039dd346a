// Package lifecycle enforces the usage rules for tracked equipment: at most
// one open usage episode per unit, status derived from the most recent
// episode, and durations computed only at check-in.
//
// The Coordinator owns no data. It orchestrates the equipment registry and
// the usage ledger (both in package db) and is the only writer of derived
// fields (equipment status on transitions, episode end time and duration).
package lifecycle

import (
	"context"
	"time"

	"equipment_usage_tracker/config"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"
	"equipment_usage_tracker/metrics"
	"equipment_usage_tracker/models"

	"github.com/hashicorp/go-hclog"
)

// State is the ledger-derived state of a unit.
type State string

const (
	StateAvailable  State = "AVAILABLE"
	StateCheckedOut State = "CHECKED_OUT"
)

// StateCache stores derived states between requests. Implementations must
// treat a nil receiver as a permanent miss. Set must drop the write when an
// Invalidate ran after gen was read from Generation.
type StateCache interface {
	Get(ctx context.Context, equipmentID string) (string, bool, error)
	Generation(ctx context.Context, equipmentID string) (int64, error)
	Set(ctx context.Context, equipmentID, state string, gen int64) (bool, error)
	Invalidate(ctx context.Context, equipmentIDs ...string) error
}

type Coordinator struct {
	repo    *db.Repo
	log     hclog.Logger
	cache   StateCache
	events  events.Publisher
	metrics *metrics.Metrics
	limits  config.Usage
	now     func() time.Time

	// beforeClose runs inside the check-in transaction once the open
	// episode is found. Nil outside tests.
	beforeClose func(ctx context.Context, tx *db.Repo, ep *models.UsageEpisode) error
}

type Option func(*Coordinator)

func WithLogger(l hclog.Logger) Option { return func(c *Coordinator) { c.log = l } }

func WithCache(sc StateCache) Option { return func(c *Coordinator) { c.cache = sc } }

func WithPublisher(p events.Publisher) Option { return func(c *Coordinator) { c.events = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Coordinator) { c.metrics = m } }

func WithHistoryLimits(u config.Usage) Option { return func(c *Coordinator) { c.limits = u } }

// WithClock replaces the wall clock; tests use it to pin checkout times.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

func New(repo *db.Repo, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:   repo,
		log:    hclog.NewNullLogger(),
		events: events.Nop{},
		limits: config.Usage{DefaultHistoryLimit: 10, MaxHistoryLimit: 100},
		now:    db.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Repo() *db.Repo { return c.repo }

func (c *Coordinator) clock() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// publish emits after commit; failures are logged, never returned, because
// the transition they describe has already happened.
func (c *Coordinator) publish(ctx context.Context, ev events.Event) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn("failed to publish event", "type", ev.Type, "equipment_id", ev.EquipmentID, "error", err)
	}
}

func (c *Coordinator) invalidate(ctx context.Context, ids ...string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, ids...); err != nil {
		c.log.Warn("failed to invalidate state cache", "equipment_ids", ids, "error", err)
	}
}

// historyLimit applies the default and the cap to a caller-supplied limit.
func (c *Coordinator) historyLimit(limit int) int {
	if limit <= 0 {
		return c.limits.DefaultHistoryLimit
	}
	if c.limits.MaxHistoryLimit > 0 && limit > c.limits.MaxHistoryLimit {
		return c.limits.MaxHistoryLimit
	}
	return limit
}
