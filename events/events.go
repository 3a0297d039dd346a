// Package events publishes usage lifecycle transitions for downstream
// consumers (billing exports, dashboards). Publishing is best effort: the
// transition is already committed when an event is emitted.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCheckout       Type = "equipment.checked_out"
	TypeCheckin        Type = "equipment.checked_in"
	TypeStatusOverride Type = "equipment.status_overridden"
)

type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	EquipmentID string    `json:"equipmentId"`
	EpisodeID   string    `json:"episodeId,omitempty"`
	RequesterID string    `json:"requesterId,omitempty"`
	Status      string    `json:"status,omitempty"`
	TotalHours  *float64  `json:"totalHours,omitempty"`
}

// New fills in identity and timestamp.
func New(t Type, equipmentID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		Timestamp:   time.Now().UTC(),
		EquipmentID: equipmentID,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// Memory keeps published events in order; handy for tests and the CLI.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) Close() {}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
