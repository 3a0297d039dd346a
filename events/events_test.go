package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(KafkaConfig{Topic: "equipment.usage"})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)

	p, err = NewPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "equipment.usage"})
	require.NoError(t, err)
	defer p.Close()
	assert.IsType(t, &KafkaPublisher{}, p)

	_, err = NewPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	assert.Error(t, err)
}

func TestKafkaPublisher_RecordIsKeyedByEquipment(t *testing.T) {
	// the client connects lazily, so no broker is needed to build records
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "equipment.usage"})
	require.NoError(t, err)
	defer p.Close()

	hours := 1.5
	ev := New(TypeCheckin, "eq-1")
	ev.EpisodeID = "ep-1"
	ev.TotalHours = &hours

	rec, err := p.record(ev)
	require.NoError(t, err)
	assert.Equal(t, "equipment.usage", rec.Topic)
	assert.Equal(t, []byte("eq-1"), rec.Key)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, string(TypeCheckin), string(rec.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	require.NotNil(t, decoded.TotalHours)
	assert.Equal(t, 1.5, *decoded.TotalHours)
}

func TestMemory_KeepsOrder(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, New(TypeCheckout, "a")))
	require.NoError(t, m.Publish(ctx, New(TypeCheckin, "a")))

	got := m.Events()
	require.Len(t, got, 2)
	assert.Equal(t, TypeCheckout, got[0].Type)
	assert.Equal(t, TypeCheckin, got[1].Type)
	assert.NotEmpty(t, got[0].ID)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), New(TypeCheckout, "a")))
	p.Close()
}
