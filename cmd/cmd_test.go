package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"equipment_usage_tracker/config"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_UsageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "equipment.db")
	cfgPath := writeFile(t, dir, "config.yaml", `
log_level: error
database:
  driver: sqlite
  path: `+dbPath+`
`)
	catalog := writeFile(t, dir, "catalog.yaml", `
equipment:
  - description: Laser level
    brand: Bosch
    scan_code: CLI-1
`)

	_, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "1 units registered")

	out, err = run(t, "--config", cfgPath, "catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "0 units registered")

	conn, err := db.Open(config.Database{Driver: "sqlite", Path: dbPath}, hclog.NewNullLogger())
	require.NoError(t, err)
	it, err := db.NewRepo(conn).FindEquipmentByScanCode(context.Background(), "CLI-1")
	require.NoError(t, err)
	sqlDB, _ := conn.DB()
	require.NoError(t, sqlDB.Close())

	out, err = run(t, "--config", cfgPath, "equipment", "list", "CLI-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Laser level")
	assert.Contains(t, out, "AVAILABLE")

	out, err = run(t, "--config", cfgPath, "usage", "checkout", it.ID,
		"--requester", uuid.NewString(), "--activity", "survey", "--signature", "sig")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked out "+it.ID)

	out, err = run(t, "--config", cfgPath, "equipment", "get", it.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "CHECKED_OUT")

	_, err = run(t, "--config", cfgPath, "equipment", "status", it.ID, "unavailable")
	assert.ErrorIs(t, err, db.ErrConflict)

	out, err = run(t, "--config", cfgPath, "usage", "checkin", it.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked in "+it.ID)

	_, err = run(t, "--config", cfgPath, "usage", "checkin", it.ID)
	assert.ErrorIs(t, err, db.ErrConflict)

	out, err = run(t, "--config", cfgPath, "usage", "history", it.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "survey")
	assert.NotContains(t, out, "open")

	png := filepath.Join(dir, "tag.png")
	out, err = run(t, "--config", cfgPath, "equipment", "qrcode", it.ID, "-o", png)
	require.NoError(t, err)
	assert.Contains(t, out, `"CLI-1"`)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestCLI_UnknownEquipment(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
log_level: error
database:
  driver: sqlite
  path: `+filepath.Join(dir, "equipment.db")+`
`)
	_, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)

	_, err = run(t, "--config", cfgPath, "usage", "history", "not-an-id")
	assert.ErrorIs(t, err, db.ErrInvalidID)

	out, err := run(t, "--config", cfgPath, "equipment", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No equipment found")
}

func TestOpenSession_WiresEventPublisher(t *testing.T) {
	prevCfg, prevLogger := cfg, logger
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
	logger = hclog.NewNullLogger()

	dbPath := filepath.Join(t.TempDir(), "equipment.db")
	cfg = &config.Config{
		Database: config.Database{Driver: "sqlite", Path: dbPath},
		Usage:    config.Usage{DefaultHistoryLimit: 10, MaxHistoryLimit: 100},
	}

	s, err := openSession()
	require.NoError(t, err)
	assert.IsType(t, events.Nop{}, s.pub)
	s.Close()

	// the kafka client dials lazily, so an unreachable broker still builds
	cfg.Kafka = config.Kafka{Brokers: []string{"127.0.0.1:1"}, Topic: "equipment.usage"}
	s, err = openSession()
	require.NoError(t, err)
	assert.IsType(t, &events.KafkaPublisher{}, s.pub)
	s.Close()

	cfg.Kafka.Topic = ""
	_, err = openSession()
	assert.Error(t, err)
}

func TestCLI_TransitionsPublishEvents(t *testing.T) {
	mem := &events.Memory{}
	prev := newPublisher
	newPublisher = func(events.KafkaConfig) (events.Publisher, error) { return mem, nil }
	t.Cleanup(func() { newPublisher = prev })

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
log_level: error
database:
  driver: sqlite
  path: `+filepath.Join(dir, "equipment.db")+`
`)
	catalog := writeFile(t, dir, "catalog.yaml", "equipment:\n  - description: Pump\n    scan_code: EV-1\n")

	_, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "catalog", catalog)
	require.NoError(t, err)

	conn, err := db.Open(config.Database{Driver: "sqlite", Path: filepath.Join(dir, "equipment.db")}, hclog.NewNullLogger())
	require.NoError(t, err)
	it, err := db.NewRepo(conn).FindEquipmentByScanCode(context.Background(), "EV-1")
	require.NoError(t, err)
	closeDB(conn)

	_, err = run(t, "--config", cfgPath, "usage", "checkout", it.ID,
		"--requester", uuid.NewString(), "--activity", "drain", "--signature", "sig")
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "usage", "checkin", it.ID)
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "equipment", "status", it.ID, "unavailable", "--reason", "seal")
	require.NoError(t, err)

	var types []events.Type
	for _, ev := range mem.Events() {
		assert.Equal(t, it.ID, ev.EquipmentID)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []events.Type{events.TypeCheckout, events.TypeCheckin, events.TypeStatusOverride}, types)
}
