package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"equipment_usage_tracker/config"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/lifecycle"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", db.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", db.ErrInvalidID), http.StatusBadRequest},
		{fmt.Errorf("x: %w", db.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", db.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", db.ErrConcurrencyConflict), http.StatusConflict},
		{&db.AlreadyReturnedError{}, http.StatusConflict},
		{fmt.Errorf("x: %w", db.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorStatus(tc.err), tc.err.Error())
	}
}

func serveError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(hclog.NewNullLogger()))
	r.GET("/", func(c *gin.Context) { AbortWithError(c, err) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorHandler(t *testing.T) {
	t.Run("validation fields", func(t *testing.T) {
		err := db.NewValidationError(validation.Errors{"activity": errors.New("cannot be blank")})
		code, body := serveError(t, err)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, []any{"VALIDATION_ERROR"}, body["code"])
		assert.Equal(t, map[string]any{"activity": "cannot be blank"}, body["fields"])
	})

	t.Run("already returned", func(t *testing.T) {
		at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
		code, body := serveError(t, &db.AlreadyReturnedError{EpisodeID: "e", ReturnedAt: at})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, []any{"CONFLICT"}, body["code"])
		assert.Equal(t, "2024-03-01T10:30:00Z", body["returnedAt"])
	})

	t.Run("concurrency conflict", func(t *testing.T) {
		code, body := serveError(t, fmt.Errorf("close: %w", db.ErrConcurrencyConflict))
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, []any{"CONCURRENCY_CONFLICT"}, body["code"])
	})

	t.Run("server errors hide details", func(t *testing.T) {
		code, body := serveError(t, fmt.Errorf("query: %w: dial tcp refused", db.ErrStoreUnavailable))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "Service Unavailable", body["message"])

		code, body = serveError(t, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, []any{"INTERNAL"}, body["code"])
		assert.Equal(t, "Internal Server Error", body["message"])
	})
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Actor(c, "nobody"))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	req.Header.Set(HeaderActor, "desk-1")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "desk-1", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	assert.Equal(t, "nobody", rec.Body.String())
}

func TestParseTime(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T09:00:00Z":      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		"2024-03-01T10:00:00+01:00": time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2024-03-01 14:30":          time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseTime("yesterday-ish")
	assert.ErrorIs(t, err, db.ErrValidation)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Database: config.Database{Driver: "sqlite", Path: ":memory:"},
		Usage:    config.Usage{DefaultHistoryLimit: 10, MaxHistoryLimit: 100},
	}
	conn, err := db.Open(cfg.Database, hclog.NewNullLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return Build(cfg, hclog.NewNullLogger(), conn, nil, nil)
}

func TestBootstrapCatalog(t *testing.T) {
	a := newTestApp(t)
	defer a.Close()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
equipment:
  - description: Generator
    brand: Honda
    intake_date: "2023-11-02"
    scan_code: GEN-1
  - description: Ladder
    scan_code: LAD-1
    status: unavailable
`), 0o600))

	n, err := BootstrapCatalog(ctx, path, a.Lifecycle, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = BootstrapCatalog(ctx, path, a.Lifecycle, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "known scan codes are skipped")

	gen, err := a.Lifecycle.Repo().FindEquipmentByScanCode(ctx, "GEN-1")
	require.NoError(t, err)
	assert.Equal(t, "Honda", gen.Brand)
	require.NotNil(t, gen.IntakeDate)
	assert.Equal(t, 2023, gen.IntakeDate.Year())

	views, err := a.Lifecycle.ListEquipment(ctx, "", "unavailable")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Ladder", views[0].Description)
	assert.Equal(t, lifecycle.StateAvailable, views[0].State)
}

func TestBootstrapCatalog_Errors(t *testing.T) {
	a := newTestApp(t)
	defer a.Close()
	ctx := context.Background()

	n, err := BootstrapCatalog(ctx, "", a.Lifecycle, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = BootstrapCatalog(ctx, filepath.Join(t.TempDir(), "missing.yaml"), a.Lifecycle, hclog.NewNullLogger())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("equipment:\n  - brand: no description\n"), 0o600))
	_, err = BootstrapCatalog(ctx, path, a.Lifecycle, hclog.NewNullLogger())
	assert.ErrorIs(t, err, db.ErrValidation)
}

func TestClose(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Close())

	sqlDB, err := a.DB.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
