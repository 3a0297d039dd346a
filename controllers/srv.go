// controllers/srv.go
package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

type Srv struct {
	Lifecycle *lifecycle.Coordinator
	Repo      *db.Repo
	Log       hclog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Lifecycle: a.Lifecycle,
		Repo:      a.Lifecycle.Repo(),
		Log:       a.Log.Named("controllers"),
	}
}

// --- helpers ---

// bad wraps a binding/parsing failure as a validation error.
func bad(err error) error {
	return fmt.Errorf("%w: %v", db.ErrValidation, err)
}

// bindJSON binds the body; an empty body is allowed when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) error {
	if optional && c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return bad(err)
	}
	return nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", db.ErrValidation, name)
	}
	return n, nil
}

// optTime parses an optional timestamp field.
func optTime(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := app.ParseTime(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optString(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (s *Srv) Health(c *gin.Context) {
	if err := s.Repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
