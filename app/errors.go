package app

import (
	"errors"
	"net/http"
	"time"

	"equipment_usage_tracker/db"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// errorStatusMap maps domain errors to HTTP status codes. Order of the
// lookup matters: ErrConcurrencyConflict is checked before ErrConflict.
var errorStatusMap = []struct {
	err    error
	status int
	code   string
}{
	{db.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{db.ErrInvalidID, http.StatusBadRequest, "INVALID_IDENTIFIER"},
	{db.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{db.ErrConcurrencyConflict, http.StatusConflict, "CONCURRENCY_CONFLICT"},
	{db.ErrConflict, http.StatusConflict, "CONFLICT"},
	{db.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
}

type errorStruct struct {
	Succeed    bool              `json:"success"`
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Code       []string          `json:"code,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	ReturnedAt *time.Time        `json:"returnedAt,omitempty"`
}

// ErrorStatus returns the HTTP status code for err; unknown errors are 500.
func ErrorStatus(err error) int {
	for _, e := range errorStatusMap {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	for _, e := range errorStatusMap {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL"
}

// ErrorHandler renders the last error a handler attached with c.Error as the
// JSON error envelope. Only server errors are logged above debug.
func ErrorHandler(log hclog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := ErrorStatus(err)

		if status >= 500 {
			log.Error("request failed with server error",
				"error", err,
				"status", status,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", c.GetString("requestID"),
			)
		} else {
			log.Debug("request rejected", "error", err, "status", status, "path", c.Request.URL.Path)
		}

		if c.Writer.Written() {
			return
		}
		resp := errorStruct{
			Succeed: false,
			Status:  "error",
			Message: err.Error(),
			Code:    []string{errorCode(err)},
		}
		if status >= 500 {
			resp.Message = http.StatusText(status)
		}

		var verr *db.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = make(map[string]string, len(verr.Fields))
			for k, v := range verr.Fields {
				resp.Fields[k] = v.Error()
			}
		}
		var already *db.AlreadyReturnedError
		if errors.As(err, &already) {
			t := already.ReturnedAt
			resp.ReturnedAt = &t
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

// AbortWithError attaches err for ErrorHandler and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
