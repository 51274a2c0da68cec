package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/middleware"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// actorFrom builds the audit actor of a request
func actorFrom(c *gin.Context) audit.Actor {
	return audit.Actor{
		ID:        middleware.ActorID(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// pathUUID reads a path parameter that must be a UUID
func pathUUID(c *gin.Context, name string) (string, error) {
	raw := c.Param(name)
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", apperror.Validation("%s must be a UUID: %q", name, raw)
	}
	return u.String(), nil
}

// optionalString returns nil for an empty query value
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// queryInt reads an integer query parameter, falling back to def when absent
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation("%s must be an integer: %q", name, raw)
	}
	return n, nil
}

// queryTime reads an RFC 3339 timestamp or a YYYY-MM-DD date
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(types.DateFormat, raw); err == nil {
		return &t, nil
	}
	return nil, apperror.Validation("%s must be a RFC 3339 timestamp or a %s date: %q", name, types.DateFormat, raw)
}

// dateToTime converts types.Date to time.Time
func dateToTime(d types.Date) time.Time {
	return d.Time
}

// dateToTimePtr converts *types.Date to *time.Time
func dateToTimePtr(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// attachment formats a Content-Disposition header value
func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
