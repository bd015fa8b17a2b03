package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt returns nil when the parameter is absent.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name, "must be an integer")
		return nil, false
	}
	return &v, true
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

func queryDate(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		badRequest(c, name, "must be a date (YYYY-MM-DD)")
		return time.Time{}, false
	}
	// the whole day counts
	return t.Add(24*time.Hour - time.Nanosecond), true
}

// bindJSON decodes the body into dest; on failure it has already answered 400.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "body", err.Error())
		return false
	}
	return true
}

// statusQuery reads an optional enum filter. valid reports whether a value is known.
func statusQuery[T ~string](c *gin.Context, name string, valid func(T) bool) (*T, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v := T(raw)
	if !valid(v) {
		badRequest(c, name, "unknown value "+raw)
		return nil, false
	}
	return &v, true
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// optionalReason reads {"reason": "..."} when a body was sent.
func optionalReason(c *gin.Context) (string, bool) {
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var body reasonBody
	if !bindJSON(c, &body) {
		return "", false
	}
	return body.Reason, true
}
