package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// Pagination reads limit/offset query parameters, clamped to sane bounds.
func Pagination(c *gin.Context) (limit, offset int) {
	limit = ParseInt(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)), DefaultPageSize)
	offset = ParseInt(c.DefaultQuery("offset", "0"), 0)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PageMeta is the pagination block attached to list responses.
func PageMeta(limit, offset, count int, total int64) gin.H {
	return gin.H{
		"limit":   limit,
		"offset":  offset,
		"total":   total,
		"hasMore": int64(offset+count) < total,
	}
}
