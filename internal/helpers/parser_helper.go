package helpers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// QueryInt reads a non-negative integer query parameter, falling back to def
// when it is absent or malformed and clamping it to max when max > 0.
func QueryInt(c *gin.Context, key string, def, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := StringToInt(raw)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
