package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Every error response carries the same {success:false, error} shape so
// clients never see a partial or ambiguous body.
func respondError(c *gin.Context, status int, format string, args ...any) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}

func respondRateLimited(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	respondError(c, http.StatusTooManyRequests, "rate limit exceeded, retry after %s", retryAfter)
}

func respondOK(c *gin.Context, payload gin.H) {
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}
