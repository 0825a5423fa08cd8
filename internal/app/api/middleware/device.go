package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/matchday/pkg/response"
)

const (
	HeaderDeviceID = "X-Device-ID"
	keyDeviceID    = "device_id"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Device requires an opaque device id that scopes local preferences.
func Device() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderDeviceID)
		if id == "" {
			id = c.Query("device_id")
		}
		if !deviceIDPattern.MatchString(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.BadRequest())
			return
		}
		c.Set(keyDeviceID, id)
		c.Next()
	}
}

// DeviceFrom returns the device id set by Device.
func DeviceFrom(c *gin.Context) string { return c.GetString(keyDeviceID) }
