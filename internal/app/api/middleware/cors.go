package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	cfgpkg "github.com/fatflowers/matchday/pkg/config"
)

// CORS allows the configured web origins to call the API with credentials.
func CORS(cfg cfgpkg.CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", HeaderRequestID, HeaderDeviceID, HeaderUserID, HeaderUserAdmin},
		ExposeHeaders:    []string{HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
