package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/response"
	"github.com/fatflowers/matchday/pkg/types"
)

// @Summary      Health check
// @Description  Returns service status
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

// @Summary      List plans
// @Description  Returns the subscription plan catalog with server-side prices.
// @Tags         Subscription
// @Produce      json
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans [get]
func ApiListPlans(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans := cfg.Plans
		if plans == nil {
			plans = []*types.Plan{}
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
