package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	"github.com/fatflowers/matchday/pkg/response"
)

const maxHistoryLimit = 100

// @Summary      Check subscription access
// @Description  Evaluates whether the caller currently has paid access. Lookup failures never grant access.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespAccess
// @Router       /api/v1/subscription/access [get]
func ApiCheckAccess(svc SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := mw.IdentityFrom(c)
		res := svc.CheckAccess(c.Request.Context(), id.UserID)
		if res.Err != nil {
			_ = c.Error(res.Err)
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Subscription history
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query  int  false  "max rows (default 50, max 100)"
// @Success      200  {object}  handlers.RespHistory
// @Router       /api/v1/subscription/history [get]
func ApiSubscriptionHistory(svc SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				badRequest(c, errInvalidParam("limit"))
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		items, err := svc.History(c.Request.Context(), mw.IdentityFrom(c).UserID, limit)
		if err != nil {
			fail(c, subscriptionStatus(err), "", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      Cancel subscription
// @Description  Stops the caller's current subscription. Canceling twice is a no-op.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription/cancel [post]
func ApiCancelSubscription(svc SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.Cancel(c.Request.Context(), mw.IdentityFrom(c).UserID)
		if err != nil {
			fail(c, subscriptionStatus(err), "", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc SubscriptionService) {
	r.GET("/access", ApiCheckAccess(svc))
	r.GET("/history", ApiSubscriptionHistory(svc))
	r.POST("/cancel", ApiCancelSubscription(svc))
}
