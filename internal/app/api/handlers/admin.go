package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/pkg/response"
)

type RefundRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// @Summary      Subscription statistics (Admin)
// @Description  Computes the requested data items concurrently. Items a filter does not apply to are null.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.Request true "filters and data items"
// @Success      200  {object}  handlers.RespStatistics
// @Router       /api/v1/admin/statistics [post]
func ApiStatistics(svc StatisticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Query(c.Request.Context(), &req)
		if err != nil {
			fail(c, subscriptionStatus(err), "", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Mark a subscription refunded (Admin)
// @Description  Deactivates the subscription created by session_id. Repeating the call is a no-op.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.RefundRequest true "refund"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/refund [post]
func ApiRefund(svc SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		rec, err := svc.MarkRefunded(c.Request.Context(), req.UserID, req.SessionID)
		if err != nil {
			fail(c, subscriptionStatus(err), "", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// @Summary      List verification logs (Admin)
// @Description  Paginated, filterable audit of payment verification attempts.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body verificationlog.ScanRequest true "filters, paging and sort"
// @Success      200  {object}  handlers.RespVerificationLogs
// @Router       /api/v1/admin/verification_logs [post]
func ApiVerificationLogs(svc VerificationLogScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verificationlog.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Scan(c.Request.Context(), &req)
		if err != nil {
			if verificationlog.IsInvalidRequest(err) {
				badRequest(c, err)
				return
			}
			fail(c, http.StatusInternalServerError, "", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, stats StatisticsService, sub SubscriptionService, logs VerificationLogScanner) {
	r.POST("/statistics", ApiStatistics(stats))
	r.POST("/refund", ApiRefund(sub))
	r.POST("/verification_logs", ApiVerificationLogs(logs))
}
