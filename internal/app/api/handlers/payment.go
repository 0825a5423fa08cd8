package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/pkg/response"
)

var errUIDMismatch = errors.New("uid does not match the authenticated user")

// @Summary      Verify a checkout session
// @Description  Confirms a hosted checkout session with the payment provider and activates the plan. Each session activates at most once.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.VerifyRequest true "session, user and plan"
// @Success      200  {object}  handlers.RespVerify
// @Failure      400  {object}  handlers.RespError
// @Router       /api/verify-subscription [post]
func ApiVerifySubscription(v PaymentVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, payment.CodeMissingParams, err)
			return
		}
		id := mw.IdentityFrom(c)
		switch {
		case req.UserID == "" && id != nil:
			req.UserID = id.UserID
		case req.UserID != "" && (id == nil || id.UserID != req.UserID):
			fail(c, http.StatusForbidden, "", errUIDMismatch)
			return
		}
		res, err := v.Verify(c.Request.Context(), &req)
		if err != nil {
			code := payment.ErrorCode(err)
			status := http.StatusBadRequest
			if code == payment.CodeInternal {
				status = http.StatusInternalServerError
			}
			fail(c, status, code, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, v PaymentVerifier) {
	r.POST("/verify-subscription", ApiVerifySubscription(v))
}
