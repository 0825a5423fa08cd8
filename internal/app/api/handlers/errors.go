package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/moderation"
	"github.com/fatflowers/matchday/internal/app/service/preference"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/pkg/response"
)

var envelopeCodes = map[int]response.APIResponseCode{
	http.StatusBadRequest:          response.APIResponseCodeBadRequest,
	http.StatusUnauthorized:        response.APIResponseCodeUnauthorized,
	http.StatusForbidden:           response.APIResponseCodeForbidden,
	http.StatusNotFound:            response.APIResponseCodeNotFound,
	http.StatusConflict:            response.APIResponseCodeConflict,
	http.StatusTooManyRequests:     response.APIResponseCodeRateLimited,
	http.StatusInternalServerError: response.APIResponseCodeError,
}

// fail writes the error envelope with a real HTTP status. Server errors are
// attached to the gin context for the access log and masked in the body.
func fail(c *gin.Context, status int, errorCode string, err error) {
	code, ok := envelopeCodes[status]
	if !ok {
		code = response.APIResponseCodeError
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		// internal details stay in the log
		err = errors.New(http.StatusText(status))
	}
	c.JSON(status, response.ErrorCode(code, errorCode, err))
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "", err)
}

// chatStatus maps chat and username errors to HTTP statuses.
func chatStatus(err error) (int, string) {
	var ue *moderation.UsernameError
	switch {
	case errors.As(err, &ue):
		if ue.Reason == moderation.UsernameTaken {
			return http.StatusConflict, string(ue.Reason)
		}
		return http.StatusBadRequest, string(ue.Reason)
	case errors.Is(err, chat.ErrInvalidMatch), errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong), errors.Is(err, chat.ErrInvalidGIF):
		return http.StatusBadRequest, ""
	case errors.Is(err, chat.ErrNotJoined):
		return http.StatusNotFound, ""
	case errors.Is(err, chat.ErrInvalidToken):
		return http.StatusForbidden, ""
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests, ""
	}
	return http.StatusInternalServerError, ""
}

func preferenceStatus(err error) int {
	switch {
	case errors.Is(err, preference.ErrUnknownKey), errors.Is(err, preference.ErrInvalidValue), errors.Is(err, preference.ErrInvalidScope):
		return http.StatusBadRequest
	case errors.Is(err, preference.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, preference.ErrContended):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func subscriptionStatus(err error) int {
	switch {
	case errors.Is(err, subscription.ErrMissingUserID):
		return http.StatusBadRequest
	case errors.Is(err, subscription.ErrNoSubscription):
		return http.StatusNotFound
	case errors.Is(err, subscription.ErrSessionMismatch):
		return http.StatusConflict
	case errors.Is(err, statistics.ErrInvalidStatistic):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type paramError string

func (p paramError) Error() string { return "invalid parameter: " + string(p) }

func errInvalidParam(name string) error { return paramError(name) }
