package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	"github.com/fatflowers/matchday/pkg/response"
)

var streamHeartbeat = 25 * time.Second

type PreferenceSetRequest struct {
	Value string `json:"value"`
}

type FavoriteToggleRequest struct {
	MatchID string `json:"match_id" binding:"required"`
}

func preferenceFail(c *gin.Context, err error) {
	fail(c, preferenceStatus(err), "", err)
}

// @Summary      List preferences
// @Tags         Preferences
// @Produce      json
// @Param        X-Device-ID  header  string  true  "device id"
// @Success      200  {object}  handlers.RespPreferences
// @Router       /api/v1/preferences [get]
func ApiListPreferences(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := svc.GetAll(c.Request.Context(), mw.DeviceFrom(c))
		if err != nil {
			preferenceFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(all))
	}
}

// @Summary      Get a preference
// @Tags         Preferences
// @Produce      json
// @Param        X-Device-ID  header  string  true  "device id"
// @Param        key  path  string  true  "streamed_favorites | chat_username | chat_sound_enabled"
// @Success      200  {object}  handlers.RespPreference
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/preferences/keys/{key} [get]
func ApiGetPreference(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		v, err := svc.Get(c.Request.Context(), mw.DeviceFrom(c), key)
		if err != nil {
			preferenceFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(PreferenceValue{Key: key, Value: v}))
	}
}

// @Summary      Set a preference
// @Tags         Preferences
// @Accept       json
// @Produce      json
// @Param        X-Device-ID  header  string  true  "device id"
// @Param        key  path  string  true  "preference key"
// @Param        request body handlers.PreferenceSetRequest true "value"
// @Success      200  {object}  handlers.RespPreference
// @Router       /api/v1/preferences/keys/{key} [put]
func ApiSetPreference(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PreferenceSetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		key := c.Param("key")
		stored, err := svc.Set(c.Request.Context(), mw.DeviceFrom(c), key, req.Value)
		if err != nil {
			preferenceFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(PreferenceValue{Key: key, Value: stored}))
	}
}

// @Summary      Delete a preference
// @Tags         Preferences
// @Produce      json
// @Param        X-Device-ID  header  string  true  "device id"
// @Param        key  path  string  true  "preference key"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/preferences/keys/{key} [delete]
func ApiDeletePreference(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), mw.DeviceFrom(c), c.Param("key")); err != nil {
			preferenceFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Toggle a favorite match
// @Tags         Preferences
// @Accept       json
// @Produce      json
// @Param        X-Device-ID  header  string  true  "device id"
// @Param        request body handlers.FavoriteToggleRequest true "match"
// @Success      200  {object}  handlers.RespFavorites
// @Router       /api/v1/preferences/favorites/toggle [post]
func ApiToggleFavorite(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FavoriteToggleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ids, err := svc.ToggleFavorite(c.Request.Context(), mw.DeviceFrom(c), req.MatchID)
		if err != nil {
			preferenceFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(ids))
	}
}

// @Summary      Stream preference changes
// @Description  Server-sent events: one "snapshot" event with all values, then a "change" event per write and a periodic "ping".
// @Tags         Preferences
// @Produce      text/event-stream
// @Param        X-Device-ID  header  string  true  "device id"
// @Router       /api/v1/preferences/stream [get]
func ApiPreferenceStream(svc PreferenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		scope := mw.DeviceFrom(c)
		changes, cancel, err := svc.Subscribe(ctx, scope)
		if err != nil {
			preferenceFail(c, err)
			return
		}
		defer cancel()
		snapshot, err := svc.GetAll(ctx, scope)
		if err != nil {
			preferenceFail(c, err)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("snapshot", snapshot)
		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		c.Stream(func(io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case ch, ok := <-changes:
				if !ok {
					return false
				}
				c.SSEvent("change", ch)
				return true
			case t := <-ticker.C:
				c.SSEvent("ping", t.UnixMilli())
				return true
			}
		})
	}
}

func RegisterPreferenceRoutes(r gin.IRouter, svc PreferenceService) {
	r.GET("", ApiListPreferences(svc))
	r.GET("/stream", ApiPreferenceStream(svc))
	r.GET("/keys/:key", ApiGetPreference(svc))
	r.PUT("/keys/:key", ApiSetPreference(svc))
	r.DELETE("/keys/:key", ApiDeletePreference(svc))
	r.POST("/favorites/toggle", ApiToggleFavorite(svc))
}
