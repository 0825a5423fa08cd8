package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/matchday/pkg/response"
)

type ChatMemberRequest struct {
	Username string `json:"username" binding:"required"`
	// Token is returned by join and required by every later write.
	Token string `json:"token"`
}

type ChatSendRequest struct {
	ChatMemberRequest
	Text string `json:"text"`
}

type ChatGIFRequest struct {
	ChatMemberRequest
	URL string `json:"url" binding:"required"`
}

type ChatTypingRequest struct {
	ChatMemberRequest
	Draft string `json:"draft"`
}

func chatFail(c *gin.Context, err error) {
	status, code := chatStatus(err)
	fail(c, status, code, err)
}

// @Summary      Join match chat
// @Description  Validates the username against the match and returns the participant with its token. Sending a previous token resumes that participant.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Param        request body handlers.ChatMemberRequest true "username and optional token"
// @Success      200  {object}  handlers.RespParticipant
// @Failure      400  {object}  handlers.RespError
// @Failure      409  {object}  handlers.RespError
// @Router       /api/v1/chat/{match_id}/join [post]
func ApiChatJoin(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		p, err := svc.Join(c.Request.Context(), c.Param("match_id"), req.Username, req.Token)
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Leave match chat
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Param        request body handlers.ChatMemberRequest true "username and token"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/chat/{match_id}/leave [post]
func ApiChatLeave(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.Leave(c.Request.Context(), c.Param("match_id"), req.Username, req.Token); err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Send chat message
// @Description  Moderates and stores a message. Suppressed messages return suppressed=true and are not stored.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Param        request body handlers.ChatSendRequest true "message"
// @Success      200  {object}  handlers.RespSend
// @Failure      429  {object}  handlers.RespError
// @Router       /api/v1/chat/{match_id}/messages [post]
func ApiChatSend(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Send(c.Request.Context(), c.Param("match_id"), req.Username, req.Token, req.Text)
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Send GIF
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Param        request body handlers.ChatGIFRequest true "gif"
// @Success      200  {object}  handlers.RespSend
// @Router       /api/v1/chat/{match_id}/gif [post]
func ApiChatSendGIF(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatGIFRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.SendGIF(c.Request.Context(), c.Param("match_id"), req.Username, req.Token, req.URL)
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List chat messages
// @Description  Returns a chronological page. Pass next_before as before to page back.
// @Tags         Chat
// @Produce      json
// @Param        match_id  path   string  true   "match id"
// @Param        before    query  int     false  "unix ms cursor"
// @Param        limit     query  int     false  "page size (max 50)"
// @Success      200  {object}  handlers.RespMessages
// @Router       /api/v1/chat/{match_id}/messages [get]
func ApiChatMessages(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var before time.Time
		if v := c.Query("before"); v != "" {
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil || ms <= 0 {
				badRequest(c, errInvalidParam("before"))
				return
			}
			before = time.UnixMilli(ms)
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(c, errInvalidParam("limit"))
				return
			}
			limit = n
		}
		page, err := svc.Messages(c.Request.Context(), c.Param("match_id"), before, limit)
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(page))
	}
}

// @Summary      List chat participants
// @Tags         Chat
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Success      200  {object}  handlers.RespParticipants
// @Router       /api/v1/chat/{match_id}/participants [get]
func ApiChatParticipants(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Participants(c.Request.Context(), c.Param("match_id"))
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(list))
	}
}

// @Summary      Who is typing
// @Tags         Chat
// @Produce      json
// @Param        match_id  path   string  true   "match id"
// @Param        viewer    query  string  false  "username to exclude"
// @Success      200  {object}  handlers.RespTyping
// @Router       /api/v1/chat/{match_id}/typing [get]
func ApiChatTyping(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := svc.Typing(c.Request.Context(), c.Param("match_id"), c.Query("viewer"))
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(names))
	}
}

// @Summary      Report a keystroke
// @Description  A non-empty draft marks the user typing; an empty draft clears it.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        match_id  path  string  true  "match id"
// @Param        request body handlers.ChatTypingRequest true "draft"
// @Success      200  {object}  handlers.RespTypingTransition
// @Router       /api/v1/chat/{match_id}/typing [post]
func ApiChatKeystroke(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChatTypingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := svc.Keystroke(c.Request.Context(), c.Param("match_id"), req.Username, req.Token, req.Draft)
		if err != nil {
			chatFail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(t))
	}
}

// RegisterChatRoutes mounts the chat API. writeGuard wraps the write routes,
// typically with a rate limiter.
func RegisterChatRoutes(r gin.IRouter, svc ChatService, writeGuard ...gin.HandlerFunc) {
	g := r.Group("/:match_id")
	g.GET("/messages", ApiChatMessages(svc))
	g.GET("/participants", ApiChatParticipants(svc))
	g.GET("/typing", ApiChatTyping(svc))

	w := g.Group("", writeGuard...)
	w.POST("/join", ApiChatJoin(svc))
	w.POST("/leave", ApiChatLeave(svc))
	w.POST("/messages", ApiChatSend(svc))
	w.POST("/gif", ApiChatSendGIF(svc))
	w.POST("/typing", ApiChatKeystroke(svc))
}
