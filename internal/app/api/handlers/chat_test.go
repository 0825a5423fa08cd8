package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/moderation"
	"github.com/fatflowers/matchday/pkg/response"
)

func chatEngine(svc ChatService) http.Handler {
	r := newEngine()
	RegisterChatRoutes(r.Group("/api/v1/chat"), svc)
	return r
}

func TestChatErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		method     string
		path       string
		body       any
		wantStatus int
		wantKey    string
	}{
		{
			name:       "username taken",
			err:        &moderation.UsernameError{Reason: moderation.UsernameTaken},
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/join",
			body:       ChatMemberRequest{Username: "Rover"},
			wantStatus: http.StatusConflict,
			wantKey:    "taken",
		},
		{
			name:       "username profane",
			err:        &moderation.UsernameError{Reason: moderation.UsernameProfanity},
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/join",
			body:       ChatMemberRequest{Username: "Rover"},
			wantStatus: http.StatusBadRequest,
			wantKey:    "profanity",
		},
		{
			name:       "rate limited",
			err:        chat.ErrRateLimited,
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/messages",
			body:       ChatSendRequest{ChatMemberRequest: ChatMemberRequest{Username: "Rover", Token: "t"}, Text: "hi"},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "not joined",
			err:        chat.ErrNotJoined,
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/leave",
			body:       ChatMemberRequest{Username: "Rover", Token: "t"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong token",
			err:        chat.ErrInvalidToken,
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/typing",
			body:       ChatTypingRequest{ChatMemberRequest: ChatMemberRequest{Username: "Rover", Token: "x"}, Draft: "g"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "gif host not allowed",
			err:        chat.ErrInvalidGIF,
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/gif",
			body:       ChatGIFRequest{ChatMemberRequest: ChatMemberRequest{Username: "Rover", Token: "t"}, URL: "https://evil.example/a.gif"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store down",
			err:        errors.New("redis: connection pool timeout"),
			method:     http.MethodGet,
			path:       "/api/v1/chat/m1/participants",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "missing username",
			method:     http.MethodPost,
			path:       "/api/v1/chat/m1/join",
			body:       map[string]string{"token": "t"},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, chatEngine(&stubChat{err: tt.err}), tt.method, tt.path, tt.body, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.NotEqual(t, response.APIResponseCodeOK, env.Code)
			assert.Equal(t, tt.wantKey, env.detail(t).ErrorCode)
		})
	}
}

func TestApiChatJoin(t *testing.T) {
	svc := &stubChat{participant: &chat.Participant{Username: "Rover", Color: "#3b82f6", Token: "tok-1"}}
	w, env := do(t, chatEngine(svc), http.MethodPost, "/api/v1/chat/m1/join", ChatMemberRequest{Username: "Rover", Token: "old"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "old", svc.lastToken)

	var p chat.Participant
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "tok-1", p.Token)
	assert.Equal(t, "#3b82f6", p.Color)
}

func TestApiChatSend_Suppressed(t *testing.T) {
	svc := &stubChat{send: &chat.SendResult{Suppressed: true, Moderated: true}}
	w, env := do(t, chatEngine(svc), http.MethodPost, "/api/v1/chat/m1/messages",
		ChatSendRequest{ChatMemberRequest: ChatMemberRequest{Username: "Rover", Token: "t"}, Text: "..."}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res chat.SendResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Suppressed)
	assert.Nil(t, res.Message)
}

func TestApiChatMessages_Query(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBefore time.Time
		wantLimit  int
	}{
		{name: "defaults", query: "", wantStatus: http.StatusOK},
		{name: "cursor", query: "?before=1772395200000&limit=20", wantStatus: http.StatusOK, wantBefore: time.UnixMilli(1772395200000), wantLimit: 20},
		{name: "bad cursor", query: "?before=yesterday", wantStatus: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubChat{page: &chat.MessagePage{}}
			w, _ := do(t, chatEngine(svc), http.MethodGet, "/api/v1/chat/m1/messages"+tt.query, nil, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.True(t, tt.wantBefore.Equal(svc.lastBefore))
			assert.Equal(t, tt.wantLimit, svc.lastLimit)
		})
	}
}

func TestRegisterChatRoutes_WriteGuard(t *testing.T) {
	r := newEngine()
	guarded := 0
	guard := func(c *gin.Context) {
		guarded++
		c.Next()
	}
	svc := &stubChat{typing: []string{"Ace"}, transition: &chat.TypingTransition{From: chat.TypingIdle, To: chat.TypingActive}}
	RegisterChatRoutes(r.Group("/api/v1/chat"), svc, guard)

	w, env := do(t, r, http.MethodGet, "/api/v1/chat/m1/typing?viewer=rover", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Ace"]`, string(env.Data))
	assert.Equal(t, 0, guarded)

	w, env = do(t, r, http.MethodPost, "/api/v1/chat/m1/typing",
		ChatTypingRequest{ChatMemberRequest: ChatMemberRequest{Username: "Rover", Token: "t"}, Draft: "g"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"from":"idle","to":"typing"}`, string(env.Data))
	assert.Equal(t, 1, guarded)
}
