package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/internal/app/service/preference"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/internal/models"
	cfgpkg "github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/response"
)

type envelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
}

func (e *envelope) detail(t *testing.T) response.ErrorDetail {
	t.Helper()
	var d response.ErrorDetail
	require.NoError(t, json.Unmarshal(e.Data, &d))
	return d
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func authed(r gin.IRouter, path string) *gin.RouterGroup {
	return r.Group(path, mw.Auth(cfgpkg.AuthModeHeader, nil, zap.NewNop().Sugar()))
}

// do sends body as JSON (nil means no body) and decodes the envelope.
func do(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, &env
}

func asUser(uid string) map[string]string { return map[string]string{mw.HeaderUserID: uid} }

func asAdmin(uid string) map[string]string {
	return map[string]string{mw.HeaderUserID: uid, mw.HeaderUserAdmin: "true"}
}

type stubSubscription struct {
	access     *subscription.AccessResult
	history    []*models.SubscriptionHistory
	historyErr error
	rec        *models.SubscriptionRecord
	err        error

	lastUser  string
	lastLimit int
	lastSess  string
}

func (s *stubSubscription) CheckAccess(_ context.Context, userID string) *subscription.AccessResult {
	s.lastUser = userID
	return s.access
}

func (s *stubSubscription) History(_ context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error) {
	s.lastUser, s.lastLimit = userID, limit
	return s.history, s.historyErr
}

func (s *stubSubscription) Cancel(_ context.Context, userID string) (*models.SubscriptionRecord, error) {
	s.lastUser = userID
	return s.rec, s.err
}

func (s *stubSubscription) MarkRefunded(_ context.Context, userID, sessionID string) (*models.SubscriptionRecord, error) {
	s.lastUser, s.lastSess = userID, sessionID
	return s.rec, s.err
}

type stubVerifier struct {
	res  *payment.VerifyResult
	err  error
	last *payment.VerifyRequest
}

func (s *stubVerifier) Verify(_ context.Context, req *payment.VerifyRequest) (*payment.VerifyResult, error) {
	s.last = req
	return s.res, s.err
}

type stubChat struct {
	participant *chat.Participant
	send        *chat.SendResult
	page        *chat.MessagePage
	typing      []string
	transition  *chat.TypingTransition
	err         error

	lastBefore time.Time
	lastLimit  int
	lastToken  string
}

func (s *stubChat) Join(_ context.Context, _, _, token string) (*chat.Participant, error) {
	s.lastToken = token
	return s.participant, s.err
}

func (s *stubChat) Leave(_ context.Context, _, _, token string) error {
	s.lastToken = token
	return s.err
}

func (s *stubChat) Send(_ context.Context, _, _, token, _ string) (*chat.SendResult, error) {
	s.lastToken = token
	return s.send, s.err
}

func (s *stubChat) SendGIF(_ context.Context, _, _, _, _ string) (*chat.SendResult, error) {
	return s.send, s.err
}

func (s *stubChat) Messages(_ context.Context, _ string, before time.Time, limit int) (*chat.MessagePage, error) {
	s.lastBefore, s.lastLimit = before, limit
	return s.page, s.err
}

func (s *stubChat) Keystroke(_ context.Context, _, _, _, _ string) (*chat.TypingTransition, error) {
	return s.transition, s.err
}

func (s *stubChat) Typing(_ context.Context, _, _ string) ([]string, error) {
	return s.typing, s.err
}

func (s *stubChat) Participants(_ context.Context, _ string) ([]*chat.Participant, error) {
	if s.participant == nil {
		return nil, s.err
	}
	return []*chat.Participant{s.participant}, s.err
}

type stubPreference struct {
	values  map[string]string
	err     error
	changes chan *preference.Change

	lastScope string
}

func (s *stubPreference) Get(_ context.Context, scope, key string) (string, error) {
	s.lastScope = scope
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[key]
	if !ok {
		return "", preference.ErrNotFound
	}
	return v, nil
}

func (s *stubPreference) GetAll(_ context.Context, scope string) (map[string]string, error) {
	s.lastScope = scope
	return s.values, s.err
}

func (s *stubPreference) Set(_ context.Context, scope, key, value string) (string, error) {
	s.lastScope = scope
	if s.err != nil {
		return "", s.err
	}
	s.values[key] = value
	return value, nil
}

func (s *stubPreference) Delete(_ context.Context, scope, key string) error {
	s.lastScope = scope
	delete(s.values, key)
	return s.err
}

func (s *stubPreference) ToggleFavorite(_ context.Context, scope, matchID string) ([]string, error) {
	s.lastScope = scope
	return []string{matchID}, s.err
}

func (s *stubPreference) Subscribe(_ context.Context, scope string) (<-chan *preference.Change, func(), error) {
	s.lastScope = scope
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.changes, func() {}, nil
}

type stubStatistics struct {
	res *statistics.Response
	err error
}

func (s *stubStatistics) Query(_ context.Context, _ *statistics.Request) (*statistics.Response, error) {
	return s.res, s.err
}

type stubLogs struct {
	res *verificationlog.ScanResponse
	err error
}

func (s *stubLogs) Scan(_ context.Context, _ *verificationlog.ScanRequest) (*verificationlog.ScanResponse, error) {
	return s.res, s.err
}

var (
	_ SubscriptionService    = (*stubSubscription)(nil)
	_ PaymentVerifier        = (*stubVerifier)(nil)
	_ ChatService            = (*stubChat)(nil)
	_ PreferenceService      = (*stubPreference)(nil)
	_ StatisticsService      = (*stubStatistics)(nil)
	_ VerificationLogScanner = (*stubLogs)(nil)
)
