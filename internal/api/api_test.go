package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/health"
	"github.com/Proton-105/fitcoach-bot/internal/i18n"
	"github.com/Proton-105/fitcoach-bot/internal/lifecycle"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
	"github.com/Proton-105/fitcoach-bot/internal/ratelimit"
	"github.com/Proton-105/fitcoach-bot/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, req handoff.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type testServer struct {
	router   *gin.Engine
	recorder *mockRecorder
	probes   *lifecycle.Probes
}

func newTestServer(t *testing.T, checker *health.Checker, guard *ratelimit.Guard) *testServer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	translations, err := i18n.Load("", i18n.LangEnglish)
	require.NoError(t, err)
	provider, err := plan.NewStaticProvider()
	require.NoError(t, err)

	recorder := &mockRecorder{}
	probes := lifecycle.NewProbes(checker, log)

	router := NewRouter(Deps{
		Engine:     conversation.NewEngine(translations, provider, log),
		Lookup:     translations,
		Recorder:   recorder,
		ErrHandler: apperrors.NewHandler(log, false),
		Guard:      guard,
		Probes:     probes,
		Logger:     log,
	})

	return &testServer{router: router, recorder: recorder, probes: probes}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func chatBody(t *testing.T, message any, state any) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"message": message, "chatState": state}))
	return buf.String()
}

func TestChat_LanguageSelection(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, "English", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Great! I'll help you in English. 💚", body["message"])
	assert.Equal(t, true, body["isMainMenu"])

	state, ok := body["newChatState"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "en", state["user_language"])
	assert.Nil(t, state["currentFlow"])
	assert.NotContains(t, body, "isPlan")
}

func TestChat_PlanGeneration(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	state := map[string]any{
		"currentFlow": "weight_loss",
		"slots": map[string]any{
			"current_weight_kg": 70,
			"target_weight_kg":  65,
			"height_cm":         170,
			"wrist_cm":          "N/A",
			"age":               30,
			"gender":            "male",
			"activity_level":    "moderate",
			"food_pref":         "vegetarian",
		},
		"collectedSlots": []string{
			"current_weight_kg", "target_weight_kg", "height_cm", "wrist_cm",
			"age", "gender", "activity_level", "food_pref",
		},
		"user_language": "en",
	}

	rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, "none", state))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["isPlan"])

	planData, ok := body["planData"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2007, planData["dailyCalories"])

	next, ok := body["newChatState"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, next["currentFlow"])
}

func TestChat_HandoffIsRecorded(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.recorder.On("Record", mock.Anything, mock.MatchedBy(func(req handoff.Request) bool {
		return req.Channel == handoff.ChannelHTTP && req.Language == "en" && req.Utterance == "talk to human" && req.SessionRef != ""
	})).Return(nil).Once()

	rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, "talk to human", map[string]any{"user_language": "en"}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Contains(t, body["message"], "An expert will contact you soon")
	assert.NotContains(t, body, "newChatState")
	srv.recorder.AssertExpectations(t)
}

func TestChat_HandoffRecorderFailureStillReplies(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, "human expert", map[string]any{"user_language": "en"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	srv.recorder.AssertExpectations(t)
}

func TestChat_InvalidRequests(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	testCases := []struct {
		name string
		body string
	}{
		{name: "empty message", body: `{"message":"   ","chatState":{"user_language":"en"}}`},
		{name: "missing message", body: `{"chatState":{}}`},
		{name: "numeric message", body: `{"message":42}`},
		{name: "malformed json", body: `{"message":`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/chat", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"message":"Please send a valid message!"}`, rec.Body.String())
		})
	}
}

func TestChat_SkippedWeightAsksToStartAgain(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	state := any(map[string]any{"user_language": "en"})
	for _, answer := range []string{"weight loss", "skip", "65", "170", "16", "30", "male", "moderate", "vegetarian"} {
		rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, answer, state))
		require.Equal(t, http.StatusOK, rec.Code, answer)

		if next, ok := decode(t, rec)["newChatState"]; ok {
			state = next
		}
	}

	want := `{"message":"I need your weight, height and age to build a plan, and one of them was skipped. Please tap 🔄 Start again to begin a new plan."}`
	for attempt := 0; attempt < 2; attempt++ {
		rec := srv.do(http.MethodPost, "/api/chat", chatBody(t, "none", state))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, want, rec.Body.String())
	}

	restartBody, err := json.Marshal(map[string]any{"chatState": state})
	require.NoError(t, err)

	rec := srv.do(http.MethodPost, "/api/chat/restart", string(restartBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["isMainMenu"])
	next, ok := body["newChatState"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, next["currentFlow"])
	assert.Equal(t, "en", next["user_language"])
}

func TestChat_MalformedStateStartsFresh(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for _, state := range []string{`"garbage"`, `[1,2,3]`, `42`} {
		t.Run(state, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/chat", `{"message":"hello","chatState":`+state+`}`)
			require.Equal(t, http.StatusOK, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, "Choose your language / ഭാഷ തിരഞ്ഞെടുക്കുക", body["message"])
			assert.Contains(t, body["quickReplies"], "English 🇬🇧")
		})
	}
}

func TestRestart(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	state := `{"chatState":{"currentFlow":"diet","slots":{"current_weight_kg":80},"collectedSlots":["current_weight_kg"],"user_language":"en"}}`
	rec := srv.do(http.MethodPost, "/api/chat/restart", state)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["isMainMenu"])
	next, ok := body["newChatState"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, next["currentFlow"])
	assert.Equal(t, "en", next["user_language"])

	rec = srv.do(http.MethodPost, "/api/chat/restart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["quickReplies"], "English 🇬🇧")
}

func TestMenu(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	testCases := []struct {
		query    string
		wantLang string
	}{
		{query: "?lang=ml", wantLang: "ml"},
		{query: "?lang=EN", wantLang: "en"},
		{query: "?lang=fr", wantLang: "en"},
		{query: "", wantLang: "en"},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			rec := srv.do(http.MethodGet, "/api/menu"+tc.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var body MenuResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, conversation.Language(tc.wantLang), body.Language)
			assert.Len(t, body.Options, 4)
		})
	}
}

func TestRateLimited(t *testing.T) {
	rules := ratelimit.NewRules(config.RateLimitConfig{
		PerClient: config.RateLimitRule{Limit: 1, Window: "1m"},
	})
	guard := ratelimit.NewGuard(ratelimit.NewMemoryLimiter(nil), rules, nil)
	srv := newTestServer(t, nil, guard)

	first := srv.do(http.MethodGet, "/api/menu", "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := srv.do(http.MethodGet, "/api/menu", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"message":"Too many messages. Please wait a moment and try again."}`, second.Body.String())

	// probes are not throttled
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/healthz", "").Code)
}

func TestProbes(t *testing.T) {
	healthy := true
	checker := health.NewChecker(nil)
	checker.AddCheck("redis", health.CheckFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}))
	srv := newTestServer(t, checker, nil)

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/healthz", "").Code)

	rec := srv.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StatusOK, decode(t, rec)["status"])

	healthy = false
	rec = srv.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, health.StatusDegraded, decode(t, rec)["status"])

	healthy = true
	srv.probes.MarkDraining()
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.do(http.MethodGet, "/api/menu", "")

	rec := srv.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fitcoach_http_requests_total")
}
