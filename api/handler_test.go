package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electrowiki/assistant/api"
	"github.com/electrowiki/assistant/auth"
	"github.com/electrowiki/assistant/config"
	"github.com/electrowiki/assistant/domain"
	"github.com/electrowiki/assistant/gateway"
	"github.com/electrowiki/assistant/llm"
	"github.com/electrowiki/assistant/tests/helpers"
)

const (
	testToken = "test-token"
	testUser  = "admin@example.com"
)

// newTestServer wires a full gateway against the given fake provider.
func newTestServer(t *testing.T, providerURL string) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		OpenAIBaseURL: providerURL,
		OpenAIAPIKey:  "test-key",
		Model:         "gpt-3.5-turbo",
		MaxTokens:     300,
		Temperature:   0.7,
		LLMTimeout:    time.Second,
	}

	st := helpers.NewTestSQLiteStore(t)
	client := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMTimeout)
	gw := gateway.New(cfg, client, st, nil)
	resolver := auth.NewTokenResolver(testToken, testUser)
	h := api.NewHandler(gw, resolver, st)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func newFakeProvider(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const providerOKBody = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Ohm's Law states V = IR."},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`

func doAssistant(e *echo.Echo, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/assistant", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAssistantSuccess(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"What is Ohm's Law?"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.AssistantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Ohm's Law states V = IR.", resp.Response)
	assert.Equal(t, testUser, resp.User)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestAssistantUnauthenticated(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"hello"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, gateway.MsgAuthRequired, errorOf(t, rec))
}

func TestAssistantInvalidPrompt(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing field", `{}`, gateway.MsgPromptRequired},
		{"not a string", `{"prompt": 42}`, gateway.MsgPromptRequired},
		{"not json", `prompt=hello`, gateway.MsgPromptRequired},
		{"empty", `{"prompt": ""}`, gateway.MsgPromptEmpty},
		{"whitespace", `{"prompt": "   "}`, gateway.MsgPromptEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doAssistant(e, tc.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, errorOf(t, rec))
		})
	}
}

func TestAssistantPromptTooLong(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	long := bytes.Repeat([]byte("a"), gateway.MaxPromptChars+1)
	body, _ := json.Marshal(map[string]string{"prompt": string(long)})

	rec := doAssistant(e, string(body), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, gateway.MsgPromptTooLong, errorOf(t, rec))
}

func TestAssistantMethodNotAllowed(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		req := httptest.NewRequest(method, "/api/assistant", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestAssistantProviderOverloaded(t *testing.T) {
	provider := newFakeProvider(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"hello"}`, true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, gateway.MsgOverloaded, errorOf(t, rec))
}

func TestAssistantProviderTimeout(t *testing.T) {
	provider := newFakeProvider(t, http.StatusRequestTimeout,
		`{"error":{"message":"Request timed out","type":"timeout"}}`)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"hello"}`, true)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Equal(t, gateway.MsgTimeout, errorOf(t, rec))
}

func TestAssistantProviderFailure(t *testing.T) {
	provider := newFakeProvider(t, http.StatusInternalServerError,
		`{"error":{"message":"something broke","type":"server_error"}}`)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"hello"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Internal detail never leaks to the caller.
	assert.Equal(t, gateway.MsgUpstream, errorOf(t, rec))
	assert.NotContains(t, rec.Body.String(), "something broke")
}

func TestListCompletions(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	rec := doAssistant(e, `{"prompt":"What is Ohm's Law?"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/completions?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	listRec := httptest.NewRecorder()
	e.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var resp struct {
		Completions []domain.CompletionRecord `json:"completions"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &resp))
	require.Len(t, resp.Completions, 1)
	assert.Equal(t, domain.OutcomeOK, resp.Completions[0].Outcome)
	assert.Equal(t, testUser, resp.Completions[0].Caller)
	assert.Equal(t, 20, resp.Completions[0].TotalTokens)

	// Unauthenticated listing is rejected.
	req = httptest.NewRequest(http.MethodGet, "/v1/completions", nil)
	listRec = httptest.NewRecorder()
	e.ServeHTTP(listRec, req)
	assert.Equal(t, http.StatusUnauthorized, listRec.Code)
}

type limitCaptureStore struct {
	lastLimit int
}

func (s *limitCaptureStore) RecordCompletion(ctx context.Context, rec *domain.CompletionRecord) error {
	return nil
}

func (s *limitCaptureStore) ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	s.lastLimit = limit
	return nil, nil
}

func (s *limitCaptureStore) Close() error { return nil }

func TestListCompletionsLimitCapped(t *testing.T) {
	st := &limitCaptureStore{}
	resolver := auth.NewTokenResolver(testToken, testUser)
	h := api.NewHandler(nil, resolver, st)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/v1/completions?limit=1000000", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, st.lastLimit)
}

func TestHealth(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, providerOKBody)
	e := newTestServer(t, provider.URL)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
