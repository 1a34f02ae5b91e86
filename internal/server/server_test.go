package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/config"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	srv     *Server
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	db, err := repository.NewDB(repository.DialectSQLite, filepath.Join(t.TempDir(), "server-test.db"), logger)
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db, logger))

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Server.Port = "0"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.LLM.HistoryTurns = 6
	cfg.Training.EpochDelay = time.Millisecond
	cfg.Training.MaxEpochs = 50

	srv := NewServer(db, cfg, Deps{}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		_ = db.Close()
	})
	return &testServer{srv: srv, handler: srv.Handler()}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth?action=register", "",
		map[string]string{"email": email, "password": "secret123", "name": "Test"})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func TestLiveness(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "Ann@Example.com")

	status, body := s.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "ann@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, body = s.do(t, http.MethodPost, "/api/auth?action=login", "",
		map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/auth?action=logout", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Unknown action", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "ann@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", body["error"])

	status, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ann@example.com", body["user"].(map[string]any)["email"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/learning/patterns", "/api/ai/train", "/api/models", "/api/brain/memories"} {
		status, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, "Authorization header required", body["error"], path)
	}
	status, _ := s.do(t, http.MethodGet, "/api/models", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMethodNotAllowedAndPreflight(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/api/ai/chat", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "Method not allowed", body["error"])

	status, _ = s.do(t, http.MethodOptions, "/api/ai/chat", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found", body["error"])
}

func TestChatAndPatterns(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "bob@example.com")

	status, body := s.do(t, http.MethodPost, "/api/ai/chat", token, map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Message is required", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/learning/patterns", token,
		map[string]any{"inputPattern": "what is a channel", "responsePattern": "A typed conduit between goroutines."})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(t, http.MethodPost, "/api/ai/chat", token, map[string]string{"message": "what is a channel"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "A typed conduit between goroutines.", body["response"])
	assert.Equal(t, "learned_pattern", body["source"])
	conversationID := body["conversationId"].(string)

	status, body = s.do(t, http.MethodGet, "/api/conversations/"+conversationID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["conversation"].(map[string]any)["messages"], 2)

	other := s.register(t, "eve@example.com")
	status, _ = s.do(t, http.MethodGet, "/api/conversations/"+conversationID, other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodGet, "/api/learning/patterns?min_confidence=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid min_confidence", body["error"])
}

func TestDatasetValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "cat@example.com")

	status, body := s.do(t, http.MethodPost, "/api/data/training", token, map[string]string{"input": "hi", "output": "hello"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Input and output must be at least 3 characters", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/data/training", token, map[string]any{
		"examples": []map[string]any{
			{"input": "how do I write tests", "output": "Use the testing package."},
			{"input": "what is go", "output": "A language.", "qualityScore": 4},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, http.MethodGet, "/api/data/training?limit=1", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 2, body["pagination"].(map[string]any)["total"])

	status, body = s.do(t, http.MethodGet, "/api/data/training?stats=true", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "stats")
}

func TestTrainingLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "dan@example.com")

	status, body := s.do(t, http.MethodPost, "/api/ai/train", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, 0, body["currentCount"])
	assert.EqualValues(t, 5, body["required"])

	examples := make([]map[string]any, 0, 5)
	for _, in := range []string{"explain goroutines", "explain channels", "explain select", "explain mutexes", "explain context"} {
		examples = append(examples, map[string]any{"input": in, "output": "Here is how " + in[8:] + " works.", "qualityScore": 4})
	}
	status, _ = s.do(t, http.MethodPost, "/api/data/training", token, map[string]any{"examples": examples})
	require.Equal(t, http.StatusCreated, status)

	status, body = s.do(t, http.MethodPost, "/api/ai/train", token, map[string]any{"epochs": 2, "specialization": "programming"})
	require.Equal(t, http.StatusCreated, status, body)
	jobID := body["jobId"].(string)

	require.Eventually(t, func() bool {
		_, body := s.do(t, http.MethodGet, "/api/ai/train?jobId="+jobID, token, nil)
		job, ok := body["job"].(map[string]any)
		return ok && job["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	status, body = s.do(t, http.MethodGet, "/api/models", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["models"], 1)
	model := body["models"].([]any)[0].(map[string]any)
	assert.Equal(t, model["id"], body["activeModelId"])

	status, body = s.do(t, http.MethodPost, "/api/models/"+model["id"].(string)+"/archive", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	status, body = s.do(t, http.MethodPost, "/api/models/"+model["id"].(string)+"/activate", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Archived models cannot be activated", body["error"])
}

func TestMemoriesAndAnalytics(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "fay@example.com")

	for _, content := range []string{"prefers tabs over spaces", "works on a postgres migration"} {
		status, body := s.do(t, http.MethodPost, "/api/brain/memories", token, map[string]any{"content": content})
		require.Equal(t, http.StatusCreated, status, body)
	}

	status, body := s.do(t, http.MethodGet, "/api/brain/memories?q=postgres", token, nil)
	require.Equal(t, http.StatusOK, status)
	memories := body["memories"].([]any)
	require.NotEmpty(t, memories)
	assert.Equal(t, "works on a postgres migration", memories[0].(map[string]any)["content"])

	status, body = s.do(t, http.MethodGet, "/api/learning/analytics", token, nil)
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodGet, "/api/learning/health", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestCollectionRouteAliases(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "gus@example.com")

	status, body := s.do(t, http.MethodPost, "/api/ai/train?type=advanced", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, 10, body["required"])

	status, body = s.do(t, http.MethodPost, "/api/learning/patterns", token,
		map[string]any{"inputPattern": "how are you", "responsePattern": "Doing well, thanks."})
	require.Equal(t, http.StatusCreated, status)
	id := body["pattern"].(map[string]any)["id"].(string)

	status, _ = s.do(t, http.MethodDelete, "/api/learning/patterns?id="+id, token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodDelete, "/api/learning/patterns/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
