package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/handler"
	"github.com/openprep/exam-gateway/internal/handoff"
	"github.com/openprep/exam-gateway/internal/middleware"
	"github.com/openprep/exam-gateway/internal/response"
	"github.com/openprep/exam-gateway/internal/router"
	"github.com/openprep/exam-gateway/internal/scale"
	"github.com/openprep/exam-gateway/internal/scoring"
	"github.com/openprep/exam-gateway/internal/session"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/openprep/exam-gateway/internal/validator"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

const questionsBody = `{"data": [
	{"id": "s1", "part": 1, "questions": [{"number": 1, "text": "Q1"}, {"number": 2, "text": "Q2"}]},
	{"id": "s5", "part": 5, "paragraph": "passage", "questions": [{"number": 3, "text": "Q3"}]}
]}`

const resultBody = `{"result": {"correctAnswers": [
	{"id": "s1", "part": 1, "questions": [{"number": 1, "answer": "A"}, {"number": 2, "answer": "B"}]},
	{"id": "s5", "part": 5, "questions": [{"number": 3, "answer": "C"}]}
]}}`

// newTestRouter wires the full stack against a stubbed content backend.
func newTestRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()

	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/questions"):
			w.Write([]byte(questionsBody))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/result"):
			w.Write([]byte(resultBody))
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(stub.Close)

	cfg := &config.Config{
		GinMode:          gin.TestMode,
		JWTSecret:        testSecret,
		UpstreamBaseURL:  stub.URL,
		UpstreamTimeout:  2 * time.Second,
		HandoffNamespace: "toeic_result",
		HandoffTTL:       time.Minute,
		ExamDuration:     time.Hour,
	}

	log := zerolog.Nop()
	client := upstream.NewClient(cfg, log)
	store := handoff.NewMemoryStore(cfg.HandoffTTL)
	pipeline := scoring.NewPipeline(client, store, scale.Default(), nil, cfg.HandoffNamespace, log)
	manager := session.NewManager(cfg, client, log)
	t.Cleanup(manager.Shutdown)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, pipeline, store, cfg.HandoffNamespace, log),
		WS:      handler.NewWSHandler(manager, log, nil),
	}
	return router.SetupRouter(handlers, manager, cfg), manager
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope (%d %s): %v", w.Code, w.Body.String(), err)
	}
	return w, envelope
}

func TestSessionRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	w, envelope := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrTokenRequired {
		t.Errorf("error = %+v, want TOKEN_REQUIRED", envelope.Error)
	}
}

func TestSessionRejectsBadToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w, envelope := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", "not-a-jwt", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrTokenInvalid {
		t.Errorf("error = %+v, want TOKEN_INVALID", envelope.Error)
	}
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, "user-1")

	// Start: 201 with the question snapshot.
	w, envelope := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", token, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	var snap session.Snapshot
	raw, _ := json.Marshal(envelope.Data)
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Questions) != 3 || snap.Status != session.StatusReady {
		t.Fatalf("snapshot = %+v", snap)
	}

	// Starting again resumes: 200, same session.
	w, _ = doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}

	// Validation failure on the answer route.
	w, envelope = doRequest(t, r, http.MethodPut, "/api/v1/exams/42/session/answer", token,
		`{"question_id": "s1-1", "answer": "E"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid answer status = %d", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
	}

	// Answer two questions, flag one, move position.
	for _, body := range []string{
		`{"question_id": "s1-1", "answer": "A"}`,
		`{"question_id": "s5-3", "answer": "C"}`,
	} {
		if w, _ = doRequest(t, r, http.MethodPut, "/api/v1/exams/42/session/answer", token, body); w.Code != http.StatusOK {
			t.Fatalf("answer status = %d, body %s", w.Code, w.Body.String())
		}
	}
	if w, _ = doRequest(t, r, http.MethodPut, "/api/v1/exams/42/session/flag", token,
		`{"question_id": "s1-2"}`); w.Code != http.StatusOK {
		t.Fatalf("flag status = %d", w.Code)
	}
	if w, _ = doRequest(t, r, http.MethodPut, "/api/v1/exams/42/session/position", token,
		`{"index": 2}`); w.Code != http.StatusOK {
		t.Fatalf("position status = %d", w.Code)
	}

	// Unknown question on a mutation.
	w, envelope = doRequest(t, r, http.MethodPut, "/api/v1/exams/42/session/answer", token,
		`{"question_id": "nope-9", "answer": "A"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown question status = %d", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrQuestionNotFound {
		t.Errorf("error = %+v, want QUESTION_NOT_FOUND", envelope.Error)
	}

	// Submit: 200 with summary and result key.
	w, envelope = doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session/submit", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("submit data = %T", envelope.Data)
	}
	if data["result_key"] != "toeic_result_42" {
		t.Errorf("result_key = %v", data["result_key"])
	}

	// The session is gone after submission.
	w, envelope = doRequest(t, r, http.MethodGet, "/api/v1/exams/42/session", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("post-submit session status = %d", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrSessionNotFound {
		t.Errorf("error = %+v, want SESSION_NOT_FOUND", envelope.Error)
	}

	// The result is readable from the handoff.
	w, envelope = doRequest(t, r, http.MethodGet, "/api/v1/exams/42/result", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("result status = %d", w.Code)
	}
	if envelope.Data == nil {
		t.Error("result data is empty")
	}
}

func TestResultNotReady(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, "user-1")

	w, envelope := doRequest(t, r, http.MethodGet, "/api/v1/exams/99/result", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrResultNotReady {
		t.Errorf("error = %+v, want RESULT_NOT_READY", envelope.Error)
	}
}

func TestAbandonSession(t *testing.T) {
	r, manager := newTestRouter(t)
	token := signToken(t, "user-1")

	if w, _ := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", token, ""); w.Code != http.StatusCreated {
		t.Fatalf("start status = %d", w.Code)
	}
	if manager.Count() != 1 {
		t.Fatalf("live sessions = %d", manager.Count())
	}

	if w, _ := doRequest(t, r, http.MethodDelete, "/api/v1/exams/42/session", token, ""); w.Code != http.StatusOK {
		t.Fatalf("abandon status = %d", w.Code)
	}
	if manager.Count() != 0 {
		t.Errorf("live sessions after abandon = %d", manager.Count())
	}

	// Abandoning again is a 404.
	if w, _ := doRequest(t, r, http.MethodDelete, "/api/v1/exams/42/session", token, ""); w.Code != http.StatusNotFound {
		t.Errorf("second abandon status = %d", w.Code)
	}
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signToken(t, "alice")
	bob := signToken(t, "bob")

	if w, _ := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", alice, ""); w.Code != http.StatusCreated {
		t.Fatalf("alice start status = %d", w.Code)
	}

	// Bob has no session on this exam.
	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/exams/42/session", bob, ""); w.Code != http.StatusNotFound {
		t.Errorf("bob session status = %d, want 404", w.Code)
	}
}

func TestUpstreamNotFoundOnStart(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer stub.Close()

	cfg := &config.Config{
		GinMode:          gin.TestMode,
		JWTSecret:        testSecret,
		UpstreamBaseURL:  stub.URL,
		UpstreamTimeout:  2 * time.Second,
		HandoffNamespace: "toeic_result",
		HandoffTTL:       time.Minute,
		ExamDuration:     time.Hour,
	}
	log := zerolog.Nop()
	client := upstream.NewClient(cfg, log)
	store := handoff.NewMemoryStore(cfg.HandoffTTL)
	manager := session.NewManager(cfg, client, log)
	defer manager.Shutdown()

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, scoring.NewPipeline(client, store, scale.Default(), nil, cfg.HandoffNamespace, log), store, cfg.HandoffNamespace, log),
		WS:      handler.NewWSHandler(manager, log, nil),
	}
	r := router.SetupRouter(handlers, manager, cfg)

	w, envelope := doRequest(t, r, http.MethodPost, "/api/v1/exams/42/session", signToken(t, "user-1"), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != response.ErrUpstreamNotFound {
		t.Errorf("error = %+v, want UPSTREAM_NOT_FOUND", envelope.Error)
	}
}
