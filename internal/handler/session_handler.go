package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/flatten"
	"github.com/openprep/exam-gateway/internal/handoff"
	"github.com/openprep/exam-gateway/internal/middleware"
	"github.com/openprep/exam-gateway/internal/model"
	"github.com/openprep/exam-gateway/internal/normalize"
	"github.com/openprep/exam-gateway/internal/response"
	"github.com/openprep/exam-gateway/internal/scoring"
	"github.com/openprep/exam-gateway/internal/session"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/openprep/exam-gateway/internal/validator"
	"github.com/rs/zerolog"
)

// SessionHandler exposes the exam-taking session over HTTP.
type SessionHandler struct {
	manager   *session.Manager
	pipeline  *scoring.Pipeline
	store     handoff.Store
	namespace string
	log       zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(manager *session.Manager, pipeline *scoring.Pipeline, store handoff.Store, namespace string, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager:   manager,
		pipeline:  pipeline,
		store:     store,
		namespace: namespace,
		log:       log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/session
// Loads the exam from upstream and creates (or resumes) the user's session.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID := c.Param("exam_id")

	s, resumed, err := h.manager.Start(c.Request.Context(), claims.UserID, examID, middleware.TokenSource(c))
	if err != nil {
		h.failLoad(c, examID, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, s.Snapshot())
}

// GetSession godoc
// GET /api/v1/exams/:exam_id/session
// Returns the full session snapshot, covering the page-reload case.
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, s.Snapshot())
}

// SelectAnswer godoc
// PUT /api/v1/exams/:exam_id/session/answer
// Records one option choice; overwrites any prior answer for the question.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := s.SelectAnswer(req.QuestionID, req.Answer); err != nil {
		h.failMutation(c, s, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "answer": req.Answer})
}

// ToggleFlag godoc
// PUT /api/v1/exams/:exam_id/session/flag
// Flips the marked-for-review state of a question.
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.ToggleFlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	flagged, err := s.ToggleFlag(req.QuestionID)
	if err != nil {
		h.failMutation(c, s, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "flagged": flagged})
}

// GoTo godoc
// PUT /api/v1/exams/:exam_id/session/position
// Moves the current position. Out-of-range indexes are silently ignored.
func (h *SessionHandler) GoTo(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := s.GoTo(*req.Index); err != nil {
		h.failMutation(c, s, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"position": s.Snapshot().Position})
}

// Submit godoc
// POST /api/v1/exams/:exam_id/session/submit
// Runs the scoring pipeline. Single-flight: a concurrent submit gets 409.
// An answer-key failure leaves the session answerable for a retry.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	s, ok := h.session(c)
	if !ok {
		return
	}

	summary, err := s.Submit(h.pipeline, middleware.TokenSource(c))
	if err != nil {
		h.failSubmit(c, err)
		return
	}

	// The session is destroyed on submission; the result lives in the
	// handoff store for the results view.
	h.manager.Remove(claims.UserID, s.ExamID)

	response.Success(c, http.StatusOK, gin.H{
		"summary":    summary,
		"result_key": config.HandoffKey.ResultKey(h.namespace, s.ExamID),
	})
}

// GetResult godoc
// GET /api/v1/exams/:exam_id/result
// Reads the computed result from the handoff store. 404 means the results
// view should fall back to re-fetching from upstream.
func (h *SessionHandler) GetResult(c *gin.Context) {
	examID := c.Param("exam_id")

	var value model.HandoffValue
	err := h.store.Get(c.Request.Context(), config.HandoffKey.ResultKey(h.namespace, examID), &value)
	if err != nil {
		if errors.Is(err, handoff.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID).Msg("Handoff read failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, value)
}

// AbandonSession godoc
// DELETE /api/v1/exams/:exam_id/session
// Discards the session: timer stops and in-flight results are dropped.
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if !h.manager.Abandon(claims.UserID, c.Param("exam_id")) {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"abandoned": true})
}

// session fetches the caller's live session or writes the error response.
func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	s, ok := h.manager.Get(claims.UserID, c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	return s, true
}

// failLoad maps exam-load errors. Shape and empty-exam errors are terminal
// for the attempt: the user retries by reloading.
func (h *SessionHandler) failLoad(c *gin.Context, examID string, err error) {
	h.log.Error().Err(err).Str("exam_id", examID).Msg("Exam load failed")

	switch {
	case errors.Is(err, normalize.ErrNoRecognizedShape):
		response.Fail(c, http.StatusBadGateway, response.ErrNoRecognizedShape)
	case errors.Is(err, flatten.ErrNoQuestionsFound):
		response.Fail(c, http.StatusBadGateway, response.ErrNoQuestions)
	default:
		h.failUpstream(c, err, response.ErrInternal)
	}
}

func (h *SessionHandler) failMutation(c *gin.Context, s *session.Session, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, session.ErrNotReady):
		if s.Snapshot().Status == session.StatusSubmitted {
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
			return
		}
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func (h *SessionHandler) failSubmit(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSubmitInFlight):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	case errors.Is(err, session.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, session.ErrSessionClosed):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, scoring.ErrAnswerKeyUnavailable):
		h.log.Warn().Err(err).Msg("Submit blocked, answer key unavailable")
		h.failUpstream(c, err, response.ErrAnswerKeyUnavailable)
	default:
		h.log.Error().Err(err).Msg("Submit failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failUpstream translates upstream transport failures into the status-based
// messages the UI shows (re-authenticate vs not-found vs server vs offline).
func (h *SessionHandler) failUpstream(c *gin.Context, err error, fallback response.ErrCode) {
	switch upstream.Classify(err) {
	case upstream.KindUnauthorized:
		response.Fail(c, http.StatusUnauthorized, response.ErrUpstreamUnauthorized)
	case upstream.KindNotFound:
		response.Fail(c, http.StatusNotFound, response.ErrUpstreamNotFound)
	case upstream.KindServer:
		response.Fail(c, http.StatusBadGateway, fallback)
	case upstream.KindUnreachable:
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUpstreamUnreachable)
	default:
		if fallback == response.ErrInternal {
			response.Fail(c, http.StatusInternalServerError, fallback)
			return
		}
		response.Fail(c, http.StatusBadGateway, fallback)
	}
}
