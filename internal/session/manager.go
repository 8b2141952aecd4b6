package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/flatten"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/rs/zerolog"
)

// Manager is the in-memory registry of live sessions, keyed by user and exam.
type Manager struct {
	cfg    *config.Config
	client *upstream.Client
	log    zerolog.Logger

	// onExpire is invoked once per session when its countdown hits zero.
	// The default only logs; auto-submission is a deliberate non-default.
	onExpire func(*Session)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(cfg *config.Config, client *upstream.Client, log zerolog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		client:   client,
		log:      log.With().Str("component", "session_manager").Logger(),
		sessions: make(map[string]*Session),
	}
	m.onExpire = func(s *Session) {
		m.log.Info().
			Str("exam_id", s.ExamID).
			Str("user_id", s.UserID).
			Msg("Session time expired")
	}
	return m
}

// SetOnExpire replaces the timer-zero hook for all sessions created after
// the call.
func (m *Manager) SetOnExpire(fn func(*Session)) {
	m.onExpire = fn
}

func sessionKey(userID, examID string) string {
	return userID + "|" + examID
}

// Start loads an exam and creates a session for the user. If the user already
// has a live session for this exam (page reload), it is returned as-is with
// resumed=true — answers, flags and the running clock are preserved.
//
// Load failures (upstream, shape, empty exam) leave no session behind; the
// caller surfaces the error and the user retries by reloading.
func (m *Manager) Start(ctx context.Context, userID, examID string, ts upstream.TokenSource) (s *Session, resumed bool, err error) {
	key := sessionKey(userID, examID)

	m.mu.RLock()
	existing, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return existing, true, nil
	}

	sections, err := m.client.GetQuestions(ctx, examID, ts)
	if err != nil {
		return nil, false, fmt.Errorf("load exam %s: %w", examID, err)
	}

	result, err := flatten.Flatten(sections, m.log)
	if err != nil {
		return nil, false, fmt.Errorf("load exam %s: %w", examID, err)
	}

	s = m.newSession(userID, examID, result)

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		// Lost a concurrent start race; keep the first session.
		m.mu.Unlock()
		s.close()
		return existing, true, nil
	}
	m.sessions[key] = s
	m.mu.Unlock()

	go s.runTimer()

	m.log.Info().
		Str("exam_id", examID).
		Str("user_id", userID).
		Int("questions", len(result.Questions)).
		Int("groups", len(result.Groups)).
		Msg("Session started")

	return s, false, nil
}

func (m *Manager) newSession(userID, examID string, result *flatten.Result) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	byID := make(map[string]int, len(result.Questions))
	for i, q := range result.Questions {
		byID[q.ID] = i
	}

	return &Session{
		ID:        uuid.New().String(),
		ExamID:    examID,
		UserID:    userID,
		status:    StatusReady,
		questions: result.Questions,
		groups:    result.Groups,
		byID:      byID,
		answers:   make(map[string]string),
		flags:     make(map[string]bool),
		remaining: int(m.cfg.ExamDuration / time.Second),
		onExpire:  m.onExpire,
		subs:      make(map[chan Event]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Get returns the user's live session for an exam.
func (m *Manager) Get(userID, examID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionKey(userID, examID)]
	return s, ok
}

// Abandon discards a session: its timer stops, in-flight pipeline results are
// dropped on arrival, and its state is gone. Returns false if no session.
func (m *Manager) Abandon(userID, examID string) bool {
	key := sessionKey(userID, examID)

	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.close()
	m.log.Info().
		Str("exam_id", examID).
		Str("user_id", userID).
		Msg("Session abandoned")
	return true
}

// Remove drops a terminated session from the registry, keeping its object
// alive for callers that still hold it.
func (m *Manager) Remove(userID, examID string) {
	m.mu.Lock()
	delete(m.sessions, sessionKey(userID, examID))
	m.mu.Unlock()
}

// Shutdown closes every live session. Called on graceful shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		s.close()
		delete(m.sessions, key)
	}
}

// Count reports the number of live sessions (health/metrics).
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
