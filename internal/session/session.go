// Package session owns the exam-taking aggregate: the ordered question list,
// answers, review flags, current position, and the countdown timer. All
// mutation goes through the Session's methods under one mutex, so a timer
// tick can never interleave with an answer write or a submit snapshot.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/openprep/exam-gateway/internal/model"
	"github.com/openprep/exam-gateway/internal/upstream"
)

// Status enumerates the session lifecycle. Loading has no stored state: a
// session only exists once its questions resolved, and a failed load surfaces
// as an error to the caller instead.
type Status string

const (
	StatusReady      Status = "READY"
	StatusSubmitting Status = "SUBMITTING"
	StatusSubmitted  Status = "SUBMITTED"
)

// Session operation errors.
var (
	ErrSubmitInFlight   = errors.New("submit already in flight")
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrSessionClosed    = errors.New("session closed")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrNotReady         = errors.New("session is not accepting changes")
)

// Event is pushed to stream subscribers (WebSocket).
type Event struct {
	Type             string `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Event types.
const (
	EventTick      = "tick"
	EventExpired   = "expired"
	EventSubmitted = "submitted"
)

// Snapshot is an immutable copy of the session state, handed to the scoring
// pipeline and to state reads so neither holds the session lock.
type Snapshot struct {
	SessionID        string            `json:"session_id"`
	ExamID           string            `json:"exam_id"`
	UserID           string            `json:"-"`
	Status           Status            `json:"status"`
	Questions        []model.Question  `json:"questions"`
	Groups           []model.Group     `json:"groups"`
	Position         int               `json:"position"`
	Answers          map[string]string `json:"answers"`
	Flags            map[string]bool   `json:"flags"`
	RemainingSeconds int               `json:"remaining_seconds"`
}

// Submitter runs the submission and scoring pipeline for a session snapshot.
type Submitter interface {
	Submit(ctx context.Context, snap Snapshot, ts upstream.TokenSource) (*model.ScoreSummary, error)
}

// Session is the aggregate root of one user's attempt at one exam.
type Session struct {
	ID     string
	ExamID string
	UserID string

	mu        sync.Mutex
	status    Status
	questions []model.Question
	groups    []model.Group
	byID      map[string]int
	position  int
	answers   map[string]string
	flags     map[string]bool
	remaining int
	expired   bool
	// onExpire fires once when the countdown reaches zero. It deliberately
	// does not auto-submit; the hook decides.
	onExpire func(*Session)

	subs map[chan Event]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// SelectAnswer records an option label for a question, overwriting any prior
// answer. Labels are trimmed and upper-cased before storage.
func (s *Session) SelectAnswer(questionID, answer string) error {
	answer = strings.ToUpper(strings.TrimSpace(answer))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return ErrNotReady
	}
	if _, ok := s.byID[questionID]; !ok {
		return ErrUnknownQuestion
	}
	s.answers[questionID] = answer
	return nil
}

// ToggleFlag flips the marked-for-review state of a question. Independent of
// the answer state.
func (s *Session) ToggleFlag(questionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return false, ErrNotReady
	}
	if _, ok := s.byID[questionID]; !ok {
		return false, ErrUnknownQuestion
	}
	if s.flags[questionID] {
		delete(s.flags, questionID)
		return false, nil
	}
	s.flags[questionID] = true
	return true, nil
}

// GoTo moves the current position. Out-of-range indexes are a no-op.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return ErrNotReady
	}
	if index < 0 || index >= len(s.questions) {
		return nil
	}
	s.position = index
	return nil
}

// Submit runs the scoring pipeline exactly once. A second call while one is
// in flight returns ErrSubmitInFlight; the guard lives here, not in the UI.
// On pipeline failure the session returns to READY so the user can retry.
// A result arriving after the session was abandoned is discarded.
func (s *Session) Submit(submitter Submitter, ts upstream.TokenSource) (*model.ScoreSummary, error) {
	s.mu.Lock()
	switch s.status {
	case StatusSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StatusSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.status = StatusSubmitting
	snap := s.snapshotLocked()
	s.mu.Unlock()

	// The session context, not the request context, bounds the pipeline:
	// abandoning the session cancels in-flight upstream calls.
	summary, err := submitter.Submit(s.ctx, snap, ts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.status = StatusReady
		return nil, err
	}
	s.status = StatusSubmitted
	s.broadcastLocked(Event{Type: EventSubmitted, RemainingSeconds: s.remaining})
	return summary, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	flags := make(map[string]bool, len(s.flags))
	for k, v := range s.flags {
		flags[k] = v
	}
	return Snapshot{
		SessionID:        s.ID,
		ExamID:           s.ExamID,
		UserID:           s.UserID,
		Status:           s.status,
		Questions:        s.questions,
		Groups:           s.groups,
		Position:         s.position,
		Answers:          answers,
		Flags:            flags,
		RemainingSeconds: s.remaining,
	}
}

// Subscribe registers an event listener. The returned func unsubscribes.
// Slow listeners drop events rather than block the timer.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Done closes when the session is abandoned or shut down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// runTimer drives the 1 Hz countdown. It runs independently of any network
// operation and exits when the session terminates.
func (s *Session) runTimer() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.tick() {
				return
			}
		}
	}
}

// tick decrements the remaining time, floored at zero. Reaching zero fires
// the onExpire hook once and emits an expired event; it does not transition
// the session by itself.
func (s *Session) tick() (stop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		return true
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 && !s.expired {
		s.expired = true
		if s.onExpire != nil {
			go s.onExpire(s)
		}
		s.broadcastLocked(Event{Type: EventExpired})
	}
	s.broadcastLocked(Event{Type: EventTick, RemainingSeconds: s.remaining})
	return false
}

func (s *Session) close() {
	s.cancel()
}
