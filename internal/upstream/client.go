// Package upstream is the HTTP client for the content backend: question
// payloads, answer keys, and best-effort result persistence. Authentication
// is a pass-through concern — callers hand the client a TokenSource and the
// gateway never reads ambient auth state.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/model"
	"github.com/openprep/exam-gateway/internal/normalize"
	"github.com/rs/zerolog"
)

// TokenSource supplies the bearer token forwarded to the content backend.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource wrapping a fixed token string.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// Client talks to the upstream content API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client from configuration.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.UpstreamBaseURL, "/"),
		http:    &http.Client{Timeout: cfg.UpstreamTimeout},
		log:     log.With().Str("component", "upstream_client").Logger(),
	}
}

// GetQuestions fetches and normalizes the question sections for an exam.
func (c *Client) GetQuestions(ctx context.Context, examID string, ts TokenSource) ([]model.Section, error) {
	body, err := c.do(ctx, http.MethodGet, "/tests/"+examID+"/questions", ts, nil)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	sections, err := normalize.Sections(body)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return sections, nil
}

// GetAnswerKey fetches and normalizes the answer-key sections for an exam.
func (c *Client) GetAnswerKey(ctx context.Context, examID string, ts TokenSource) ([]model.Section, error) {
	body, err := c.do(ctx, http.MethodGet, "/tests/"+examID+"/result", ts, nil)
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	sections, err := normalize.AnswerKeySections(body)
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	return sections, nil
}

// SubmitResult POSTs the submission payload for durable persistence.
func (c *Client) SubmitResult(ctx context.Context, examID string, ts TokenSource, payload *model.SubmissionPayload) error {
	if _, err := c.do(ctx, http.MethodPost, "/tests/"+examID, ts, payload); err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, ts TokenSource, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if ts != nil {
		token, err := ts.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// No response at all: connectivity problem, not an upstream verdict.
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path}
	}
	return raw, nil
}
