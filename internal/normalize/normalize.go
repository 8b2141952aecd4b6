// Package normalize resolves the content backend's inconsistent response
// envelopes into a canonical ordered Section list. The backend is not
// guaranteed to use the same envelope shape across endpoints or deployments,
// so every consumer goes through this package instead of sniffing shapes at
// call sites.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openprep/exam-gateway/internal/model"
)

// ErrNoRecognizedShape means none of the known envelope shapes matched.
var ErrNoRecognizedShape = errors.New("no recognized payload shape")

// envelopeFields are tried in order when the response is not itself a list.
var envelopeFields = []string{"result", "data", "questions"}

// Sections resolves an arbitrary response body into an ordered Section list.
// It tries, in order: the body itself if it is a list, then a "result",
// "data", or "questions" field holding a non-empty list.
//
// A bare empty list is accepted and yields zero sections — whether that is an
// error is the flattener's call, not a shape problem.
func Sections(raw []byte) ([]model.Section, error) {
	list, ok := resolveList(raw)
	if !ok {
		return nil, ErrNoRecognizedShape
	}
	return decodeSections(list)
}

// AnswerKeySections resolves an answer-key response body. It applies the same
// ordered fallback as Sections plus one extra shape used by the result
// endpoint: a "result" object with a nested "correctAnswers" list.
func AnswerKeySections(raw []byte) ([]model.Section, error) {
	if list, ok := resolveList(raw); ok {
		return decodeSections(list)
	}

	var envelope struct {
		Result struct {
			CorrectAnswers json.RawMessage `json:"correctAnswers"`
		} `json:"result"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &envelope); err == nil && isList(envelope.Result.CorrectAnswers) {
		return decodeSections(envelope.Result.CorrectAnswers)
	}

	return nil, ErrNoRecognizedShape
}

func resolveList(raw []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if isList(trimmed) {
		return trimmed, true
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, false
	}
	for _, field := range envelopeFields {
		v, ok := envelope[field]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if isList(v) && !isEmptyList(v) {
			return v, true
		}
	}
	return nil, false
}

func decodeSections(list json.RawMessage) ([]model.Section, error) {
	var sections []model.Section
	if err := json.Unmarshal(list, &sections); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRecognizedShape, err)
	}
	return sections, nil
}

func isList(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isEmptyList(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) == 0
}
