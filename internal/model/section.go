package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexID decodes a JSON string or number into a string. Upstream payloads are
// not consistent about identifier types across endpoints.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Skill distinguishes the two scored sections of the test.
type Skill string

const (
	SkillListening Skill = "listening"
	SkillReading   Skill = "reading"
)

// Section is one passage/question-group unit as returned by the content
// backend, both for question payloads and answer-key payloads.
type Section struct {
	ID        FlexID        `json:"id"`
	Part      int           `json:"part"`
	Questions []RawQuestion `json:"questions"`
	Audio     string        `json:"audio,omitempty"`
	Images    []string      `json:"images,omitempty"`
	Paragraph string        `json:"paragraph,omitempty"`
	// Type is only present on answer-key sections ("listening"/"reading").
	Type string `json:"type,omitempty"`
}

// Skill returns the section's explicit type when present, otherwise infers it
// from the part number: parts 1-4 are listening, parts 5-7 reading.
func (s *Section) Skill() Skill {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case string(SkillListening):
		return SkillListening
	case string(SkillReading):
		return SkillReading
	}
	if s.Part <= 4 {
		return SkillListening
	}
	return SkillReading
}

// RawQuestion is a question as delivered inside a Section. Options are kept
// opaque — the gateway never interprets option content, only answer labels.
type RawQuestion struct {
	Number  int             `json:"number"`
	Text    string          `json:"text,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
	// Answer / CorrectAnswer are only present on answer-key payloads. Which
	// field name the backend uses depends on the endpoint.
	Answer        string `json:"answer,omitempty"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
}

// KeyAnswer returns the answer-key value regardless of which field carried it.
func (q *RawQuestion) KeyAnswer() string {
	if q.Answer != "" {
		return q.Answer
	}
	return q.CorrectAnswer
}
