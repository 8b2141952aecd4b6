package model

import "encoding/json"

// Question is a single flattened test item. The ID is synthesized from the
// owning section's ID and the question number, so it is unique across the exam.
type Question struct {
	ID        string          `json:"id"`
	Part      int             `json:"part"`
	Number    int             `json:"number"`
	Text      string          `json:"text,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
	Audio     string          `json:"audio,omitempty"`
	Images    []string        `json:"images,omitempty"`
	Paragraph string          `json:"paragraph,omitempty"`
	// GroupID is the owning section's ID. GroupIndex is the question's
	// position within its group.
	GroupID    string `json:"group_id"`
	GroupIndex int    `json:"group_index"`
}

// Group is an ordered, non-overlapping partition of questions sharing one
// passage/media context. Parts 1-2 get one group per question; parts 3-7 get
// one group per section.
type Group struct {
	ID          string   `json:"id"`
	Part        int      `json:"part"`
	QuestionIDs []string `json:"question_ids"`
}
