// Package flatten expands normalized Sections into the flat, globally ordered
// question list the session works with, plus the group partition used for
// passage-context rendering and navigation.
package flatten

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openprep/exam-gateway/internal/model"
	"github.com/rs/zerolog"
)

// ErrNoQuestionsFound means the sections flattened to zero questions.
var ErrNoQuestionsFound = errors.New("no questions found")

// singleQuestionPartMax is the last part whose questions stand alone: parts 1
// and 2 render one question per group, parts 3-7 group by section.
const singleQuestionPartMax = 2

// Result holds the flattened question list and its group partition. Questions
// are sorted by global number ascending; groups are ordered by first
// appearance in that sorted list.
type Result struct {
	Questions []model.Question `json:"questions"`
	Groups    []model.Group    `json:"groups"`
}

// Flatten expands sections into questions and groups. Question IDs are
// synthesized as "<sectionID>-<number>"; part, media, images and paragraph
// are inherited from the owning section.
//
// Duplicate global numbers are a data-integrity violation on the backend
// side: they are logged and kept, never fatal.
func Flatten(sections []model.Section, log zerolog.Logger) (*Result, error) {
	var questions []model.Question

	for i := range sections {
		sec := &sections[i]
		for _, raw := range sec.Questions {
			questions = append(questions, model.Question{
				ID:        fmt.Sprintf("%s-%d", sec.ID, raw.Number),
				Part:      sec.Part,
				Number:    raw.Number,
				Text:      raw.Text,
				Options:   raw.Options,
				Audio:     sec.Audio,
				Images:    sec.Images,
				Paragraph: sec.Paragraph,
				GroupID:   sec.ID.String(),
			})
		}
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestionsFound
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Number < questions[j].Number
	})

	for i := 1; i < len(questions); i++ {
		if questions[i].Number == questions[i-1].Number {
			log.Warn().
				Int("number", questions[i].Number).
				Str("question_id", questions[i].ID).
				Msg("Duplicate question number in payload")
		}
	}

	groups := buildGroups(questions)

	return &Result{Questions: questions, Groups: groups}, nil
}

// buildGroups partitions the sorted question list. It also assigns each
// question its group-relative index.
func buildGroups(questions []model.Question) []model.Group {
	var groups []model.Group
	byGroupID := make(map[string]int)

	for i := range questions {
		q := &questions[i]

		if q.Part <= singleQuestionPartMax {
			// Single-question group, keyed by the question itself.
			q.GroupIndex = 0
			groups = append(groups, model.Group{
				ID:          q.ID,
				Part:        q.Part,
				QuestionIDs: []string{q.ID},
			})
			continue
		}

		gi, ok := byGroupID[q.GroupID]
		if !ok {
			gi = len(groups)
			byGroupID[q.GroupID] = gi
			groups = append(groups, model.Group{ID: q.GroupID, Part: q.Part})
		}
		q.GroupIndex = len(groups[gi].QuestionIDs)
		groups[gi].QuestionIDs = append(groups[gi].QuestionIDs, q.ID)
	}

	return groups
}
