// Package scale converts raw correct counts into scaled scores. The real
// conversion tables are exam-content property and vary by test form, so the
// table is opaque to the rest of the system: the only contract is that it is
// deterministic, bounded, and non-decreasing in the correct count.
package scale

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/openprep/exam-gateway/internal/model"
)

// maxCorrect bounds the conversion domain per skill.
const maxCorrect = 100

// Table maps raw correct counts to scaled scores per skill. Anchors need not
// cover every count: lookups fall back to the nearest lower anchor, which
// preserves monotonicity as long as the anchors themselves are monotone.
type Table struct {
	listening anchors
	reading   anchors
}

type anchors []anchor

type anchor struct {
	correct int
	score   int
}

// New builds a Table from per-skill anchor maps.
func New(listening, reading map[int]int) *Table {
	return &Table{
		listening: buildAnchors(listening),
		reading:   buildAnchors(reading),
	}
}

// Default returns the built-in conversion table, an approximation of the
// published 5..495 per-skill scale. Deployments override it via
// SCALE_TABLE_PATH when exact form tables are available.
func Default() *Table {
	return New(defaultListening, defaultReading)
}

// LoadFile reads a JSON table of the form
// {"listening": {"0": 5, ...}, "reading": {"0": 5, ...}}.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scale table: %w", err)
	}

	var file struct {
		Listening map[int]int `json:"listening"`
		Reading   map[int]int `json:"reading"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse scale table: %w", err)
	}
	if len(file.Listening) == 0 || len(file.Reading) == 0 {
		return nil, fmt.Errorf("scale table %s: both skills must have entries", path)
	}

	return New(file.Listening, file.Reading), nil
}

// Convert returns the scaled score for a raw correct count. Counts outside
// [0, 100] are clamped.
func (t *Table) Convert(skill model.Skill, correct int) int {
	if correct < 0 {
		correct = 0
	}
	if correct > maxCorrect {
		correct = maxCorrect
	}

	a := t.reading
	if skill == model.SkillListening {
		a = t.listening
	}
	return a.lookup(correct)
}

// lookup returns the score of the nearest anchor at or below correct.
func (a anchors) lookup(correct int) int {
	score := 0
	for _, entry := range a {
		if entry.correct > correct {
			break
		}
		score = entry.score
	}
	return score
}

func buildAnchors(m map[int]int) anchors {
	a := make(anchors, 0, len(m))
	for correct, score := range m {
		a = append(a, anchor{correct: correct, score: score})
	}
	sort.Slice(a, func(i, j int) bool { return a[i].correct < a[j].correct })
	return a
}

// Built-in anchors at 5-question steps. Values between anchors resolve to the
// lower anchor.
var defaultListening = map[int]int{
	0: 5, 5: 15, 10: 30, 15: 55, 20: 85, 25: 110, 30: 140,
	35: 170, 40: 200, 45: 230, 50: 260, 55: 290, 60: 320,
	65: 350, 70: 380, 75: 410, 80: 435, 85: 460, 90: 480,
	95: 490, 100: 495,
}

var defaultReading = map[int]int{
	0: 5, 5: 10, 10: 25, 15: 45, 20: 70, 25: 95, 30: 120,
	35: 150, 40: 180, 45: 210, 50: 240, 55: 270, 60: 300,
	65: 330, 70: 360, 75: 390, 80: 420, 85: 450, 90: 470,
	95: 485, 100: 495,
}
