package scale

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openprep/exam-gateway/internal/model"
)

func TestConvertNearestLowerAnchor(t *testing.T) {
	table := New(
		map[int]int{0: 0, 1: 10, 2: 25},
		map[int]int{0: 0, 5: 50},
	)

	tests := []struct {
		skill   model.Skill
		correct int
		want    int
	}{
		{model.SkillListening, 0, 0},
		{model.SkillListening, 1, 10},
		{model.SkillListening, 2, 25},
		{model.SkillListening, 3, 25}, // above last anchor: nearest lower
		{model.SkillReading, 3, 0},    // between anchors: nearest lower
		{model.SkillReading, 5, 50},
		{model.SkillReading, 99, 50},
	}

	for _, tt := range tests {
		if got := table.Convert(tt.skill, tt.correct); got != tt.want {
			t.Errorf("Convert(%s, %d) = %d, want %d", tt.skill, tt.correct, got, tt.want)
		}
	}
}

func TestConvertClampsDomain(t *testing.T) {
	table := Default()

	if got, want := table.Convert(model.SkillListening, -5), table.Convert(model.SkillListening, 0); got != want {
		t.Errorf("negative count = %d, want clamp to %d", got, want)
	}
	if got, want := table.Convert(model.SkillReading, 250), table.Convert(model.SkillReading, 100); got != want {
		t.Errorf("overflow count = %d, want clamp to %d", got, want)
	}
}

func TestDefaultTableIsMonotone(t *testing.T) {
	table := Default()

	for _, skill := range []model.Skill{model.SkillListening, model.SkillReading} {
		prev := -1
		for correct := 0; correct <= 100; correct++ {
			score := table.Convert(skill, correct)
			if score < prev {
				t.Fatalf("%s: score decreased at %d correct (%d < %d)", skill, correct, score, prev)
			}
			prev = score
		}
		if top := table.Convert(skill, 100); top != 495 {
			t.Errorf("%s: perfect score = %d, want 495", skill, top)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	content := `{"listening": {"0": 5, "10": 100}, "reading": {"0": 5, "10": 90}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := table.Convert(model.SkillListening, 12); got != 100 {
		t.Errorf("Convert(listening, 12) = %d, want 100", got)
	}
	if got := table.Convert(model.SkillReading, 9); got != 5 {
		t.Errorf("Convert(reading, 9) = %d, want 5", got)
	}
}

func TestLoadFileRejectsPartialTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	if err := os.WriteFile(path, []byte(`{"listening": {"0": 5}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for table missing a skill")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
