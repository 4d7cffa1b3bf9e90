package criteria

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRubric(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rubric: %v", err)
	}
	return path
}

func TestLoadRubric(t *testing.T) {
	path := writeRubric(t, `criteria:
  - id: 1
    area: Engineering
    subarea: Quality
    description: Ships well-tested changes
    detectable: true
  - id: 2
    area: Collaboration
    subarea: Mentoring
    description: Grows teammates
    detectable: false
`)

	criteria, err := LoadRubric(path)
	if err != nil {
		t.Fatalf("LoadRubric failed: %v", err)
	}
	if len(criteria) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(criteria))
	}
	if criteria[0].ID != 1 || criteria[0].Area != "Engineering" || !criteria[0].Detectable {
		t.Errorf("first criterion mis-parsed: %+v", criteria[0])
	}
	if criteria[1].Detectable {
		t.Error("detectable flag not honored")
	}
}

func TestLoadRubric_RejectsDuplicateIDs(t *testing.T) {
	path := writeRubric(t, `criteria:
  - id: 1
    description: first
  - id: 1
    description: second
`)

	if _, err := LoadRubric(path); err == nil {
		t.Error("expected error for duplicate criterion IDs")
	}
}

func TestLoadRubric_RejectsMissingDescription(t *testing.T) {
	path := writeRubric(t, `criteria:
  - id: 1
    area: Engineering
`)

	if _, err := LoadRubric(path); err == nil {
		t.Error("expected error for criterion without description")
	}
}

func TestLoadRubric_RejectsEmptyFile(t *testing.T) {
	path := writeRubric(t, "criteria: []\n")
	if _, err := LoadRubric(path); err == nil {
		t.Error("expected error for empty rubric")
	}
}

func TestLoadRubric_MissingFile(t *testing.T) {
	if _, err := LoadRubric(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
