// -----------------------------------------------------------------------
// Rubric loader - reads the static criteria list from YAML
// -----------------------------------------------------------------------

package criteria

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// rubricFile is the on-disk YAML shape
type rubricFile struct {
	Criteria []*models.Criterion `yaml:"criteria"`
}

// LoadRubric reads criteria from a YAML file. IDs must be unique; duplicates
// are a configuration error.
func LoadRubric(path string) ([]*models.Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric %s: %w", path, err)
	}

	var file rubricFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rubric %s: %w", path, err)
	}
	if len(file.Criteria) == 0 {
		return nil, fmt.Errorf("rubric %s contains no criteria", path)
	}

	seen := make(map[int]bool, len(file.Criteria))
	for _, c := range file.Criteria {
		if c.Description == "" {
			return nil, fmt.Errorf("rubric %s: criterion %d has no description", path, c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("rubric %s: duplicate criterion id %d", path, c.ID)
		}
		seen[c.ID] = true
	}

	return file.Criteria, nil
}

// SeedCriteria writes the rubric into the criteria store so matches can join
// against it. Upserts, so re-seeding on startup is harmless.
func SeedCriteria(ctx context.Context, store interfaces.CriteriaStorage, criteria []*models.Criterion) error {
	for _, c := range criteria {
		if err := store.SaveCriterion(ctx, c); err != nil {
			return fmt.Errorf("failed to seed criterion %d: %w", c.ID, err)
		}
	}
	return nil
}
