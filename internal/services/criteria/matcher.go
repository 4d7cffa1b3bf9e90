// -----------------------------------------------------------------------
// Matcher - scores evidence against the rubric via the planner
// -----------------------------------------------------------------------

package criteria

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

const matcherSystemPrompt = `You evaluate whether a piece of engineering work demonstrates specific competency criteria.
Respond with a JSON array only, no prose. Each element: {"criterion_id": <int>, "confidence": <0..1>, "explanation": "<one sentence>"}.
Only include criteria the work plausibly demonstrates. An empty array is a valid answer.`

// Matcher asks the planner which rubric criteria a piece of evidence
// demonstrates, then filters by confidence and caps the match count.
// Malformed planner output degrades to zero matches rather than failing the
// job.
type Matcher struct {
	planner       interfaces.Planner
	logger        arbor.ILogger
	minConfidence float64
	maxMatches    int
}

// NewMatcher creates a matcher with the given confidence floor and match cap
func NewMatcher(planner interfaces.Planner, logger arbor.ILogger, minConfidence float64, maxMatches int) *Matcher {
	if maxMatches <= 0 {
		maxMatches = 5
	}
	return &Matcher{
		planner:       planner,
		logger:        logger,
		minConfidence: minConfidence,
		maxMatches:    maxMatches,
	}
}

type rawMatch struct {
	CriterionID int     `json:"criterion_id"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Match returns up to maxMatches criterion matches for the evidence, sorted
// by confidence descending. Criteria flagged non-detectable are excluded from
// the prompt entirely.
func (m *Matcher) Match(ctx context.Context, ev *models.Evidence, criteria []*models.Criterion) ([]*models.CriterionMatch, error) {
	detectable := make([]*models.Criterion, 0, len(criteria))
	for _, c := range criteria {
		if c.Detectable {
			detectable = append(detectable, c)
		}
	}
	if len(detectable) == 0 {
		return nil, nil
	}

	response, err := m.planner.Complete(ctx, matcherSystemPrompt, m.buildPrompt(ev, detectable))
	if err != nil {
		return nil, fmt.Errorf("criteria matching call failed: %w", err)
	}

	raw, ok := m.parse(response)
	if !ok {
		m.logger.Warn().
			Str("evidence_id", ev.ID).
			Msg("Unparseable criteria match response, treating as zero matches")
		return nil, nil
	}

	known := make(map[int]bool, len(detectable))
	for _, c := range detectable {
		known[c.ID] = true
	}

	matches := make([]*models.CriterionMatch, 0, len(raw))
	for _, r := range raw {
		if !known[r.CriterionID] {
			continue
		}
		if r.Confidence < m.minConfidence || r.Confidence > 1 {
			continue
		}
		matches = append(matches, &models.CriterionMatch{
			EvidenceID:  ev.ID,
			CriterionID: r.CriterionID,
			Confidence:  r.Confidence,
			Explanation: r.Explanation,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	if len(matches) > m.maxMatches {
		matches = matches[:m.maxMatches]
	}
	return matches, nil
}

func (m *Matcher) buildPrompt(ev *models.Evidence, criteria []*models.Criterion) string {
	var sb strings.Builder
	sb.WriteString("Work item:\n")
	sb.WriteString("Title: " + ev.Title + "\n")
	if ev.Description != "" {
		sb.WriteString("Description:\n" + ev.Description + "\n")
	}
	if ev.Category != "" {
		sb.WriteString("Category: " + ev.Category + "\n")
	}
	if ev.Scope != "" {
		sb.WriteString("Scope: " + ev.Scope + "\n")
	}

	sb.WriteString("\nCriteria:\n")
	for _, c := range criteria {
		fmt.Fprintf(&sb, "%d. [%s / %s] %s\n", c.ID, c.Area, c.Subarea, c.Description)
	}
	return sb.String()
}

// parse extracts the JSON array from the response, tolerating surrounding
// prose or markdown fences
func (m *Matcher) parse(response string) ([]rawMatch, bool) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var raw []rawMatch
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, false
	}
	return raw, true
}
