package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// EvidenceStorage implements interfaces.EvidenceStorage on badgerhold
type EvidenceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEvidenceStorage creates a new EvidenceStorage instance
func NewEvidenceStorage(db *BadgerDB, logger arbor.ILogger) *EvidenceStorage {
	return &EvidenceStorage{db: db, logger: logger}
}

func (s *EvidenceStorage) SaveEvidence(ctx context.Context, ev *models.Evidence) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now

	if err := s.db.Store().Upsert(ev.ID, ev); err != nil {
		return fmt.Errorf("failed to save evidence: %w", err)
	}
	return nil
}

func (s *EvidenceStorage) GetEvidence(ctx context.Context, id string) (*models.Evidence, error) {
	var ev models.Evidence
	if err := s.db.Store().Get(id, &ev); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("evidence %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	return &ev, nil
}

// FindByExternalKey is the dedup gate lookup, keyed by natural external
// identity plus the user's role on the item.
func (s *EvidenceStorage) FindByExternalKey(ctx context.Context, source models.EvidenceSource, externalID string, role models.EvidenceRole) (*models.Evidence, error) {
	var records []models.Evidence
	query := badgerhold.Where("Source").Eq(source).And("ExternalID").Eq(externalID).And("Role").Eq(role).Limit(1)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query evidence by external key: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &records[0], nil
}

func (s *EvidenceStorage) ListEvidence(ctx context.Context, source models.EvidenceSource, limit, offset int) ([]*models.Evidence, error) {
	query := badgerhold.Where("ID").Ne("")
	if source != "" {
		query = query.And("Source").Eq(source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}
	query = query.SortBy("OccurredAt").Reverse()

	var records []models.Evidence
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}

	result := make([]*models.Evidence, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *EvidenceStorage) ListEvidenceByPeriod(ctx context.Context, start, end time.Time) ([]*models.Evidence, error) {
	var records []models.Evidence
	query := badgerhold.Where("OccurredAt").Ge(start).And("OccurredAt").Lt(end).SortBy("OccurredAt")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list evidence by period: %w", err)
	}
	result := make([]*models.Evidence, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// CriteriaStorage implements interfaces.CriteriaStorage on badgerhold
type CriteriaStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCriteriaStorage creates a new CriteriaStorage instance
func NewCriteriaStorage(db *BadgerDB, logger arbor.ILogger) *CriteriaStorage {
	return &CriteriaStorage{db: db, logger: logger}
}

func (s *CriteriaStorage) SaveCriterion(ctx context.Context, c *models.Criterion) error {
	if err := s.db.Store().Upsert(c.ID, c); err != nil {
		return fmt.Errorf("failed to save criterion: %w", err)
	}
	return nil
}

func (s *CriteriaStorage) ListCriteria(ctx context.Context) ([]*models.Criterion, error) {
	var criteria []models.Criterion
	if err := s.db.Store().Find(&criteria, badgerhold.Where("ID").Ge(0)); err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].ID < criteria[j].ID })

	result := make([]*models.Criterion, len(criteria))
	for i := range criteria {
		result[i] = &criteria[i]
	}
	return result, nil
}

// ReplaceMatches deletes all existing matches for the evidence record and
// inserts the given set. Delete-then-insert keeps repeated analysis from
// accumulating stale matches.
func (s *CriteriaStorage) ReplaceMatches(ctx context.Context, evidenceID string, matches []*models.CriterionMatch) error {
	if err := s.db.Store().DeleteMatching(&models.CriterionMatch{}, badgerhold.Where("EvidenceID").Eq(evidenceID)); err != nil {
		return fmt.Errorf("failed to delete existing matches: %w", err)
	}

	now := time.Now()
	for _, m := range matches {
		m.EvidenceID = evidenceID
		m.Key = models.MatchKey(evidenceID, m.CriterionID)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if err := s.db.Store().Upsert(m.Key, m); err != nil {
			return fmt.Errorf("failed to insert match %s: %w", m.Key, err)
		}
	}
	return nil
}

func (s *CriteriaStorage) GetMatches(ctx context.Context, evidenceID string) ([]*models.CriterionMatch, error) {
	var matches []models.CriterionMatch
	if err := s.db.Store().Find(&matches, badgerhold.Where("EvidenceID").Eq(evidenceID)); err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CriterionID < matches[j].CriterionID })

	result := make([]*models.CriterionMatch, len(matches))
	for i := range matches {
		result[i] = &matches[i]
	}
	return result, nil
}
