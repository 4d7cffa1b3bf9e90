package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// Manager bundles the badger-backed stores behind one lifecycle
type Manager struct {
	db       *BadgerDB
	jobs     *JobStorage
	evidence *EvidenceStorage
	criteria *CriteriaStorage
	kv       *KVStorage
}

// NewManager opens the database and wires up the individual stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		jobs:     NewJobStorage(db, logger),
		evidence: NewEvidenceStorage(db, logger),
		criteria: NewCriteriaStorage(db, logger),
		kv:       NewKVStorage(db, logger),
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage           { return m.jobs }
func (m *Manager) EvidenceStorage() interfaces.EvidenceStorage { return m.evidence }
func (m *Manager) CriteriaStorage() interfaces.CriteriaStorage { return m.criteria }
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage { return m.kv }

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// Ensure interface compliance
var _ interfaces.StorageManager = (*Manager)(nil)
