package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	jobs   interfaces.JobStorage
	logger arbor.ILogger
}

// NewManager opens the registry database and its storages
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		jobs:   NewJobStorage(db, logger),
		logger: logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")
	return manager, nil
}

// JobStorage returns the job registry
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

// LoadJobsFromFiles upserts job files from dirPath into the registry
func (m *Manager) LoadJobsFromFiles(ctx context.Context, dirPath string) error {
	_, err := LoadJobsFromFiles(ctx, m.jobs, dirPath, m.logger)
	return err
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
