package datastore

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/flagmigrate/internal/errors"
)

// ErrMigrationRunning is returned by Start when another run holds the checkpoint.
var ErrMigrationRunning = errors.NewStd("migration already running")

// ErrCheckpointLost is returned when a run writes to a checkpoint another run now holds.
var ErrCheckpointLost = errors.NewStd("checkpoint held by another run")

// StateManager persists the migration checkpoint.
// Transitions use conditional updates so concurrent processes cannot both start a run.
type StateManager struct {
	db *gorm.DB
	mu sync.RWMutex
}

// NewStateManager creates a checkpoint manager on an initialized database.
func NewStateManager(db *gorm.DB) *StateManager {
	return &StateManager{db: db}
}

// GetState returns the current checkpoint.
func (m *StateManager) GetState() (*MigrationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load()
}

func (m *StateManager) load() (*MigrationState, error) {
	var state MigrationState
	if err := m.db.First(&state, 1).Error; err != nil {
		return nil, dbError(fmt.Errorf("failed to get migration state: %w", err), "get_state")
	}
	return &state, nil
}

// Start marks a run as started and returns the checkpoint it begins from.
//
// A fresh start is allowed from any state but running and clears the resume
// point. With resume set, a failed or stale running checkpoint keeps its
// last key and processed count; otherwise resume behaves like a fresh start.
func (m *StateManager) Start(runID string, totalItems int64, resume bool) (*MigrationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{
		"status":        StatusRunning,
		"run_id":        runID,
		"started_at":    &now,
		"completed_at":  nil,
		"total_items":   totalItems,
		"error_message": "",
		"failed_item":   "",
	}

	query := m.db.Model(&MigrationState{}).Where("id = 1")
	if resume && current.CanResume() {
		query = query.Where("status IN ?", []MigrationStatus{StatusFailed, StatusRunning})
	} else {
		if current.Status == StatusRunning {
			return nil, fmt.Errorf("%w: run %s started at %v", ErrMigrationRunning, current.RunID, current.StartedAt)
		}
		updates["last_key"] = ""
		updates["processed_items"] = 0
		query = query.Where("status <> ?", StatusRunning)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return nil, dbError(fmt.Errorf("failed to start migration: %w", result.Error), "start")
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: checkpoint changed concurrently", ErrMigrationRunning)
	}

	return m.load()
}

// Checkpoint records a completed page: the last key and the processed count so far.
func (m *StateManager) Checkpoint(runID, lastKey string, processedItems int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.db.Model(&MigrationState{}).
		Where("id = 1 AND status = ? AND run_id = ?", StatusRunning, runID).
		Updates(map[string]any{
			"last_key":        lastKey,
			"processed_items": processedItems,
		})
	if result.Error != nil {
		return dbError(fmt.Errorf("failed to write checkpoint: %w", result.Error), "checkpoint")
	}
	if result.RowsAffected == 0 {
		return m.unexpectedState("checkpoint", runID)
	}
	return nil
}

// Complete marks the run as completed.
func (m *StateManager) Complete(runID string, processedItems int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	result := m.db.Model(&MigrationState{}).
		Where("id = 1 AND status = ? AND run_id = ?", StatusRunning, runID).
		Updates(map[string]any{
			"status":          StatusCompleted,
			"completed_at":    &now,
			"processed_items": processedItems,
		})
	if result.Error != nil {
		return dbError(fmt.Errorf("failed to complete migration: %w", result.Error), "complete")
	}
	if result.RowsAffected == 0 {
		return m.unexpectedState("complete", runID)
	}
	return nil
}

// Fail marks the run as failed, keeping the last checkpoint for resume.
func (m *StateManager) Fail(runID, message, failedItem string, processedItems int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	result := m.db.Model(&MigrationState{}).
		Where("id = 1 AND status = ? AND run_id = ?", StatusRunning, runID).
		Updates(map[string]any{
			"status":          StatusFailed,
			"completed_at":    &now,
			"error_message":   message,
			"failed_item":     failedItem,
			"processed_items": processedItems,
		})
	if result.Error != nil {
		return dbError(fmt.Errorf("failed to record migration failure: %w", result.Error), "fail")
	}
	if result.RowsAffected == 0 {
		return m.unexpectedState("fail", runID)
	}
	return nil
}

// Reset returns the checkpoint to idle and clears all progress.
func (m *StateManager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.db.Model(&MigrationState{}).Where("id = 1").
		Updates(map[string]any{
			"status":          StatusIdle,
			"run_id":          "",
			"started_at":      nil,
			"completed_at":    nil,
			"last_key":        "",
			"processed_items": 0,
			"total_items":     0,
			"error_message":   "",
			"failed_item":     "",
		}).Error
	if err != nil {
		return dbError(fmt.Errorf("failed to reset migration state: %w", err), "reset")
	}
	return nil
}

func (m *StateManager) unexpectedState(operation, runID string) error {
	current, err := m.load()
	if err != nil {
		return err
	}
	return errors.New(fmt.Errorf("%w: cannot %s run %s: checkpoint is %s for run %s",
		ErrCheckpointLost, operation, runID, current.Status, current.RunID)).
		Component("datastore").
		Category(errors.CategoryState).
		Context("operation", operation).
		Build()
}
