package datastore

import "time"

// MigrationStatus is the lifecycle state of a migration run.
type MigrationStatus string

const (
	StatusIdle      MigrationStatus = "idle"
	StatusRunning   MigrationStatus = "running"
	StatusCompleted MigrationStatus = "completed"
	StatusFailed    MigrationStatus = "failed"
)

// MigrationState is the checkpoint of the flag migration.
// This is a singleton table (only one row with ID=1).
type MigrationState struct {
	ID          uint            `gorm:"primaryKey;check:id = 1" json:"-" yaml:"-"`
	Status      MigrationStatus `gorm:"type:varchar(20);not null;default:'idle'" json:"status" yaml:"status"`
	RunID       string          `gorm:"type:varchar(36)" json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	// LastKey is the last pid of the last fully processed page.
	LastKey        string    `gorm:"type:varchar(64)" json:"last_key,omitempty" yaml:"last_key,omitempty"`
	ProcessedItems int64     `gorm:"default:0" json:"processed_items" yaml:"processed_items"`
	TotalItems     int64     `gorm:"default:0" json:"total_items" yaml:"total_items"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty" yaml:"error_message,omitempty"`
	FailedItem     string    `gorm:"type:varchar(64)" json:"failed_item,omitempty" yaml:"failed_item,omitempty"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at" yaml:"updated_at"`
}

// TableName returns the table name for GORM.
func (MigrationState) TableName() string {
	return "migration_state"
}

// Progress returns the migration progress as a percentage (0-100).
func (m *MigrationState) Progress() float64 {
	if m.TotalItems == 0 {
		return 0
	}
	return float64(m.ProcessedItems) / float64(m.TotalItems) * 100
}

// IsActive returns true while a run holds the checkpoint.
func (m *MigrationState) IsActive() bool {
	return m.Status == StatusRunning
}

// CanResume returns true when a previous run left a resume point.
func (m *MigrationState) CanResume() bool {
	return (m.Status == StatusFailed || m.Status == StatusRunning) && m.LastKey != ""
}
