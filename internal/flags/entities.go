package flags

import "time"

// Flag is a normalized flag record. A target can carry at most one flag.
type Flag struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"flagId"`
	Type     string `gorm:"type:varchar(16);not null;uniqueIndex:idx_flags_target,priority:1" json:"type"`
	TargetID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_flags_target,priority:2" json:"targetId"`
	Reporter string `gorm:"type:varchar(64);not null;index" json:"uid"`
	Reason   string `gorm:"type:text" json:"description"`
	// Datetime is the report time in milliseconds since epoch.
	Datetime int64  `gorm:"not null;index" json:"datetime"`
	State    State  `gorm:"type:varchar(16);not null;default:'open'" json:"state"`
	Assignee string `gorm:"type:varchar(64)" json:"assignee,omitempty"`

	Notes []Note `gorm:"foreignKey:FlagID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the table name for GORM.
func (Flag) TableName() string {
	return "flags"
}

// Note is one entry of a flag's note thread.
type Note struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"-"`
	FlagID   int64  `gorm:"not null;index" json:"-"`
	UID      string `gorm:"type:varchar(64);not null" json:"uid"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Datetime int64  `gorm:"not null" json:"datetime"`
}

// TableName returns the table name for GORM.
func (Note) TableName() string {
	return "flag_notes"
}

// HistoryEntry records one attribute change on a flag.
type HistoryEntry struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FlagID    int64  `gorm:"not null;index"`
	UID       string `gorm:"type:varchar(64);not null"`
	Attribute string `gorm:"type:varchar(32);not null"`
	Value     string `gorm:"type:text"`
	Datetime  int64  `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (HistoryEntry) TableName() string {
	return "flag_history"
}

// Models lists every entity the flags schema needs migrated.
func Models() []any {
	return []any{&Flag{}, &Note{}, &HistoryEntry{}}
}
