package flags

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Store implements Service on top of a gorm database.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

var _ Service = (*Store)(nil)

// NewStore creates a Store. The schema must already be migrated (see Models).
func NewStore(db *gorm.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.Module("flags"),
	}
}

// Create inserts a flag for the target, or returns ErrAlreadyFlagged.
func (s *Store) Create(ctx context.Context, targetType, targetID, reporter, reason string, datetime int64) (*Flag, error) {
	if err := validateCreate(targetType, targetID, reporter, datetime); err != nil {
		return nil, err
	}

	exists, err := s.targetFlagged(ctx, targetType, targetID)
	if err != nil {
		return nil, dbError(err, "create", targetID)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadyFlagged, targetType, targetID)
	}

	flag := &Flag{
		Type:     targetType,
		TargetID: targetID,
		Reporter: reporter,
		Reason:   reason,
		Datetime: datetime,
		State:    StateOpen,
	}

	if createErr := s.db.WithContext(ctx).Create(flag).Error; createErr != nil {
		// Another writer may have flagged the target between the check and the insert.
		if exists, findErr := s.targetFlagged(ctx, targetType, targetID); findErr == nil && exists {
			return nil, fmt.Errorf("%w: %s %s", ErrAlreadyFlagged, targetType, targetID)
		}
		return nil, dbError(createErr, "create", targetID)
	}

	s.logger.Debug("flag created",
		logger.Int64("flag_id", flag.ID),
		logger.String("target_id", targetID),
		logger.String("reporter", reporter))
	return flag, nil
}

// Update applies the non-empty fields of patch and records one history row per change.
func (s *Store) Update(ctx context.Context, flagID int64, actor string, patch Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireFlag(tx, flagID); err != nil {
			return err
		}

		updates := map[string]any{}
		var history []HistoryEntry
		if patch.State != "" {
			updates["state"] = patch.State
			history = append(history, HistoryEntry{FlagID: flagID, UID: actor, Attribute: "state", Value: string(patch.State), Datetime: patch.Datetime})
		}
		if patch.Assignee != "" {
			updates["assignee"] = patch.Assignee
			history = append(history, HistoryEntry{FlagID: flagID, UID: actor, Attribute: "assignee", Value: patch.Assignee, Datetime: patch.Datetime})
		}

		if err := tx.Model(&Flag{}).Where("id = ?", flagID).Updates(updates).Error; err != nil {
			return dbError(err, "update", strconv.FormatInt(flagID, 10))
		}
		if err := tx.Create(&history).Error; err != nil {
			return dbError(err, "update_history", strconv.FormatInt(flagID, 10))
		}
		return nil
	})
}

// AppendNote adds a note to the flag and records it in the history.
func (s *Store) AppendNote(ctx context.Context, flagID int64, actor, content string, datetime int64) error {
	if content == "" {
		return fmt.Errorf("%w: empty note", ErrValidation)
	}
	if actor == "" {
		return fmt.Errorf("%w: empty note author", ErrValidation)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireFlag(tx, flagID); err != nil {
			return err
		}

		note := Note{FlagID: flagID, UID: actor, Content: content, Datetime: datetime}
		if err := tx.Create(&note).Error; err != nil {
			return dbError(err, "append_note", strconv.FormatInt(flagID, 10))
		}

		entry := HistoryEntry{FlagID: flagID, UID: actor, Attribute: "notes", Datetime: datetime}
		if err := tx.Create(&entry).Error; err != nil {
			return dbError(err, "append_note_history", strconv.FormatInt(flagID, 10))
		}
		return nil
	})
}

// Get returns a flag with its notes ordered by time.
func (s *Store) Get(ctx context.Context, flagID int64) (*Flag, error) {
	var flag Flag
	err := s.db.WithContext(ctx).
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("datetime ASC, id ASC") }).
		First(&flag, flagID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, dbError(err, "get", strconv.FormatInt(flagID, 10))
	}
	return &flag, nil
}

// GetByTarget returns the flag of a target.
func (s *Store) GetByTarget(ctx context.Context, targetType, targetID string) (*Flag, error) {
	var flag Flag
	err := s.db.WithContext(ctx).
		Where("type = ? AND target_id = ?", targetType, targetID).
		First(&flag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_by_target", targetID)
	}
	return s.Get(ctx, flag.ID)
}

// History returns the change history of a flag, oldest first.
func (s *Store) History(ctx context.Context, flagID int64) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.db.WithContext(ctx).
		Where("flag_id = ?", flagID).
		Order("datetime ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, dbError(err, "history", strconv.FormatInt(flagID, 10))
	}
	return entries, nil
}

// Count returns the number of flags.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Flag{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count", "")
	}
	return n, nil
}

func (s *Store) targetFlagged(ctx context.Context, targetType, targetID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Flag{}).
		Where("type = ? AND target_id = ?", targetType, targetID).
		Count(&n).Error
	return n > 0, err
}

func requireFlag(tx *gorm.DB, flagID int64) error {
	var n int64
	if err := tx.Model(&Flag{}).Where("id = ?", flagID).Count(&n).Error; err != nil {
		return dbError(err, "lookup", strconv.FormatInt(flagID, 10))
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrFlagNotFound, flagID)
	}
	return nil
}

func dbError(err error, operation, target string) error {
	return errors.New(fmt.Errorf("flags %s: %w", operation, err)).
		Component("flags").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("target", target).
		Build()
}
