package migration

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/json"
)

// HistoryType tags a legacy flag history entry.
type HistoryType string

// Accepted legacy history entry types. Anything else fails the parse.
const (
	HistoryNotes    HistoryType = "notes"
	HistoryState    HistoryType = "state"
	HistoryAssignee HistoryType = "assignee"
)

// HistoryEntry is one entry of the legacy flag:history array.
type HistoryEntry struct {
	Type      HistoryType
	UID       string
	Value     string
	Timestamp int64
}

type rawHistoryEntry struct {
	Type      HistoryType  `json:"type"`
	UID       legacyString `json:"uid"`
	Value     legacyString `json:"value"`
	Timestamp int64        `json:"timestamp"`
}

// legacyString accepts a JSON string or number; legacy uids were stored both ways.
type legacyString string

func (s *legacyString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = legacyString(v)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*s = legacyString(data)
	}
	return nil
}

// ParseHistory decodes the legacy history blob. Every entry must carry an
// accepted type, and notes entries must name an author and a timestamp.
func ParseHistory(raw string) ([]HistoryEntry, error) {
	if raw == "" {
		return nil, nil
	}

	var entries []rawHistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("history is not a JSON array of entries: %w", err)
	}

	out := make([]HistoryEntry, 0, len(entries))
	for i, e := range entries {
		switch e.Type {
		case HistoryNotes:
			if e.UID == "" || e.Timestamp <= 0 {
				return nil, fmt.Errorf("history entry %d: notes entry needs uid and timestamp", i)
			}
		case HistoryState, HistoryAssignee:
		default:
			return nil, fmt.Errorf("history entry %d: unknown type %q", i, e.Type)
		}
		out = append(out, HistoryEntry{
			Type:      e.Type,
			UID:       string(e.UID),
			Value:     string(e.Value),
			Timestamp: e.Timestamp,
		})
	}
	return out, nil
}

// errNoNotesEntry is returned when the history has no notes entry.
var errNoNotesEntry = errors.NewStd("history has no notes entry")

// FirstNotesEntry returns the first notes entry of the legacy history.
func FirstNotesEntry(raw string) (HistoryEntry, error) {
	entries, err := ParseHistory(raw)
	if err != nil {
		return HistoryEntry{}, err
	}
	for _, e := range entries {
		if e.Type == HistoryNotes {
			return e, nil
		}
	}
	return HistoryEntry{}, errNoNotesEntry
}
