package legacy

import (
	"fmt"
	"strconv"
)

// FlagBundle is the legacy flag state stored on a single post hash.
// Empty strings mean the field is absent.
type FlagBundle struct {
	PID string

	// HasMarker is true when the post hash carries the "flags" field.
	// Posts without it never had a legacy flag.
	HasMarker bool
	FlagCount int

	State    string
	Assignee string
	History  string
	Notes    string
}

// ScoredMember is one sorted set entry with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// decodeBundle maps HMGET values (in bundleFields order) onto a FlagBundle.
// A nil value means the field does not exist on the hash.
func decodeBundle(pid string, values []any) FlagBundle {
	bundle := FlagBundle{PID: pid}
	if len(values) != len(bundleFields) {
		return bundle
	}

	if marker := values[0]; marker != nil {
		bundle.HasMarker = true
		if n, err := strconv.Atoi(stringValue(marker)); err == nil {
			bundle.FlagCount = n
		}
	}
	bundle.State = stringValue(values[1])
	bundle.Assignee = stringValue(values[2])
	bundle.History = stringValue(values[3])
	bundle.Notes = stringValue(values[4])

	return bundle
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
