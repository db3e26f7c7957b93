package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHistory(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []HistoryEntry
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "empty array", raw: "[]", want: []HistoryEntry{}},
		{
			name: "all accepted types",
			raw: `[{"type":"state","uid":"1","value":"wip","timestamp":10},` +
				`{"type":"assignee","uid":2,"value":5,"timestamp":20},` +
				`{"type":"notes","uid":"u3","timestamp":30}]`,
			want: []HistoryEntry{
				{Type: HistoryState, UID: "1", Value: "wip", Timestamp: 10},
				{Type: HistoryAssignee, UID: "2", Value: "5", Timestamp: 20},
				{Type: HistoryNotes, UID: "u3", Timestamp: 30},
			},
		},
		{name: "null uid on state entry", raw: `[{"type":"state","uid":null,"value":"open","timestamp":1}]`,
			want: []HistoryEntry{{Type: HistoryState, Value: "open", Timestamp: 1}}},
		{name: "unknown type", raw: `[{"type":"merged","uid":"1","timestamp":1}]`, wantErr: true},
		{name: "missing type", raw: `[{"uid":"1","timestamp":1}]`, wantErr: true},
		{name: "notes without timestamp", raw: `[{"type":"notes","uid":"1"}]`, wantErr: true},
		{name: "uid is an object", raw: `[{"type":"notes","uid":{"id":1},"timestamp":1}]`, wantErr: true},
		{name: "not an array", raw: `"notes"`, wantErr: true},
		{name: "truncated", raw: `[{"type":"notes"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHistory(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstNotesEntry(t *testing.T) {
	entry, err := FirstNotesEntry(`[{"type":"assignee","uid":"1","value":"u2","timestamp":5},{"type":"notes","uid":"u3","timestamp":2000}]`)
	require.NoError(t, err)
	assert.Equal(t, HistoryEntry{Type: HistoryNotes, UID: "u3", Timestamp: 2000}, entry)

	_, err = FirstNotesEntry(`[{"type":"state","uid":"1","value":"open","timestamp":5}]`)
	require.ErrorIs(t, err, errNoNotesEntry)

	_, err = FirstNotesEntry("")
	require.ErrorIs(t, err, errNoNotesEntry)
}
