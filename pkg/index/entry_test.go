package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Entry
		wantErr bool
	}{
		{name: "valid", line: "abc a.txt", want: Entry{ID: "abc", Path: "a.txt"}},
		{name: "carriage return", line: "abc a.txt\r", want: Entry{ID: "abc", Path: "a.txt"}},
		{name: "nested path", line: "x docs/report.pdf", want: Entry{ID: "x", Path: "docs/report.pdf"}},
		{name: "empty line", line: "", wantErr: true},
		{name: "single token", line: "abc", wantErr: true},
		{name: "three tokens", line: "abc my file.txt", wantErr: true},
		{name: "double space", line: "abc  a.txt", wantErr: true},
		{name: "leading space", line: " a.txt", wantErr: true},
		{name: "trailing space", line: "abc ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptedIndexEntry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEntry(t *testing.T) {
	assert.Equal(t, "X a.txt\n", FormatEntry(Entry{ID: "X", Path: "a.txt"}))
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, Entry{ID: "X", Path: "a.txt"}.Validate())
	assert.ErrorIs(t, Entry{ID: "", Path: "a.txt"}.Validate(), ErrInvalidEntry)
	assert.ErrorIs(t, Entry{ID: "X", Path: "my file.txt"}.Validate(), ErrInvalidEntry)
	assert.ErrorIs(t, Entry{ID: "X\n", Path: "a.txt"}.Validate(), ErrInvalidEntry)
}

func TestCorruptionError(t *testing.T) {
	err := &CorruptionError{Source: "index.txt", Line: 3, Reason: "bad"}

	assert.True(t, errors.Is(err, ErrCorruptedIndexEntry))
	assert.Contains(t, err.Error(), "index.txt:3")

	noLine := &CorruptionError{Source: "db", Reason: "bad"}
	assert.NotContains(t, noLine.Error(), ":0")
}
