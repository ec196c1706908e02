package common

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRegex(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		minGroups int
		wantErr   bool
	}{
		{name: "one group", pattern: `//\s*(\d+)`, minGroups: 1},
		{name: "no group required", pattern: `^discovery$`, minGroups: 0},
		{name: "missing group", pattern: `//\s*\d+`, minGroups: 1, wantErr: true},
		{name: "invalid syntax", pattern: `(\d+`, minGroups: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompileRegex(tt.pattern, tt.minGroups)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, re)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Info("processed", "file_id", "f1")
	assert.Contains(t, buf.String(), `"file_id":"f1"`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestUserError(t *testing.T) {
	inner := errors.New("boom")
	err := NewUserError("could not open database", inner)

	assert.Equal(t, "could not open database: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
