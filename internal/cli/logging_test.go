package cli

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level    string
		debugOut bool
		warnOut  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{" warn ", false, true},
		{"error", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.level, &buf)
			require.NoError(t, err)

			logger.Debug("dbg")
			assert.Equal(t, tt.debugOut, bytes.Contains(buf.Bytes(), []byte("msg=dbg")))
			logger.Warn("wrn")
			assert.Equal(t, tt.warnOut, bytes.Contains(buf.Bytes(), []byte("msg=wrn")))
		})
	}

	_, err := newLogger("chatty", io.Discard)
	assert.Error(t, err)
}
