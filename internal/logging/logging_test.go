package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	tests := map[string]slog.Level{
		"quiet":      slog.LevelError,
		"m":          slog.LevelWarn,
		"":           slog.LevelInfo,
		"Detailed":   slog.LevelDebug,
		"diagnostic": LevelTrace,
	}
	for in, want := range tests {
		got, err := ParseVerbosity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVerbosity("loud")
	assert.Error(t, err)
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewConsoleHandler(&buf, slog.LevelDebug, false))

	log.Log(t.Context(), LevelTrace, "hidden")
	log.With("stage", "eol").WithGroup("file").Info("formatted", "path", "a b.go", "n", 2)
	log.Warn("skipped", slog.Group("rule", "id", "RF1001"))

	assert.Equal(t,
		"info: formatted stage=eol file.path=\"a b.go\" file.n=2\n"+
			"warn: skipped rule.id=RF1001\n",
		buf.String())
}

func TestConsoleHandler_Colored(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewConsoleHandler(&buf, slog.LevelInfo, true)).Error("boom")
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "boom")
}
