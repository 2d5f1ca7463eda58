package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestGologLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	gl := golog.New()
	gl.SetOutput(&buf)
	gl.SetLevel("debug")

	logger := NewGologLogger(gl)
	logger.SetLevel(LevelDebug)

	logger.Debug("debug %s", "message")
	logger.Info("info %s", "message")
	logger.Warn("warn %s", "message")
	logger.Error("error %s", "message")

	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	gl := golog.New()
	gl.SetOutput(&buf)

	logger := NewGologLogger(gl)
	logger.SetLevel(LevelError)
	assert.Equal(t, LevelError, logger.GetLevel())

	logger.Debug("should not appear")
	logger.Info("should not appear")
	logger.Warn("should not appear")
	logger.Error("only this")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "only this")
}

func TestDefaultLogger_CustomOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LevelInfo)

	logger.Debug("dropped")
	logger.Info("kept %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 1")
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "NONE", LevelNone.String())
}
