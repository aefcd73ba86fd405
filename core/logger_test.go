package core

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(false)

	require.NotNil(t, logger)
	assert.False(t, logger.debug)
	assert.NotNil(t, logger.out)
}

func TestLogger_DebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(false)
	logger.SetOutput(&buf)

	logger.Debug("should not appear")
	assert.Zero(t, buf.Len())

	logger = NewLogger(true)
	logger.SetOutput(&buf)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "[DEBUG] visible")
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(false)
	logger.SetOutput(&buf)

	logger.Info("info %s", "message")
	logger.Warn("warn %d", 123)
	logger.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "[INFO] info message")
	assert.Contains(t, out, "[WARN] warn 123")
	assert.Contains(t, out, "[ERROR] error message")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestLogger_SetFile(t *testing.T) {
	logger := NewLogger(false)
	tmpFile, err := os.CreateTemp("", "vivisect_test_log_*.log")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	err = logger.SetFile(tmpFile.Name())
	require.NoError(t, err)
	assert.NotNil(t, logger.file)

	logger.Info("test message")

	info, err := os.Stat(tmpFile.Name())
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestLogger_SetFile_InvalidPath(t *testing.T) {
	logger := NewLogger(false)

	err := logger.SetFile("/proc/invalid/path/log.log")

	assert.Error(t, err)
}

func TestLogger_Close(t *testing.T) {
	logger := NewLogger(false)

	err := logger.Close()
	assert.NoError(t, err)

	tmpFile, err := os.CreateTemp("", "vivisect_test_log_*.log")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	err = logger.SetFile(tmpFile.Name())
	require.NoError(t, err)

	err = logger.Close()
	assert.NoError(t, err)
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(true)
	logger.SetOutput(&buf)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 10; j++ {
				logger.Info("concurrent test %d-%d", id, j)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 100, strings.Count(buf.String(), "\n"))
}
