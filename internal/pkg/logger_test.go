package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewLogger 测试 NewLogger 是否能够正确创建一个 logger
func TestNewLogger(t *testing.T) {
	// Setup config
	config := &LogConfig{
		LogPath:    filepath.Join(t.TempDir(), "test.log"),
		MaxSize:    1,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   false,
		Level:      "infoo",
	}

	logger := NewLogger(config)

	// Check if logger is not nil
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}

	// 无法解析的级别回退到 Info
	assert.True(t, logger.Core().Enabled(zap.InfoLevel), "info should be enabled")
	assert.False(t, logger.Core().Enabled(zap.DebugLevel), "debug should fall back to disabled")

	// Use a zap observer to test log output
	core, logs := observer.New(zap.DebugLevel)
	logger = zap.New(core)

	logger.Info("Test log")
	// 检查日志是否被记录
	assert.Equal(t, 1, logs.Len(), "Expected 1 log entry")
	// 检查日志消息是否正确
	assert.Equal(t, "Test log", logs.All()[0].Message, "Unexpected log message")
}

// TestNewLoggerAsync 测试标准输出走异步写入器的路径
func TestNewLoggerAsync(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "async.log")
	config := &LogConfig{
		LogPath: logPath,
		MaxSize: 1,
		Level:   "debug",
		Async:   true,
	}

	logger := NewLogger(config)
	assert.NotNil(t, logger, "expected logger to be non-nil")

	logger.Info("async path")

	// 文件落盘是同步的，异步只作用于标准输出
	content, err := os.ReadFile(logPath)
	assert.NoError(t, err, "log file should exist")
	assert.True(t, strings.Contains(string(content), "async path"), "log file should contain the message")

	// 停止异步写入器，重复调用应当无害
	CloseLogger()
	CloseLogger()
}

// TestWithLogger 测试 WithLogger 是否能够正确添加 logger 到 context
func TestWithLogger(t *testing.T) {
	logger := zap.NewNop() // no-op logger

	ctx := WithLogger(context.Background(), logger)
	retrievedLogger := LoggerFromContext(ctx)

	// Logger should not be nil and should be the same as what we put into the context
	assert.NotNil(t, retrievedLogger, "expected logger to be present in context")
	assert.Equal(t, logger, retrievedLogger, "expected logger to be the same")
}

// TestWithLoggerAndModule 验证 WithLoggerAndModule 是否能够正确添加 logger 和模块信息到 context
func TestWithLoggerAndModule(t *testing.T) {
	logger := zap.NewNop() // no-op logger
	ctx := WithLoggerAndModule(context.Background(), logger, "testModule")

	retrievedLogger := LoggerFromContext(ctx)

	// Create an observer to capture logs
	core, logs := observer.New(zap.DebugLevel)
	retrievedLogger = zap.New(core).With(zap.String("module", "testModule"))

	// Log something to see if module info is present
	retrievedLogger.Info("Module log")

	// Verify the logger has the "module" field
	assert.Equal(t, "testModule", logs.All()[0].ContextMap()["module"], "Module field should be present in the log")
}

// TestLoggerFromContext 测试 LoggerFromContext 是否能够正确从 context 中提取 logger
func TestLoggerFromContext_NoLogger(t *testing.T) {
	ctx := context.Background() // No logger added to context

	logger := LoggerFromContext(ctx)

	// Ensure a no-op logger is returned
	assert.NotNil(t, logger, "expected a logger, but got nil")
	assert.Equal(t, zap.NewNop(), logger, "expected no-op logger")
}
