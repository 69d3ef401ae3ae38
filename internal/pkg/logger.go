package pkg

import (
	"os"

	"github.com/shengyanli1982/law"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// stdoutAsyncer 持有异步写入器，便于退出时停止它
var stdoutAsyncer *law.WriteAsyncer

// NewLogger initializes the common logger
func NewLogger(cfg *LogConfig) *zap.Logger {
	lumberJackLogger := &lumberjack.Logger{
		Filename:   cfg.LogPath,    // 日志文件路径
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxBackups: cfg.MaxBackups, // number of backups
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,   // compress old logs
		LocalTime:  true,
	}

	// 创建编码器配置
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "log",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder, // 带颜色
		EncodeTime:     zapcore.ISO8601TimeEncoder,       // ISO8601时间格式
		EncodeDuration: zapcore.SecondsDurationEncoder,   // 时间格式
		EncodeCaller:   zapcore.ShortCallerEncoder,       // 简短的调用者编码器 (文件名和行号)
	}

	// 创建一个控制台编码器，带有自定义的日志格式
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	// 通过level参数创建zapcore
	// 解析日志级别
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zap.InfoLevel // 默认日志级别为 InfoLevel
	}

	// 标准输出可以切换到 law 的异步写入器，高吞吐下不阻塞打点协程
	stdout := zapcore.AddSync(os.Stdout)
	if cfg.Async {
		stdoutAsyncer = law.NewWriteAsyncer(os.Stdout, nil)
		stdout = zapcore.AddSync(stdoutAsyncer)
	}

	// 创建一个核心，它将所有日志写入 combinedSyncer
	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(lumberJackLogger)),
		level,
	)
	// 创建 Logger 并添加调用者信息和堆栈跟踪
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger
}

// CloseLogger 停止异步写入器 (如果启用)，把残留日志刷回标准输出
func CloseLogger() {
	if stdoutAsyncer != nil {
		stdoutAsyncer.Stop()
		stdoutAsyncer = nil
	}
}
