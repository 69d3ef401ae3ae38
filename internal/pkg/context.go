package pkg

import (
	"context"

	"go.uber.org/zap"
)

// 定义不导出的 key 类型，避免 context key 冲突
type loggerKey struct{}
type configKey struct{}

// WithLogger 将 zap.Logger 存入 context 中
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithLoggerAndModule 将带有模块信息的 zap.Logger 存入 context 中
func WithLoggerAndModule(ctx context.Context, logger *zap.Logger, module string) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger.With(zap.String("module", module)))
}

// LoggerFromContext 从 context 中提取 logger，未设置时返回 Nop logger 以避免判空
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithConfig 将全局配置指针存入 context 中
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext 从 context 中提取配置指针，未设置时返回空配置以避免判空
func ConfigFromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey{}).(*Config); ok {
		return cfg
	}
	return &Config{}
}
