package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/decode"
	"lwlgate/internal/pkg"
)

// 拓展输出端步骤
func init() {
	// 注册输出端
	Register("console", NewConsoleSink)
}

// ConsoleInfo console 的专属配置
type ConsoleInfo struct {
	Path string `mapstructure:"path"` // 报告输出目标，空、stdout、stderr 或文件路径
}

// ConsoleSink 把每个批次渲染成文本报告写出。
// 报告内容只有固定头和条目行，故障寄存器走结构化日志，不混入报告。
type ConsoleSink struct {
	info   ConsoleInfo
	out    *os.File
	ctx    context.Context
	logger *zap.Logger
}

// NewConsoleSink Step.0 构造函数
func NewConsoleSink(ctx context.Context) (Template, error) {
	config := pkg.ConfigFromContext(ctx)

	var info ConsoleInfo
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "console" {
			// 将 map 转换为结构体
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				return nil, fmt.Errorf("[NewConsoleSink] Error decoding map to struct: %v", err)
			}
		}
	}

	var out *os.File
	switch info.Path {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(info.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开报告输出文件失败: %w", err)
		}
		out = f
	}

	return &ConsoleSink{
		info:   info,
		out:    out,
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx),
	}, nil
}

// GetType Step.1
func (b *ConsoleSink) GetType() string {
	return "console"
}

// Start Step.2
func (b *ConsoleSink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics()
	b.logger.Debug("===ConsoleSink started===")
	for {
		select {
		case <-b.ctx.Done():
			b.Stop()
			b.logger.Debug("===ConsoleSink stopped===")
			return
		case batch, ok := <-in:
			if !ok {
				b.logger.Info("输入通道已关闭, ConsoleSink退出")
				b.Stop()
				return
			}
			if batch == nil {
				continue
			}

			metrics.IncMsgReceived("console")
			renderTimer := metrics.NewTimer("console_render")

			if err := b.Publish(batch); err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("console")
				pkg.ErrChanFromContext(b.ctx) <- fmt.Errorf("ConsoleSink error occurred: %w", err)
			} else {
				metrics.IncMsgProcessed("console")
			}

			renderTimer.StopAndLog(b.logger)
		}
	}
}

// Publish 渲染一个批次的报告。故障寄存器另行记入日志。
func (b *ConsoleSink) Publish(batch *pkg.EntryBatch) error {
	if err := decode.RenderReport(b.out, batch.Entries); err != nil {
		return fmt.Errorf("写报告失败: %w", err)
	}
	if batch.Fault != nil {
		b.logger.Warn("转储携带故障记录",
			zap.String("frameId", batch.FrameId),
			zap.String("source", batch.Source),
			zap.String("remote", batch.Remote),
			zap.Uint32("type", batch.Fault.Type),
			zap.Uint32("param", batch.Fault.Param),
			zap.Uint32("cfsr", batch.Fault.CFSR),
			zap.Uint32("hfsr", batch.Fault.HFSR),
			zap.Uint32("return_addr", batch.Fault.ReturnAddr))
	}
	b.logger.Debug("ConsoleSink published",
		zap.String("frameId", batch.FrameId),
		zap.Int("entries", len(batch.Entries)))
	return nil
}

// Stop 停止 ConsoleSink，文件目标时关闭句柄
func (b *ConsoleSink) Stop() {
	if b.out != os.Stdout && b.out != os.Stderr {
		if err := b.out.Close(); err != nil {
			b.logger.Error("关闭报告输出文件失败", zap.Error(err))
		}
	}
}
