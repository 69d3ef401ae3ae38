package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// 初始化时注册 jsonl 输出端
func init() {
	Register("jsonl", NewJsonlSink)
}

// JsonlInfo jsonl 的专属配置
type JsonlInfo struct {
	Path string `mapstructure:"path"` // 追加写入的目标文件
}

// entryLine 是落盘的单条记录，一个条目一行
type entryLine struct {
	Frame  string `json:"frame"`
	Source string `json:"source"`
	Remote string `json:"remote,omitempty"`
	Ts     int64  `json:"ts"`
	ID     uint8  `json:"id"`
	Name   string `json:"name,omitempty"`
	Offset int    `json:"offset"`
}

// faultLine 是故障记录的落盘形式，一个批次最多一行
type faultLine struct {
	Frame  string         `json:"frame"`
	Source string         `json:"source"`
	Remote string         `json:"remote,omitempty"`
	Ts     int64          `json:"ts"`
	Fault  *pkg.FaultInfo `json:"fault"`
}

// JsonlSink 将条目逐行追加为 JSON 记录
type JsonlSink struct {
	info   JsonlInfo
	file   *os.File
	ctx    context.Context
	logger *zap.Logger
}

// NewJsonlSink 是创建 JsonlSink 的工厂函数
func NewJsonlSink(ctx context.Context) (Template, error) {
	config := pkg.ConfigFromContext(ctx)

	var info JsonlInfo
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "jsonl" {
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				return nil, fmt.Errorf("failed to decode jsonl config: %w", err)
			}
		}
	}

	// 验证必填字段
	if info.Path == "" {
		return nil, fmt.Errorf("jsonl config validation failed: 'path' is required")
	}

	file, err := os.OpenFile(info.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开jsonl输出文件失败: %w", err)
	}

	return &JsonlSink{
		info:   info,
		file:   file,
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "jsonl"), zap.String("path", info.Path)),
	}, nil
}

// GetType 返回输出端的类型
func (b *JsonlSink) GetType() string {
	return "jsonl"
}

// Start 消费批次通道并逐行落盘
func (b *JsonlSink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics()
	b.logger.Info("===JsonlSink Started===")

OuterLoop:
	for {
		select {
		case <-b.ctx.Done():
			b.logger.Info("===JsonlSink Stopping===")
			break OuterLoop
		case batch, ok := <-in:
			if !ok {
				b.logger.Info("Input channel closed, stopping JsonlSink")
				break OuterLoop
			}
			if batch == nil || (len(batch.Entries) == 0 && batch.Fault == nil) {
				b.logger.Debug("Skipping nil or empty batch")
				continue
			}

			metrics.IncMsgReceived("jsonl")
			writeTimer := metrics.NewTimer("jsonl_write")

			if err := b.Publish(batch); err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("jsonl")
				b.logger.Error("写jsonl记录失败", zap.Error(err), zap.String("frameId", batch.FrameId))
			} else {
				metrics.IncMsgProcessed("jsonl")
			}

			writeTimer.StopAndLog(b.logger)
		}
	}
	b.Stop()
	b.logger.Info("===JsonlSink Finished===")
}

// Publish 把批次展开为 JSON 行写入文件
func (b *JsonlSink) Publish(batch *pkg.EntryBatch) error {
	ts := batch.Ts.UnixNano()
	for _, entry := range batch.Entries {
		if entry == nil {
			continue
		}
		line, err := json.Marshal(entryLine{
			Frame:  batch.FrameId,
			Source: batch.Source,
			Remote: batch.Remote,
			Ts:     ts,
			ID:     entry.ID,
			Name:   entry.Name,
			Offset: entry.Offset,
		})
		if err != nil {
			return fmt.Errorf("marshal entry line: %w", err)
		}
		if _, err := b.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append entry line: %w", err)
		}
	}
	if batch.Fault != nil {
		line, err := json.Marshal(faultLine{
			Frame:  batch.FrameId,
			Source: batch.Source,
			Remote: batch.Remote,
			Ts:     ts,
			Fault:  batch.Fault,
		})
		if err != nil {
			return fmt.Errorf("marshal fault line: %w", err)
		}
		if _, err := b.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append fault line: %w", err)
		}
	}
	b.logger.Debug("JsonlSink published",
		zap.String("frameId", batch.FrameId),
		zap.Int("entries", len(batch.Entries)))
	return nil
}

// Stop 关闭输出文件
func (b *JsonlSink) Stop() {
	if err := b.file.Close(); err != nil {
		b.logger.Error("关闭jsonl输出文件失败", zap.Error(err))
	}
}
