package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// 初始化时注册 Kafka 输出端
func init() {
	Register("kafka", NewKafkaSink)
}

// KafkaSinkConfig 包含 Kafka Sink 特定的配置
type KafkaSinkConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	// 可根据需要添加其他 Kafka 生产者设置
	// 例如 Async, WriteTimeoutSec, RequiredAcks 等
	Async           bool `mapstructure:"async"`
	WriteTimeoutSec int  `mapstructure:"writeTimeoutSec"`
	ReadTimeoutSec  int  `mapstructure:"readTimeoutSec"`
	RequiredAcks    int  `mapstructure:"requiredAcks"` // 使用 int 类型以提高兼容性
}

// KafkaSink 实现了 Template 接口，用于将批次发送到 Kafka
type KafkaSink struct {
	writer *kafka.Writer
	config KafkaSinkConfig // 存储配置以便潜在的复用（例如，GetType）
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewKafkaSink 是创建 KafkaSink 的工厂函数
func NewKafkaSink(ctx context.Context) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)
	var cfg KafkaSinkConfig
	found := false

	// 查找 kafka 输出端配置
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "kafka" {
			// 使用 mapstructure 进行稳健的解码
			decoderConfig := &mapstructure.DecoderConfig{
				Metadata: nil,
				Result:   &cfg,
				TagName:  "mapstructure",
			}
			decoder, err := mapstructure.NewDecoder(decoderConfig)
			if err != nil {
				log.Error("Failed to create mapstructure decoder for Kafka config", zap.Error(err))
				return nil, fmt.Errorf("failed to create Kafka config decoder: %w", err)
			}

			if err := decoder.Decode(sinkConfig.Para); err != nil {
				log.Error("Error decoding Kafka config", zap.Error(err), zap.Any("config", sinkConfig.Para))
				return nil, fmt.Errorf("error decoding Kafka config: %w", err)
			}
			found = true
			break // 假设只有一个 kafka 配置块
		}
	}

	if !found {
		log.Warn("No enabled Kafka sink configuration found")
		return nil, fmt.Errorf("no enabled Kafka sink configuration found")
	}

	// 验证必填字段
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka config validation failed: 'brokers' is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka config validation failed: 'topic' is required")
	}

	// 未提供时设置默认值
	if cfg.WriteTimeoutSec == 0 {
		cfg.WriteTimeoutSec = 10
	}
	if cfg.ReadTimeoutSec == 0 {
		cfg.ReadTimeoutSec = 10
	}
	// 如果未指定或值无效，默认为 RequireOne
	acks := kafka.RequireOne
	if cfg.RequiredAcks == -1 { // 所有 ISR
		acks = kafka.RequireAll
	} else if cfg.RequiredAcks == 0 { // 不需要确认
		acks = kafka.RequireNone
	}

	// 配置 Kafka writer
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{}, // 或者 kafka.RoundRobin, kafka.Hash 等
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		RequiredAcks: kafka.RequiredAcks(acks),
		Async:        cfg.Async, // 使用配置的值
	}

	// 使用特定于此输出端的可取消上下文
	sinkCtx, cancel := context.WithCancel(ctx)

	ks := &KafkaSink{
		writer: writer,
		config: cfg, // 存储解码后的配置
		logger: log.With(zap.String("sink_type", "kafka"), zap.String("topic", cfg.Topic)),
		ctx:    sinkCtx,
		cancel: cancel,
	}

	ks.logger.Info("Kafka sink initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.Bool("async", cfg.Async),
		zap.Int("acks", int(acks)),
	)

	return ks, nil
}

// GetType 返回输出端的类型
func (ks *KafkaSink) GetType() string {
	return "kafka"
}

// Start 开始监听通道并将批次发送到 Kafka
func (ks *KafkaSink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例
	ks.logger.Info("===KafkaSink Started===")

	defer func() {
		err := ks.writer.Close()
		if err != nil {
			ks.logger.Error("Failed to close Kafka writer cleanly", zap.Error(err))
		}
		ks.logger.Info("Kafka writer closed")
	}()

OuterLoop:
	for {
		select {
		case <-ks.ctx.Done():
			ks.logger.Info("===KafkaSink Stopping===")
			break OuterLoop
		case batch, ok := <-in:
			if !ok {
				ks.logger.Info("Input channel closed, stopping KafkaSink")
				break OuterLoop
			}

			if batch == nil || (len(batch.Entries) == 0 && batch.Fault == nil) {
				ks.logger.Debug("Skipping nil or empty batch")
				continue
			}

			// 记录接收到的批次计数
			metrics.IncMsgReceived("kafka_sink")

			// 为整个发送操作创建计时器
			sendTimer := metrics.NewTimer("kafka_sink_send")

			// 整个批次作为一条消息，下游按 frame 维度消费
			jsonData, err := json.Marshal(batch)
			if err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("kafka_sink_json_marshal")
				ks.logger.Error("Failed to marshal batch to JSON", zap.Error(err), zap.String("frameId", batch.FrameId))
				sendTimer.Stop()
				continue
			}

			msg := kafka.Message{
				Key:   []byte(batch.FrameId), // 同一帧的重发落在同一分区
				Value: jsonData,
				Time:  batch.Ts,
			}

			// 发送批次
			err = ks.writer.WriteMessages(ks.ctx, msg)

			sendDuration := sendTimer.StopAndLog(ks.logger) // 停止计时器并记录持续时间

			if err != nil {
				if ks.ctx.Err() != nil {
					// 上下文取消，可能是在关闭过程中，记录为警告或信息
					ks.logger.Warn("Kafka write context canceled, likely during shutdown", zap.Error(ks.ctx.Err()), zap.String("frameId", batch.FrameId))
					// 对于正常关闭不增加错误计数
					continue // 如果上下文已取消，则跳过增加错误计数
				}
				metrics.IncErrorCount()
				metrics.IncMsgErrors("kafka_sink_write_messages")
				ks.logger.Error("Failed to write batch to Kafka", zap.Error(err), zap.Int("entries", len(batch.Entries)), zap.Duration("duration", sendDuration), zap.String("frameId", batch.FrameId))
			} else {
				// 记录成功处理的批次计数
				metrics.IncMsgProcessed("kafka_sink")
				ks.logger.Debug("Batch sent to Kafka successfully", zap.Int("entries", len(batch.Entries)), zap.Duration("duration", sendDuration), zap.String("frameId", batch.FrameId))
			}
		}
	}
	ks.logger.Info("===KafkaSink Finished===")
}

// Stop 优雅地停止 KafkaSink（通过上下文取消调用）
// 实际清理在 Start 中的 defer 函数中完成
func (ks *KafkaSink) Stop() {
	ks.logger.Info("Requesting stop for KafkaSink via context cancel")
	ks.cancel()
}
