package sink

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// 拓展输出端步骤
func init() {
	// 注册输出端
	Register("influxdb", NewInfluxDbSink)
}

// InfluxDbInfo InfluxDB的专属配置
type InfluxDbInfo struct {
	URL         string `mapstructure:"url"`
	Org         string `mapstructure:"org"`
	Token       string `mapstructure:"token"`
	Bucket      string `mapstructure:"bucket"`
	BatchSize   uint   `mapstructure:"batch_size"`
	Measurement string `mapstructure:"measurement"`
}

// InfluxDbSink 实现将条目写入 InfluxDB 的逻辑
type InfluxDbSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	info     InfluxDbInfo
	ctx      context.Context
	logger   *zap.Logger
}

// NewInfluxDbSink Step.0 构造函数
func NewInfluxDbSink(ctx context.Context) (Template, error) {
	config := pkg.ConfigFromContext(ctx)

	var info InfluxDbInfo
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "influxdb" {
			// 将 map 转换为结构体
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				return nil, fmt.Errorf("[NewInfluxDbSink] Error decoding map to struct: %v", err)
			}
		}
	}
	// 检查 BatchSize 是否为零或未设置，如果是，使用默认值 否则会出现 /0 的panic
	if info.BatchSize == 0 {
		info.BatchSize = 100 // 使用默认的批处理大小
	}
	if info.Measurement == "" {
		info.Measurement = "lwl_entry"
	}
	pkg.LoggerFromContext(ctx).Debug("InfluxDB配置", zap.Any("info", info))
	client := influxdb2.NewClientWithOptions(info.URL, info.Token, influxdb2.DefaultOptions().SetBatchSize(info.BatchSize))
	// 获取写入 API
	writeAPI := client.WriteAPI(info.Org, info.Bucket)
	// Get errors channel
	errorsCh := writeAPI.Errors()
	// Create go proc for reading and logging errors
	go func() {
		for err := range errorsCh {
			pkg.LoggerFromContext(ctx).Error("write error: %s\n", zap.Error(err))
			// 不清楚Influxdb通道内的错误是否会导致程序退出，所以这里不直接返回错误
		}
	}()
	return &InfluxDbSink{
		logger:   pkg.LoggerFromContext(ctx),
		client:   client,
		writeAPI: writeAPI,
		info:     info,
		ctx:      ctx,
	}, nil
}

// GetType Step.1
func (b *InfluxDbSink) GetType() string {
	return "influxdb"
}

// Start Step.2
func (b *InfluxDbSink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	defer b.client.Close()
	b.logger.Debug("===InfluxDbSink started===")
	for {
		select {
		case <-b.ctx.Done():
			b.Stop()
			b.logger.Debug("===InfluxDbSink stopped===")
			return
		case batch := <-in:
			// 创建发布计时器
			publishTimer := metrics.NewTimer("influxdb_publish")

			// 记录接收的批次
			metrics.IncMsgReceived("influxdb")

			err := b.Publish(batch)

			if err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("influxdb")
				pkg.ErrChanFromContext(b.ctx) <- fmt.Errorf("InfluxDbSink error occurred: %w", err)
			} else {
				// 记录成功处理的批次
				metrics.IncMsgProcessed("influxdb")
			}

			publishTimer.StopAndLog(b.logger)
		}
	}
}

// Publish 把批次中的条目和故障记录写入 InfluxDB
func (b *InfluxDbSink) Publish(batch *pkg.EntryBatch) error {
	if batch == nil {
		return nil
	}
	// ～～～将条目写入 InfluxDB 的逻辑～～～
	b.logger.Debug("正在发送", zap.Any("batch", batch))

	for _, entry := range batch.Entries {
		if entry == nil {
			continue
		}
		tagsMap := map[string]string{
			"id":     strconv.Itoa(int(entry.ID)),
			"source": batch.Source,
		}
		if entry.Name != "" {
			tagsMap["name"] = entry.Name
		}
		if batch.Remote != "" {
			tagsMap["remote"] = batch.Remote
		}

		// 创建一个数据点
		p := influxdb2.NewPoint(
			b.info.Measurement, // measurement
			tagsMap,            // tags
			map[string]interface{}{
				"offset": entry.Offset,
			}, // fields
			batch.Ts, // timestamp
		)
		// 写入到 InfluxDB
		b.writeAPI.WritePoint(p)

		b.logger.Info("InfluxDbSink published", zap.Any("entry", entry), zap.String("frameId", batch.FrameId))
	}

	if batch.Fault != nil {
		tagsMap := map[string]string{
			"source": batch.Source,
			"type":   strconv.Itoa(int(batch.Fault.Type)),
		}
		if batch.Remote != "" {
			tagsMap["remote"] = batch.Remote
		}
		// 故障记录单独一个 measurement，寄存器全部平铺为字段
		p := influxdb2.NewPoint(
			b.info.Measurement+"_fault",
			tagsMap,
			map[string]interface{}{
				"param":       batch.Fault.Param,
				"r0":          batch.Fault.R0,
				"r1":          batch.Fault.R1,
				"r2":          batch.Fault.R2,
				"r3":          batch.Fault.R3,
				"r12":         batch.Fault.R12,
				"stack_lr":    batch.Fault.StackLR,
				"return_addr": batch.Fault.ReturnAddr,
				"xpsr":        batch.Fault.XPSR,
				"sp":          batch.Fault.SP,
				"lr":          batch.Fault.LR,
				"ipsr":        batch.Fault.IPSR,
				"icsr":        batch.Fault.ICSR,
				"shcsr":       batch.Fault.SHCSR,
				"cfsr":        batch.Fault.CFSR,
				"hfsr":        batch.Fault.HFSR,
				"mmfar":       batch.Fault.MMFAR,
				"bfar":        batch.Fault.BFAR,
				"tick_ms":     batch.Fault.TickMs,
			},
			batch.Ts,
		)
		b.writeAPI.WritePoint(p)

		b.logger.Warn("InfluxDbSink published fault record",
			zap.Uint32("type", batch.Fault.Type),
			zap.String("frameId", batch.FrameId))
	}

	return nil
}

// Stop 停止 InfluxDbSink
func (b *InfluxDbSink) Stop() {
	b.writeAPI.Flush() // 确保所有数据被写入
	b.client.Close()   // 关闭 InfluxDB 客户端
}
