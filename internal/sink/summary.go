package sink

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// 初始化时注册 summary 输出端
func init() {
	Register("summary", NewSummarySink)
}

// SummaryInfo summary 的专属配置
type SummaryInfo struct {
	FlushEvery int `mapstructure:"flush_every"` // 每多少个批次输出一次汇总，默认 1
}

// idStat 是单个条目 ID 的累计状态
type idStat struct {
	Name       string
	Count      int
	LastOffset int
}

// SummarySink 跨批次合并条目计数，按配置的节奏汇总到日志。
// 缓存只在消费协程内读写，flush 后清空重新累计。
type SummarySink struct {
	info    SummaryInfo
	ctx     context.Context
	logger  *zap.Logger
	cache   map[uint8]*idStat // 条目 ID -> 累计状态
	batches int
	faults  int
}

// NewSummarySink 是创建 SummarySink 的工厂函数
func NewSummarySink(ctx context.Context) (Template, error) {
	config := pkg.ConfigFromContext(ctx)

	var info SummaryInfo
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "summary" {
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				return nil, fmt.Errorf("failed to decode summary config: %w", err)
			}
		}
	}
	if info.FlushEvery <= 0 {
		info.FlushEvery = 1
	}

	return &SummarySink{
		info:   info,
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "summary")),
		cache:  make(map[uint8]*idStat),
	}, nil
}

// GetType 返回输出端的类型
func (b *SummarySink) GetType() string {
	return "summary"
}

// Start 消费批次通道并累计汇总
func (b *SummarySink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics()
	b.logger.Info("===SummarySink Started===")

	for {
		select {
		case <-b.ctx.Done():
			// 退出前把未满一个窗口的余量也吐出来
			b.flush()
			b.logger.Info("===SummarySink Stopped===")
			return
		case batch, ok := <-in:
			if !ok {
				b.flush()
				b.logger.Info("Input channel closed, stopping SummarySink")
				return
			}
			if batch == nil {
				continue
			}

			metrics.IncMsgReceived("summary")
			b.add(batch)
			metrics.IncMsgProcessed("summary")

			if b.batches%b.info.FlushEvery == 0 {
				b.flush()
			}
		}
	}
}

// add 向汇总缓存合并一个批次
func (b *SummarySink) add(batch *pkg.EntryBatch) {
	b.batches++
	if batch.Fault != nil {
		b.faults++
	}
	for _, entry := range batch.Entries {
		if entry == nil {
			continue
		}
		stat, exist := b.cache[entry.ID]
		if !exist {
			b.cache[entry.ID] = &idStat{
				Name:       entry.Name,
				Count:      1,
				LastOffset: entry.Offset,
			}
			continue
		}
		stat.Count++
		stat.LastOffset = entry.Offset
		if stat.Name == "" {
			stat.Name = entry.Name
		}
	}
}

// flush 输出当前汇总并清空缓存
func (b *SummarySink) flush() {
	if len(b.cache) == 0 && b.faults == 0 {
		b.batches = 0
		return
	}

	ids := make([]int, 0, len(b.cache))
	for id := range b.cache {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		stat := b.cache[uint8(id)]
		label := fmt.Sprintf("ID %d", id)
		if stat.Name != "" {
			label = fmt.Sprintf("ID %d (%s)", id, stat.Name)
		}
		lines = append(lines, fmt.Sprintf("%s: %d hits, last offset %d", label, stat.Count, stat.LastOffset))
	}

	b.logger.Info("条目汇总",
		zap.Int("batches", b.batches),
		zap.Int("faults", b.faults),
		zap.Strings("entries", lines))

	// 清空缓存
	b.cache = make(map[uint8]*idStat)
	b.batches = 0
	b.faults = 0
}

// Stop 停止 SummarySink。余量由 Start 的退出路径负责 flush。
func (b *SummarySink) Stop() {
	b.logger.Info("Requesting stop for SummarySink")
}
