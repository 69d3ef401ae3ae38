package helpers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lwlgate/internal/pkg"
	"lwlgate/internal/sink"
)

// MemorySink 是一个用于测试的内存型输出端，实现了sink.Template接口
type MemorySink struct {
	received []*pkg.EntryBatch // 存储接收到的条目批
	mu       sync.Mutex        // 保护received
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// 最近一次由工厂创建的实例。
// 管道在内部通过工厂构建输出端，测试用这个句柄取回它。
var (
	lastCreated   *MemorySink
	lastCreatedMu sync.Mutex
)

// RegisterMemorySink 注册 MemorySink 到 sink 工厂
func RegisterMemorySink() {
	sink.Register("memory", NewMemorySink)
}

// LastCreated 返回最近一次由工厂创建的 MemorySink 实例
func LastCreated() *MemorySink {
	lastCreatedMu.Lock()
	defer lastCreatedMu.Unlock()
	return lastCreated
}

// NewMemorySink 创建一个新的MemorySink实例
func NewMemorySink(ctx context.Context) (sink.Template, error) {
	logger := pkg.LoggerFromContext(ctx)
	childCtx, cancel := context.WithCancel(ctx)

	m := &MemorySink{
		received: make([]*pkg.EntryBatch, 0),
		ctx:      childCtx,
		cancel:   cancel,
		logger:   logger.With(zap.String("sink", "memory")),
	}

	lastCreatedMu.Lock()
	lastCreated = m
	lastCreatedMu.Unlock()
	return m, nil
}

// GetType 返回sink的类型
func (m *MemorySink) GetType() string {
	return "memory"
}

// Start 开始消费条目批
func (m *MemorySink) Start(batchChan chan *pkg.EntryBatch) {
	m.logger.Info("MemorySink已启动")

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("MemorySink正在停止")
			return
		case batch, ok := <-batchChan:
			if !ok {
				m.logger.Info("批次通道已关闭")
				return
			}

			if batch != nil {
				m.mu.Lock()
				m.received = append(m.received, batch)
				m.mu.Unlock()
				m.logger.Debug("MemorySink接收到条目批",
					zap.Int("条目数量", len(batch.Entries)),
					zap.Time("时间戳", batch.Ts))
			}
		}
	}
}

// Stop 停止MemorySink
func (m *MemorySink) Stop() {
	m.logger.Info("请求停止MemorySink")
	m.cancel()
}

// GetReceived 返回接收到的所有条目批
func (m *MemorySink) GetReceived() []*pkg.EntryBatch {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 返回副本以避免数据竞争
	result := make([]*pkg.EntryBatch, len(m.received))
	copy(result, m.received)
	return result
}

// WaitForBatches 轮询等待至少 n 个条目批到达，返回当前快照
func (m *MemorySink) WaitForBatches(n int, timeout time.Duration) []*pkg.EntryBatch {
	deadline := time.Now().Add(timeout)
	for {
		batches := m.GetReceived()
		if len(batches) >= n || time.Now().After(deadline) {
			return batches
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Reset 清空接收到的数据
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = make([]*pkg.EntryBatch, 0)
}
