package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
	"lwlgate/internal/sink"
	"lwlgate/internal/source"
)

// Mock Logger for capturing log outputs
var logger, _ = zap.NewDevelopment()

// 22 字节的样例转储: 段头 16 字节 + 条目区 6 字节
const sampleDump = "0000: 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f 10\n0010: aa bb"

// MockSource 模拟数据源，把预置的转储文本依次推入通道
type MockSource struct {
	mock.Mock
	texts []string
}

func (m *MockSource) GetType() string {
	return "mock"
}

func (m *MockSource) Start(captureChan chan *pkg.Capture) error {
	m.Called()
	for _, text := range m.texts {
		captureChan <- &pkg.Capture{
			Source: "mock",
			Remote: "bench-device",
			Text:   text,
			Ts:     time.Now(),
		}
	}
	return nil
}

// MockSink 模拟输出端，把路由过来的批次转发给测试断言
type MockSink struct {
	mock.Mock
	received chan *pkg.EntryBatch
}

func (m *MockSink) GetType() string {
	return "mock"
}

func (m *MockSink) Start(in chan *pkg.EntryBatch) {
	m.Called()
	for batch := range in {
		m.received <- batch
	}
}

func (m *MockSink) Stop() {}

// newPipelineCtx 组装集成测试用的上下文
func newPipelineCtx(cfg *pkg.Config) (context.Context, context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = pkg.WithLogger(ctx, logger)
	errChan := make(chan error, 1)
	ctx = pkg.WithErrChan(ctx, errChan)
	ctx = pkg.WithConfig(ctx, cfg)
	return ctx, cancel, errChan
}

// swapFactories 用模拟实现替换 source.New 和 sink.New，返回恢复函数
func swapFactories(mockSource *MockSource, mockSink *MockSink) func() {
	originalSourceNew := source.New
	source.New = func(ctx context.Context) (source.Template, error) {
		return mockSource, nil
	}
	originalSinkNew := sink.New
	sink.New = func(ctx context.Context) (sink.TemplateCollection, error) {
		return sink.TemplateCollection{"mock": mockSink}, nil
	}
	return func() {
		source.New = originalSourceNew
		sink.New = originalSinkNew
	}
}

// 集成测试: 采集 -> 解码 -> 分发 -> 输出 全链路
func TestStartPipeline(t *testing.T) {
	ctx, cancel, errChan := newPipelineCtx(&pkg.Config{
		Source:  pkg.SourceConfig{Type: "mock"},
		Decoder: pkg.DecoderConfig{EntryOffset: pkg.DefaultEntryOffset},
		Sinks:   []pkg.SinkConfig{{Type: "mock", Enable: true}},
	})
	defer cancel()

	// 创建模拟的数据源
	mockSource := new(MockSource)
	mockSource.texts = []string{sampleDump}
	mockSource.On("Start").Return()

	// 创建模拟的输出端
	mockSink := new(MockSink)
	mockSink.received = make(chan *pkg.EntryBatch, 1)
	mockSink.On("Start").Return()

	restore := swapFactories(mockSource, mockSink)
	defer restore()

	// 启动管道
	go StartPipeline(ctx)

	// 验证输出端是否收到了解码后的批次
	select {
	case batch := <-mockSink.received:
		assert.Equal(t, "mock", batch.Source)
		assert.Equal(t, "bench-device", batch.Remote)
		assert.Equal(t, 22, batch.ImageLen)
		assert.Nil(t, batch.Fault)
		assert.Len(t, batch.Entries, 6)
		wantIDs := []uint8{15, 16, 0, 16, 170, 187}
		for i, entry := range batch.Entries {
			assert.Equal(t, wantIDs[i], entry.ID)
			assert.Equal(t, pkg.DefaultEntryOffset+i, entry.Offset)
		}
	case err := <-errChan:
		t.Fatalf("Unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for batch")
	}

	mockSource.AssertExpectations(t)
	mockSink.AssertExpectations(t)
}

// 集成测试: 开启增量抑制后，重复帧被吞掉，增长帧只放行新增尾部
func TestStartPipeline_DeltaOnly(t *testing.T) {
	ctx, cancel, errChan := newPipelineCtx(&pkg.Config{
		Source:     pkg.SourceConfig{Type: "mock"},
		Decoder:    pkg.DecoderConfig{EntryOffset: pkg.DefaultEntryOffset},
		Dispatcher: pkg.DispatcherConfig{DeltaOnly: true},
		Sinks:      []pkg.SinkConfig{{Type: "mock", Enable: true}},
	})
	defer cancel()

	// 同一设备连续上报三帧: 原帧、重复帧、追加一字节的增长帧
	mockSource := new(MockSource)
	mockSource.texts = []string{sampleDump, sampleDump, sampleDump + " cc"}
	mockSource.On("Start").Return()

	mockSink := new(MockSink)
	mockSink.received = make(chan *pkg.EntryBatch, 3)
	mockSink.On("Start").Return()

	restore := swapFactories(mockSource, mockSink)
	defer restore()

	go StartPipeline(ctx)

	// 第一帧建立基线，整批放行
	select {
	case batch := <-mockSink.received:
		assert.Len(t, batch.Entries, 6)
	case err := <-errChan:
		t.Fatalf("Unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for first batch")
	}

	// 第二帧与基线相同被抑制，第三帧只放行新增的尾部条目
	select {
	case batch := <-mockSink.received:
		assert.Len(t, batch.Entries, 1)
		assert.Equal(t, uint8(0xcc), batch.Entries[0].ID)
		assert.Equal(t, 22, batch.Entries[0].Offset)
		assert.Equal(t, 23, batch.ImageLen)
	case err := <-errChan:
		t.Fatalf("Unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for delta batch")
	}

	// 没有第三个批次: 重复帧确实被吞掉了
	select {
	case batch := <-mockSink.received:
		t.Fatalf("Suppressed frame leaked through: %v", batch)
	case <-time.After(200 * time.Millisecond):
	}

	mockSource.AssertExpectations(t)
	mockSink.AssertExpectations(t)
}

// 数据源启动失败时，错误必须经 ErrChan 上抛
func TestStartPipeline_SourceError(t *testing.T) {
	ctx, cancel, errChan := newPipelineCtx(&pkg.Config{
		Source:  pkg.SourceConfig{Type: "no-such-source"},
		Decoder: pkg.DecoderConfig{EntryOffset: pkg.DefaultEntryOffset},
		Sinks:   []pkg.SinkConfig{{Type: "mock", Enable: true}},
	})
	defer cancel()

	mockSink := new(MockSink)
	mockSink.received = make(chan *pkg.EntryBatch, 1)
	mockSink.On("Start").Return().Maybe()

	originalSinkNew := sink.New
	sink.New = func(ctx context.Context) (sink.TemplateCollection, error) {
		return sink.TemplateCollection{"mock": mockSink}, nil
	}
	defer func() { sink.New = originalSinkNew }()

	go StartPipeline(ctx)

	select {
	case err := <-errChan:
		assert.ErrorContains(t, err, "failed to create source")
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for source error")
	}
}
