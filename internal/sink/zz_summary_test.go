package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lwlgate/internal/pkg"
)

func newSummaryCtx(para map[string]interface{}) context.Context {
	config := &pkg.Config{
		Sinks: []pkg.SinkConfig{
			{Enable: true, Type: "summary", Para: para},
		},
	}
	ctx := pkg.WithConfig(context.Background(), config)
	return pkg.WithLogger(ctx, logger)
}

func TestNewSummarySink_Defaults(t *testing.T) {
	sink, err := NewSummarySink(newSummaryCtx(nil))
	assert.NoError(t, err)

	impl, ok := sink.(*SummarySink)
	assert.True(t, ok)
	assert.Equal(t, "summary", impl.GetType())
	// flush_every 未配置时每个批次都输出
	assert.Equal(t, 1, impl.info.FlushEvery)
}

func TestSummarySink_Merge(t *testing.T) {
	sink, err := NewSummarySink(newSummaryCtx(map[string]interface{}{"flush_every": 10}))
	assert.NoError(t, err)
	impl := sink.(*SummarySink)

	impl.add(&pkg.EntryBatch{
		FrameId: "frame-1",
		Source:  "udp",
		Entries: []*pkg.Entry{
			{ID: 15, Offset: 16},
			{ID: 16, Offset: 17},
		},
	})
	impl.add(&pkg.EntryBatch{
		FrameId: "frame-2",
		Source:  "udp",
		Entries: []*pkg.Entry{
			{ID: 15, Offset: 18, Name: "WIFI_INIT"},
		},
		Fault: &pkg.FaultInfo{Type: 3},
	})

	assert.Equal(t, 2, impl.batches)
	assert.Equal(t, 1, impl.faults)
	assert.Equal(t, 2, impl.cache[15].Count)
	// 最后一次出现的偏移覆盖之前的
	assert.Equal(t, 18, impl.cache[15].LastOffset)
	// 后到的名称补全先到的空名称
	assert.Equal(t, "WIFI_INIT", impl.cache[15].Name)
	assert.Equal(t, 1, impl.cache[16].Count)

	// flush 后缓存清空重新累计
	impl.flush()
	assert.Empty(t, impl.cache)
	assert.Equal(t, 0, impl.batches)
	assert.Equal(t, 0, impl.faults)
}

func TestSummarySink_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(newSummaryCtx(map[string]interface{}{"flush_every": 2}))

	sink, err := NewSummarySink(ctx)
	assert.NoError(t, err)

	in := make(chan *pkg.EntryBatch, 2)
	done := make(chan struct{})
	go func() {
		sink.Start(in)
		close(done)
	}()

	in <- &pkg.EntryBatch{
		FrameId: "frame-1",
		Source:  "tcp",
		Ts:      time.Now(),
		Entries: []*pkg.Entry{{ID: 170, Offset: 20}},
	}

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SummarySink 未在预期时间内停止")
	}
}
