package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"lwlgate/internal/pkg"
)

// newOneshotCtx 构造单次解码用的上下文
func newOneshotCtx() context.Context {
	ctx := pkg.WithLogger(context.Background(), logger)
	return pkg.WithConfig(ctx, &pkg.Config{
		Decoder: pkg.DecoderConfig{EntryOffset: pkg.DefaultEntryOffset},
	})
}

func TestDecodeOnce(t *testing.T) {
	batch, err := DecodeOnce(newOneshotCtx(), sampleDump)
	assert.NoError(t, err)
	assert.NotEmpty(t, batch.FrameId)
	assert.Equal(t, "oneshot", batch.Source)
	assert.Equal(t, 22, batch.ImageLen)
	assert.Nil(t, batch.Fault)
	assert.Len(t, batch.Entries, 6)
	assert.Equal(t, uint8(15), batch.Entries[0].ID)
	assert.Equal(t, 16, batch.Entries[0].Offset)
	assert.Equal(t, uint8(187), batch.Entries[5].ID)
	assert.Equal(t, 21, batch.Entries[5].Offset)
}

func TestRenderOnce(t *testing.T) {
	report, err := RenderOnce(newOneshotCtx(), sampleDump)
	assert.NoError(t, err)
	expected := "LWL Log Entries:\n" +
		"ID 15 at offset 16\n" +
		"ID 16 at offset 17\n" +
		"ID 0 at offset 18\n" +
		"ID 16 at offset 19\n" +
		"ID 170 at offset 20\n" +
		"ID 187 at offset 21\n"
	assert.Equal(t, expected, report)
}

func TestRenderOnce_NoTokens(t *testing.T) {
	// 没有任何 token 的输入还原出空序列，报告只有表头
	report, err := RenderOnce(newOneshotCtx(), "hello world")
	assert.NoError(t, err)
	assert.Equal(t, "LWL Log Entries:\n", report)
}

func TestRenderOnce_ShortImage(t *testing.T) {
	// 单字节序列不足条目区偏移，报告只有表头
	report, err := RenderOnce(newOneshotCtx(), "ff")
	assert.NoError(t, err)
	assert.Equal(t, "LWL Log Entries:\n", report)
}
