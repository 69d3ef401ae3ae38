package internal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"lwlgate/internal/decode"
	"lwlgate/internal/pkg"
)

// DecodeOnce 对一段转储文本走一次完整的 提取->组装->遍历 流程。
// 供命令行和管理端同步调用，不经过管道。
func DecodeOnce(ctx context.Context, text string) (*pkg.EntryBatch, error) {
	decoder, err := decode.NewDecoder(ctx)
	if err != nil {
		return nil, err
	}
	entries, fault, imageLen, err := decoder.DecodeText(text)
	if err != nil {
		return nil, err
	}
	return &pkg.EntryBatch{
		FrameId:  uuid.New().String(),
		Source:   "oneshot",
		Ts:       time.Now(),
		ImageLen: imageLen,
		Entries:  entries,
		Fault:    fault,
	}, nil
}

// RenderOnce 解码并渲染文本报告
func RenderOnce(ctx context.Context, text string) (string, error) {
	batch, err := DecodeOnce(ctx, text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := decode.RenderReport(&sb, batch.Entries); err != nil {
		return "", err
	}
	return sb.String(), nil
}
