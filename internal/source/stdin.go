package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// StdinSource 从标准输入读取一份完整的转储文本，读到 EOF 为止。
// 适合管道用法: cat dump.txt | lwlgate
type StdinSource struct {
	ctx context.Context
	in  io.Reader
}

func init() {
	Register("stdin", NewStdinSource)
}

func NewStdinSource(ctx context.Context) (Template, error) {
	return &StdinSource{ctx: ctx, in: os.Stdin}, nil
}

func (s *StdinSource) GetType() string {
	return "stdin"
}

func (s *StdinSource) Start(out chan *pkg.Capture) error {
	log := pkg.LoggerFromContext(s.ctx)
	metrics := pkg.GetPerformanceMetrics()

	data, err := io.ReadAll(s.in)
	if err != nil {
		metrics.IncMsgErrors("stdin")
		return fmt.Errorf("读取标准输入失败: %s", err)
	}
	if len(data) == 0 {
		log.Warn("标准输入为空，没有可解码的转储")
		return nil
	}
	metrics.IncMsgReceived("stdin")
	log.Info("已从标准输入读取转储", zap.Int("bytes", len(data)))

	capture := &pkg.Capture{
		Source: "stdin",
		Text:   string(data),
		Ts:     time.Now(),
	}
	select {
	case out <- capture:
		metrics.IncMsgProcessed("stdin")
	case <-s.ctx.Done():
	}
	return nil
}
