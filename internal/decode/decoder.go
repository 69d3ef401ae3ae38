package decode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// Decoder 把采集到的转储文本解码成条目批次
type Decoder struct {
	catalog      Catalog
	entryOffset  int
	scanSections bool
	logger       *zap.Logger
	ctx          context.Context
}

// NewDecoder 按全局配置构造解码器
func NewDecoder(ctx context.Context) (*Decoder, error) {
	cfg := pkg.ConfigFromContext(ctx)
	catalog, err := LoadCatalog(cfg.Decoder.Catalog)
	if err != nil {
		return nil, fmt.Errorf("初始化解码器失败: %w", err)
	}
	return &Decoder{
		catalog:      catalog,
		entryOffset:  cfg.Decoder.EntryOffset,
		scanSections: cfg.Decoder.ScanSections,
		logger:       pkg.LoggerFromContext(ctx),
		ctx:          ctx,
	}, nil
}

// DecodeText 对一段转储文本走完整的 提取->组装->遍历 流程。
//
// 输入:
//   - text: string，原始转储文本
//
// 输出:
//   - []*pkg.Entry: 解码出的条目
//   - *pkg.FaultInfo: 故障寄存器镜像，转储中没有故障段时为 nil
//   - int: 还原出的字节序列长度
//   - error: 组装失败时的错误
func (d *Decoder) DecodeText(text string) ([]*pkg.Entry, *pkg.FaultInfo, int, error) {
	tokens := ExtractTokens(text)
	image, err := Assemble(tokens)
	if err != nil {
		return nil, nil, 0, err
	}
	entries, fault := d.DecodeImage(image)
	return entries, fault, len(image), nil
}

// DecodeImage 遍历字节序列。开启段识别时优先按段框架切分:
// 故障段解码为寄存器镜像，LWL 段在段内按条目区偏移遍历。
// 不满足段框架的镜像整体按裸 LWL 镜像处理。
func (d *Decoder) DecodeImage(image []byte) ([]*pkg.Entry, *pkg.FaultInfo) {
	if d.scanSections {
		if sections := ScanSections(image); sections != nil {
			var entries []*pkg.Entry
			var fault *pkg.FaultInfo
			for _, section := range sections {
				switch section.Kind {
				case KindLWL:
					entries = append(entries, d.named(Walk(section.Body, d.entryOffset))...)
				case KindFault:
					info, err := DecodeFault(section.Body)
					if err != nil {
						d.logger.Warn("故障段解码失败", zap.Error(err))
						continue
					}
					fault = info
				case KindEnd:
					// 结束标记不携带数据
				default:
					d.logger.Debug("跳过未知段",
						zap.Uint32("magic", section.Magic),
						zap.Int("start", section.Start),
						zap.Int("size", section.Size))
				}
			}
			if entries == nil {
				entries = []*pkg.Entry{}
			}
			return entries, fault
		}
	}
	return d.named(Walk(image, d.entryOffset)), nil
}

// named 用目录为条目补充可读名称
func (d *Decoder) named(entries []*pkg.Entry) []*pkg.Entry {
	if len(d.catalog) == 0 {
		return entries
	}
	for _, e := range entries {
		e.Name = d.catalog.Name(e.ID)
	}
	return entries
}

// Run 消费抓取通道并产出条目批次，直到上下文取消或通道关闭。
// 单条转储的解码失败只记录日志和指标，不中断管道。
func (d *Decoder) Run(in chan *pkg.Capture, out chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics()
	d.logger.Info("===Decoder Started===")
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("===Decoder Stopped===")
			return
		case capture, ok := <-in:
			if !ok {
				d.logger.Info("抓取通道已关闭, 解码器退出")
				return
			}
			metrics.IncCaptureCount()
			metrics.IncMsgReceived("decoder")
			decodeTimer := metrics.NewTimer("decode")

			entries, fault, imageLen, err := d.DecodeText(capture.Text)
			if err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("decoder")
				d.logger.Error("转储解码失败",
					zap.Error(err),
					zap.String("source", capture.Source),
					zap.String("remote", capture.Remote))
				decodeTimer.Stop()
				continue
			}

			ts := capture.Ts
			if ts.IsZero() {
				ts = time.Now()
			}
			batch := &pkg.EntryBatch{
				FrameId:  uuid.New().String(),
				Source:   capture.Source,
				Remote:   capture.Remote,
				Ts:       ts,
				ImageLen: imageLen,
				Entries:  entries,
				Fault:    fault,
			}
			metrics.AddDecodedEntries(len(entries))
			metrics.IncMsgProcessed("decoder")
			decodeTimer.StopAndLog(d.logger)

			select {
			case out <- batch:
			case <-d.ctx.Done():
				d.logger.Info("===Decoder Stopped===")
				return
			}
		}
	}
}
