package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"lwlgate/internal/pkg"
)

// EEnv 是过滤表达式执行的环境。
// 它暴露单条日志条目的字段以及该条目所属转储的来源信息。
type EEnv struct {
	ID     int
	Offset int
	Name   string
	Source string
	Remote string
}

type Handler struct {
	LatestTs       time.Time
	LatestFrameId  string
	batchList      []*pkg.EntryBatch
	Sinks          []pkg.SinkConfig
	SinkFilterList map[string]*vm.Program
}

// BuildEntryExprOptions 返回用于编译过滤表达式的 expr 选项。
// 环境设置为 EEnv，并要求表达式结果为布尔值。
//
// 输入: 无
// 输出:
//   - []expr.Option: 编译选项切片
func BuildEntryExprOptions() []expr.Option {
	options := []expr.Option{
		expr.Env(EEnv{}),
		expr.AsBool(),
	}
	return options
}

// NewHandler 创建一个新的处理器
//
// 输入:
//   - sinkConfigs: sink 配置列表，只编译其中已启用的项
//
// 输出:
//   - *Handler: 新的处理器
//   - error: 错误
func NewHandler(sinkConfigs []pkg.SinkConfig) (*Handler, error) {
	handler := &Handler{
		LatestTs:       time.Time{},
		LatestFrameId:  "",
		batchList:      []*pkg.EntryBatch{},
		Sinks:          []pkg.SinkConfig{},
		SinkFilterList: make(map[string]*vm.Program),
	}

	// 编译每个启用sink的过滤表达式，空过滤等价于全收
	for _, sink := range sinkConfigs {
		if !sink.Enable {
			continue
		}
		filter := strings.Join(sink.Filter, " && ")
		if filter == "" {
			filter = "true"
		}
		program, err := expr.Compile(filter, BuildEntryExprOptions()...)
		if err != nil {
			return nil, fmt.Errorf("编译sink过滤表达式失败: %w", err)
		}
		handler.Sinks = append(handler.Sinks, sink)
		handler.SinkFilterList[sink.Type] = program
	}
	return handler, nil
}

// Dispatch 分发一帧解码结果
//
// 输入:
//   - batch: 解码器产出的条目批
//
// 输出:
//   - map[string]*pkg.EntryBatch: 按sink类型分组的批，只含各自过滤命中的条目
//   - error: 错误
func (h *Handler) Dispatch(batch *pkg.EntryBatch) (map[string]*pkg.EntryBatch, error) {
	defer h.Clean()
	h.LatestFrameId = batch.FrameId
	h.LatestTs = batch.Ts
	h.batchList = append(h.batchList, batch)
	ready := make(map[string]*pkg.EntryBatch)
	for _, entry := range batch.Entries {
		err := h.AddEntry(entry, batch, ready)
		if err != nil {
			return nil, err
		}
	}
	// 故障记录无条件送达每个启用的sink，哪怕没有条目命中过滤
	if batch.Fault != nil {
		for _, sink := range h.Sinks {
			if _, ok := ready[sink.Type]; !ok {
				ready[sink.Type] = h.newSinkBatch(batch)
			}
		}
	}
	return ready, nil
}

// AddEntry 将一个条目添加到命中过滤的各个sink批中
//
// 输入:
//   - entry: 要分发的条目
//   - batch: 条目所属的原始批，提供来源元数据
//   - ready: 已准备好的分组批
//
// 输出:
//   - error: 错误
func (h *Handler) AddEntry(entry *pkg.Entry, batch *pkg.EntryBatch, ready map[string]*pkg.EntryBatch) error {
	var clonedEntry *pkg.Entry

	// 只遍历一次sink列表
	for _, sink := range h.Sinks {
		program := h.SinkFilterList[sink.Type]
		result, err := expr.Run(program, EEnv{
			ID:     int(entry.ID),
			Offset: entry.Offset,
			Name:   entry.Name,
			Source: batch.Source,
			Remote: batch.Remote,
		})
		if err != nil {
			return fmt.Errorf("执行sink过滤表达式失败: %w", err)
		}

		// 如果命中该sink
		if result.(bool) {
			// 延迟创建克隆：只在第一次命中时创建
			if clonedEntry == nil {
				clonedEntry = pkg.EntryPoolInstance.Get()
				clonedEntry.ID = entry.ID
				clonedEntry.Offset = entry.Offset
				clonedEntry.Name = entry.Name
			}

			// 确保sink对应的批已创建
			if _, ok := ready[sink.Type]; !ok {
				ready[sink.Type] = h.newSinkBatch(batch)
			}

			// 将克隆添加到当前命中的sink批中
			ready[sink.Type].Entries = append(ready[sink.Type].Entries, clonedEntry)
		}
	}

	return nil
}

// newSinkBatch 复制批级元数据，条目由过滤逐个填充
func (h *Handler) newSinkBatch(batch *pkg.EntryBatch) *pkg.EntryBatch {
	return &pkg.EntryBatch{
		FrameId:  h.LatestFrameId,
		Source:   batch.Source,
		Remote:   batch.Remote,
		Ts:       h.LatestTs,
		ImageLen: batch.ImageLen,
		Fault:    batch.Fault,
		Entries:  []*pkg.Entry{},
	}
}

// Clean 清理处理器，已分发批的原始条目归还对象池
//
// 输入: 无
//
// 输出: 无
func (h *Handler) Clean() {
	h.LatestTs = time.Time{}
	h.LatestFrameId = ""
	for _, batch := range h.batchList {
		pkg.EntryPoolInstance.PutAll(batch.Entries)
		batch.Entries = nil
	}
	h.batchList = []*pkg.EntryBatch{}
}
