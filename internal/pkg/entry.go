package pkg

import (
	"fmt"
	"time"
)

// DefaultEntryOffset 是条目区相对转储镜像起始的偏移。
// 镜像前 16 字节为段头 (magic / size / capacity / write index)，
// 从该偏移起每个字节是一个日志条目的 ID。
const DefaultEntryOffset = 16

// Entry 是解码出的单个日志条目
type Entry struct {
	ID     uint8  `json:"id"`             // 条目的标识字节
	Offset int    `json:"offset"`         // 条目在字节序列中的偏移
	Name   string `json:"name,omitempty"` // 目录给出的可读名称，可为空
}

// String 按报告行的格式输出条目
func (e *Entry) String() string {
	return fmt.Sprintf("ID %d at offset %d", e.ID, e.Offset)
}

// Capture 是采集源和解码器之间传递的一段原始转储文本
type Capture struct {
	Source string    // 采集源类型
	Remote string    // 远端标识 (地址/主题/文件路径)
	Text   string    // 原始十六进制转储文本
	Ts     time.Time // 抓取时间
}

// FaultInfo 是转储中故障段携带的寄存器镜像，字段顺序与段内布局一致
type FaultInfo struct {
	Type       uint32 `json:"type"`
	Param      uint32 `json:"param"`
	R0         uint32 `json:"r0"`
	R1         uint32 `json:"r1"`
	R2         uint32 `json:"r2"`
	R3         uint32 `json:"r3"`
	R12        uint32 `json:"r12"`
	StackLR    uint32 `json:"stack_lr"`
	ReturnAddr uint32 `json:"return_addr"`
	XPSR       uint32 `json:"xpsr"`
	SP         uint32 `json:"sp"`
	LR         uint32 `json:"lr"`
	IPSR       uint32 `json:"ipsr"`
	ICSR       uint32 `json:"icsr"`
	SHCSR      uint32 `json:"shcsr"`
	CFSR       uint32 `json:"cfsr"`
	HFSR       uint32 `json:"hfsr"`
	MMFAR      uint32 `json:"mmfar"`
	BFAR       uint32 `json:"bfar"`
	TickMs     uint32 `json:"tick_ms"`
}

// EntryBatch 是一次转储解码后的完整结果，在解码器、分发器和输出端之间传递
type EntryBatch struct {
	FrameId  string     `json:"frameId"`
	Source   string     `json:"source"`           // 来源采集源类型
	Remote   string     `json:"remote,omitempty"` // 远端标识
	Ts       time.Time  `json:"ts"`
	ImageLen int        `json:"imageLen"` // 重组出的字节序列长度
	Entries  []*Entry   `json:"entries"`
	Fault    *FaultInfo `json:"fault,omitempty"`
}

// String 格式化整个批次便于日志输出
func (b *EntryBatch) String() string {
	fault := "none"
	if b.Fault != nil {
		fault = fmt.Sprintf("type=%d", b.Fault.Type)
	}
	return fmt.Sprintf("EntryBatch(FrameId=%s, Source=%s, Entries=%d, Fault=%s, Ts=%s)",
		b.FrameId, b.Source, len(b.Entries), fault, b.Ts.Format(time.RFC3339))
}
