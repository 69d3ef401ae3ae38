package decode

import (
	"encoding/binary"
	"fmt"

	"lwlgate/internal/pkg"
)

// LWLMagic 是 LWL 日志段的 magic 标识
const LWLMagic uint32 = 0xF00D0001

const (
	sectionHeaderSize = 8 // magic + num_section_bytes
	lwlHeaderSize     = pkg.DefaultEntryOffset

	// 故障段总长: 段头 + 20 个小端 uint32 寄存器字段，写入对齐到 16 字节时带 8 字节填充
	faultSectionSize       = 88
	faultSectionSizePadded = 96

	// 结束标记只有段头，写入对齐时同样可能带填充
	endSectionSizePadded = 16
)

// SectionKind 标识段的类别
type SectionKind int

const (
	KindUnknown SectionKind = iota
	KindLWL
	KindFault
	KindEnd
)

func (k SectionKind) String() string {
	switch k {
	case KindLWL:
		return "lwl"
	case KindFault:
		return "fault"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Section 是转储镜像中按 magic/size 框定的一个段
type Section struct {
	Kind  SectionKind
	Magic uint32
	Start int    // 段起始在镜像中的偏移
	Size  int    // 段总长，含 8 字节段头
	Body  []byte // 含段头的段内容切片（不拷贝）
}

// LWLHeader 是 LWL 日志段的 16 字节段头
type LWLHeader struct {
	Magic    uint32 // LWLMagic
	Size     uint32 // num_section_bytes
	Capacity uint32 // 环形日志区容量
	WriteIdx uint32 // 环形写指针
}

// classify 按 magic 和结构特征判定段类别。
// 只有 LWL 段有固定的 magic；故障段和结束标记按段长判定。
func classify(magic uint32, size int) SectionKind {
	switch {
	case magic == LWLMagic:
		return KindLWL
	case size == faultSectionSize || size == faultSectionSizePadded:
		return KindFault
	case size <= endSectionSizePadded:
		return KindEnd
	default:
		return KindUnknown
	}
}

// ScanSections 按 [magic][num_section_bytes] 的框架切分转储镜像。
//
// 输入:
//   - image: []byte，完整的字节序列
//
// 输出:
//   - []Section: 切出的段; 镜像不满足段框架时返回 nil
//
// 框架校验很严格: 每个段声明的长度必须不小于段头且落在镜像内，
// 且所有段必须恰好铺满镜像。任何一处不满足都判定整个镜像
// 不是分段转储，调用方应将其整体当作裸 LWL 镜像处理。
func ScanSections(image []byte) []Section {
	var sections []Section
	pos := 0
	for pos+sectionHeaderSize <= len(image) {
		magic := binary.LittleEndian.Uint32(image[pos:])
		size := int(binary.LittleEndian.Uint32(image[pos+4:]))
		if size < sectionHeaderSize || pos+size > len(image) {
			return nil
		}
		sections = append(sections, Section{
			Kind:  classify(magic, size),
			Magic: magic,
			Start: pos,
			Size:  size,
			Body:  image[pos : pos+size],
		})
		pos += size
	}
	if pos != len(image) {
		// 末尾有零散字节，不是规整的分段转储
		return nil
	}
	return sections
}

// DecodeLWLHeader 解析 LWL 段的 16 字节段头。
//
// 输入:
//   - body: []byte，段内容（含段头）
//
// 输出:
//   - *LWLHeader: 解析出的段头
//   - error: 段头不完整时的错误
func DecodeLWLHeader(body []byte) (*LWLHeader, error) {
	if len(body) < lwlHeaderSize {
		return nil, fmt.Errorf("LWL 段头不完整: 需要 %d 字节, 实际 %d 字节", lwlHeaderSize, len(body))
	}
	return &LWLHeader{
		Magic:    binary.LittleEndian.Uint32(body[0:]),
		Size:     binary.LittleEndian.Uint32(body[4:]),
		Capacity: binary.LittleEndian.Uint32(body[8:]),
		WriteIdx: binary.LittleEndian.Uint32(body[12:]),
	}, nil
}

// DecodeFault 解析故障段，段头后按小端 uint32 依次排布 20 个寄存器字段。
//
// 输入:
//   - body: []byte，段内容（含段头）
//
// 输出:
//   - *pkg.FaultInfo: 寄存器镜像
//   - error: 段不完整时的错误
func DecodeFault(body []byte) (*pkg.FaultInfo, error) {
	if len(body) < faultSectionSize {
		return nil, fmt.Errorf("故障段不完整: 需要 %d 字节, 实际 %d 字节", faultSectionSize, len(body))
	}
	u := func(i int) uint32 {
		return binary.LittleEndian.Uint32(body[sectionHeaderSize+4*i:])
	}
	return &pkg.FaultInfo{
		Type:       u(0),
		Param:      u(1),
		R0:         u(2),
		R1:         u(3),
		R2:         u(4),
		R3:         u(5),
		R12:        u(6),
		StackLR:    u(7),
		ReturnAddr: u(8),
		XPSR:       u(9),
		SP:         u(10),
		LR:         u(11),
		IPSR:       u(12),
		ICSR:       u(13),
		SHCSR:      u(14),
		CFSR:       u(15),
		HFSR:       u(16),
		MMFAR:      u(17),
		BFAR:       u(18),
		TickMs:     u(19),
	}, nil
}
