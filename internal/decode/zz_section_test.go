package decode

import (
	"encoding/binary"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// le 把一串 uint32 编码成小端字节序列
func le(vals ...uint32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		out = append(out, b[:]...)
	}
	return out
}

// buildFaultSection 构造一个 88 字节的故障段: 段头 + 20 个寄存器字段
func buildFaultSection(magic uint32) []byte {
	body := le(magic, faultSectionSize)
	for i := uint32(0); i < 20; i++ {
		body = append(body, le(0x1000+i)...)
	}
	return body
}

// buildLWLSection 构造一个 LWL 段: 16 字节段头 + 给定的条目字节
func buildLWLSection(capacity, writeIdx uint32, entries []byte) []byte {
	size := uint32(lwlHeaderSize + len(entries))
	body := le(LWLMagic, size, capacity, writeIdx)
	return append(body, entries...)
}

func TestScanSections(t *testing.T) {
	Convey("段框架切分测试套件", t, func() {
		Convey("完整转储: 故障段+LWL段+结束标记", func() {
			dump := buildFaultSection(0x12345678)
			dump = append(dump, buildLWLSection(0x400, 0xE1, []byte{0x01, 0x02, 0x03, 0x04})...)
			dump = append(dump, le(0x87654321, 8)...)

			sections := ScanSections(dump)
			So(len(sections), ShouldEqual, 3)
			So(sections[0].Kind, ShouldEqual, KindFault)
			So(sections[0].Start, ShouldEqual, 0)
			So(sections[0].Size, ShouldEqual, faultSectionSize)
			So(sections[1].Kind, ShouldEqual, KindLWL)
			So(sections[1].Magic, ShouldEqual, LWLMagic)
			So(sections[1].Start, ShouldEqual, faultSectionSize)
			So(sections[2].Kind, ShouldEqual, KindEnd)
		})

		Convey("单独的LWL段", func() {
			dump := buildLWLSection(0x400, 0, []byte{0xaa, 0xbb})
			sections := ScanSections(dump)
			So(len(sections), ShouldEqual, 1)
			So(sections[0].Kind, ShouldEqual, KindLWL)
			So(sections[0].Size, ShouldEqual, lwlHeaderSize+2)
		})

		Convey("段长声明越过镜像末尾则整体判为非分段转储", func() {
			dump := le(LWLMagic, 0x400) // 声明 1024 字节但没有数据
			So(ScanSections(dump), ShouldBeNil)
		})

		Convey("段长小于段头时判为非分段转储", func() {
			dump := le(LWLMagic, 4)
			dump = append(dump, make([]byte, 16)...)
			So(ScanSections(dump), ShouldBeNil)
		})

		Convey("末尾零散字节判为非分段转储", func() {
			dump := buildLWLSection(0x400, 0, []byte{0xaa})
			dump = append(dump, 0xff, 0xee, 0xdd)
			So(ScanSections(dump), ShouldBeNil)
		})

		Convey("普通转储样例不满足段框架", func() {
			image, err := Assemble(ExtractTokens(sampleDump))
			So(err, ShouldBeNil)
			So(ScanSections(image), ShouldBeNil)
		})

		Convey("空镜像", func() {
			So(ScanSections(nil), ShouldBeNil)
			So(ScanSections([]byte{}), ShouldBeNil)
		})
	})
}

func TestDecodeLWLHeader(t *testing.T) {
	Convey("LWL段头解析测试套件", t, func() {
		Convey("正常段头", func() {
			body := buildLWLSection(0x3F0, 0xE1, []byte{0x01})
			header, err := DecodeLWLHeader(body)
			So(err, ShouldBeNil)
			So(header.Magic, ShouldEqual, LWLMagic)
			So(header.Capacity, ShouldEqual, 0x3F0)
			So(header.WriteIdx, ShouldEqual, 0xE1)
		})

		Convey("段头不完整", func() {
			_, err := DecodeLWLHeader([]byte{0x01, 0x02})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDecodeFault(t *testing.T) {
	Convey("故障段解析测试套件", t, func() {
		Convey("寄存器字段按布局顺序映射", func() {
			body := buildFaultSection(0x12345678)
			info, err := DecodeFault(body)
			So(err, ShouldBeNil)
			So(info.Type, ShouldEqual, 0x1000)
			So(info.Param, ShouldEqual, 0x1001)
			So(info.R0, ShouldEqual, 0x1002)
			So(info.R12, ShouldEqual, 0x1006)
			So(info.StackLR, ShouldEqual, 0x1007)
			So(info.ReturnAddr, ShouldEqual, 0x1008)
			So(info.XPSR, ShouldEqual, 0x1009)
			So(info.SP, ShouldEqual, 0x100a)
			So(info.CFSR, ShouldEqual, 0x100f)
			So(info.BFAR, ShouldEqual, 0x1012)
			So(info.TickMs, ShouldEqual, 0x1013)
		})

		Convey("段内容不足", func() {
			_, err := DecodeFault(le(0x12345678, faultSectionSize))
			So(err, ShouldNotBeNil)
		})
	})
}
