package decode

import (
	"fmt"
	"io"

	"lwlgate/internal/pkg"
)

// ReportHeader 是文本报告的固定首行
const ReportHeader = "LWL Log Entries:"

// Walk 从 start 偏移开始遍历字节序列，每个字节产出一个日志条目。
//
// 输入:
//   - image: []byte，完整的字节序列
//   - start: int，游标起始偏移（一般为 pkg.DefaultEntryOffset，负值按 0 处理）
//
// 输出:
//   - []*pkg.Entry: 条目列表; start 不小于序列长度时为空列表，不是错误
//
// 每个字节只取其数值作为条目 ID，不对字节含义做任何解释。
func Walk(image []byte, start int) []*pkg.Entry {
	if start < 0 {
		start = 0
	}
	if start >= len(image) {
		return []*pkg.Entry{}
	}
	entries := make([]*pkg.Entry, 0, len(image)-start)
	for idx := start; idx < len(image); idx++ {
		entries = append(entries, &pkg.Entry{ID: image[idx], Offset: idx})
	}
	return entries
}

// RenderReport 把条目列表渲染成文本报告并写入 w。
//
// 输入:
//   - w: io.Writer，报告输出目标
//   - entries: []*pkg.Entry，要渲染的条目
//
// 输出:
//   - error: 写入错误
//
// 报告以固定的 "LWL Log Entries:" 头开始，随后每个条目一行，
// 格式为 "ID <id> at offset <offset>"，两个数均为十进制。
// 条目为空时只输出报告头。
func RenderReport(w io.Writer, entries []*pkg.Entry) error {
	if _, err := fmt.Fprintln(w, ReportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "ID %d at offset %d\n", e.ID, e.Offset); err != nil {
			return err
		}
	}
	return nil
}
