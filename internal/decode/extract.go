package decode

import "regexp"

// tokenPattern 匹配一个十六进制 token: 恰好两个十六进制字符，大小写均可
var tokenPattern = regexp.MustCompile(`[0-9a-fA-F]{2}`)

// ExtractTokens 从原始转储文本中按出现顺序提取所有十六进制 token。
//
// 输入:
//   - text: string，原始转储文本（可含偏移标签、空白、任意噪声字符）
//
// 输出:
//   - []string: 提取到的 token 列表，没有 token 时为 nil
//
// 扫描是贪婪且不重叠的: "abc" 只产出 "ab"，"0x1234" 产出 "12"、"34"。
// 行首的偏移标签 (如 "0010:") 不做特殊处理，其中的合法 token 一并计入。
func ExtractTokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}
