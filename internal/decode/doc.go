// Package decode 负责把十六进制转储文本还原成结构化的日志条目。
//
// 解码分为三个彼此独立、可单独测试的契约：
//   - ExtractTokens: 从任意文本中按序提取两字符的十六进制 token。
//   - Assemble: 把 token 拼接还原为字节序列，数字总数为奇数时报 ErrMalformedHexLength。
//   - Walk: 从条目区偏移起遍历字节序列，每个字节产出一个条目。
//
// RenderReport 把条目渲染成固定格式的文本报告。
// 在此之上，section.go 识别完整转储中按 magic/size 框定的段，
// catalog.go 为条目 ID 提供可读名称，decoder.go 把以上环节接入管道。
package decode
