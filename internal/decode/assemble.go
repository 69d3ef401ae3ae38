package decode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHexLength 表示拼接后的十六进制数字不能配成整字节
var ErrMalformedHexLength = errors.New("hex digits do not form whole bytes: length must be even")

// Assemble 把 token 列表拼接成一条完整的字节序列。
//
// 输入:
//   - tokens: []string，十六进制 token 列表（不要求每个都是两字符）
//
// 输出:
//   - []byte: 还原出的字节序列，空 token 列表产出空序列
//   - error: 数字总数为奇数时返回 ErrMalformedHexLength，含非法字符时返回解码错误
func Assemble(tokens []string) ([]byte, error) {
	joined := strings.Join(tokens, "")
	if len(joined)%2 != 0 {
		return nil, fmt.Errorf("%w: got %d digits", ErrMalformedHexLength, len(joined))
	}
	image, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("组装字节序列失败: %w", err)
	}
	return image, nil
}
