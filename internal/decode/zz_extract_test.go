package decode

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExtractTokens(t *testing.T) {
	Convey("十六进制token提取测试套件", t, func() {
		Convey("标准转储行", func() {
			tokens := ExtractTokens("0000: 01 02 03 04")
			So(tokens, ShouldResemble, []string{"00", "00", "01", "02", "03", "04"})
		})

		Convey("大小写混合均可识别", func() {
			So(ExtractTokens("aA Bb 0F"), ShouldResemble, []string{"aA", "Bb", "0F"})
		})

		Convey("贪婪且不重叠的扫描", func() {
			Convey("三个连续字符只产出一个token", func() {
				So(ExtractTokens("abc"), ShouldResemble, []string{"ab"})
			})

			Convey("四个连续字符切成两个token", func() {
				So(ExtractTokens("abcd"), ShouldResemble, []string{"ab", "cd"})
			})

			Convey("非法字符打断后重新起扫", func() {
				So(ExtractTokens("0x1234"), ShouldResemble, []string{"12", "34"})
			})
		})

		Convey("行首偏移标签一并计入", func() {
			tokens := ExtractTokens("0010: aa bb")
			So(tokens, ShouldResemble, []string{"00", "10", "aa", "bb"})
		})

		Convey("跨行提取保持顺序", func() {
			tokens := ExtractTokens("01 02\n03 04\r\n05")
			So(tokens, ShouldResemble, []string{"01", "02", "03", "04", "05"})
		})

		Convey("无token输入", func() {
			So(ExtractTokens(""), ShouldBeNil)
			So(ExtractTokens("zz :: ++"), ShouldBeNil)
		})

		Convey("孤立的单字符不构成token", func() {
			So(ExtractTokens("a b c"), ShouldBeNil)
		})
	})
}
