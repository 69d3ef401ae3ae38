/*
Package source 主要提供了抓取十六进制转储文本的数据源实现。

template.go 中为主接口，负责建立连接、监听上游设备吐出的转储文本，
并将其封装为 pkg.Capture 推入通道供解码器消费。

可以选择的数据源包括：

- stdin

- file

- tcp

- udp

- mqtt

本包包含：

- Template 接口：定义启动抓取和类型查询的方法。
- 工厂函数：为各种数据源创建特定实例。
- 具体数据源的实现：如 stdin、file、tcp、udp、mqtt 等。

使用示例：

	// 实现 Template 接口
	type MySource struct{}

	func (s *MySource) Start(out chan *pkg.Capture) error {
	    // 抓取逻辑
	}

	func (s *MySource) GetType() string {
	    return "my"
	}

	// 使用工厂函数将数据源注册
	func init() {
		Register("my", NewMySource)
	}
*/
package source
