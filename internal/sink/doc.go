/*
Package sink 定义了 lwlgate 中条目批次的最终去向。

本包接收来自 dispatcher 包按输出端拆分的条目批次 (pkg.EntryBatch)，
并将其写入一个或多个目的地。主要职责包括：
  - 实现与各种外部存储或服务（如 InfluxDB、Kafka、MQTT、Prometheus）的集成。
  - 以报告或 JSON 行的形式落地到本地（console、jsonl）。
  - 对条目做跨批次的计数汇总（summary）。

已内置的输出端：

- console

- jsonl

- influxdb

- kafka

- mqtt

- prometheus

- summary

使用示例：

	// 初始化函数，注册自定义输出端
	func init() {
		// 注册输出端
		Register("MySink", NewMySink)
	}

	// 实现 Template 接口
	func (b *MySink) GetType() string {
	}

	// Start 消费批次通道
	func (b *MySink) Start(in chan *pkg.EntryBatch) {
	}

	// Stop 停止输出端
	func (b *MySink) Stop() {
	}
*/
package sink
