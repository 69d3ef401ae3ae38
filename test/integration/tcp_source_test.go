package integration

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zaptest"

	"lwlgate/internal/pkg"
	"lwlgate/internal/source"
)

// sampleDump 是 22 字节的标准转储样例: 16 字节段头 + 6 个条目字节
const sampleDump = "0000: 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f 10\n0010: aa bb"

// TestTCPSourceIntegration 测试TCP数据源从连接接收到按空行切块产出Capture的完整流程
func TestTCPSourceIntegration(t *testing.T) {
	// 跳过长时间运行测试，如果添加-short参数
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	Convey("测试TCP数据源切块", t, func() {
		// 1. 创建测试配置
		testPort := "18889" // 使用固定的高端口
		testTCPAddr := "127.0.0.1:" + testPort

		config := &pkg.Config{
			Source: pkg.SourceConfig{
				Type: "tcp",
				Para: map[string]interface{}{
					"port":      testPort,
					"whiteList": false,
					"timeout":   "2s",
				},
			},
		}

		// 2. 设置上下文
		logger := zaptest.NewLogger(t)
		ctx, cancel := context.WithCancel(context.Background())
		ctx = pkg.WithLogger(ctx, logger)
		ctx = pkg.WithConfig(ctx, config)
		ctx = InitErrorChannel(ctx)

		// 确保测试结束时取消上下文
		Reset(func() {
			cancel()
		})

		Convey("当创建并启动TCP数据源", func() {
			// 创建输出通道
			captureChan := make(chan *pkg.Capture, 10)

			tcpSource, err := source.New(ctx)
			So(err, ShouldBeNil)

			// 启动数据源
			go func() { _ = tcpSource.Start(captureChan) }()

			// 等待服务器启动
			time.Sleep(500 * time.Millisecond)

			Convey("当发送一段以空行结尾的转储文本", func() {
				err = sendTCPDump(testTCPAddr, []byte(sampleDump+"\n\n"))
				So(err, ShouldBeNil)

				// 等待处理结果
				var capture *pkg.Capture
				select {
				case capture = <-captureChan:
					// 成功接收到数据
				case <-time.After(3 * time.Second):
					So(true, ShouldBeFalse) // 报告超时
				}

				// 验证结果
				Convey("应该切出完整的转储块", func() {
					So(capture, ShouldNotBeNil)
					So(capture.Source, ShouldEqual, "tcp")
					So(capture.Remote, ShouldEqual, "127.0.0.1")
					So(capture.Text, ShouldEqual, sampleDump)
				})
			})
		})
	})
}

// TestMultipleTCPClients 测试多个TCP客户端同时连接
func TestMultipleTCPClients(t *testing.T) {
	// 跳过长时间运行测试，如果添加-short参数
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	Convey("测试多个TCP客户端", t, func() {
		// 设置测试环境
		logger := zaptest.NewLogger(t)

		// 1. 创建测试配置
		testPort := "18890" // 使用固定的高端口
		testTCPAddr := "127.0.0.1:" + testPort

		config := &pkg.Config{
			Source: pkg.SourceConfig{
				Type: "tcp",
				Para: map[string]interface{}{
					"port":      testPort,
					"whiteList": false,
					"timeout":   "2s",
				},
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		ctx = pkg.WithLogger(ctx, logger)
		ctx = pkg.WithConfig(ctx, config)
		ctx = InitErrorChannel(ctx)

		Reset(func() {
			cancel() // 确保测试完成后取消上下文
		})

		Convey("创建并启动TCP数据源", func() {
			// 创建输出通道
			captureChan := make(chan *pkg.Capture, 100)

			tcpSource, err := source.New(ctx)
			So(err, ShouldBeNil)

			// 启动数据源
			go func() { _ = tcpSource.Start(captureChan) }()

			// 等待服务器启动
			time.Sleep(500 * time.Millisecond)

			Convey("并发发送多个客户端的转储", func() {
				// 使用WaitGroup等待所有协程完成
				var wg sync.WaitGroup
				var errMutex sync.Mutex
				var sendErr error

				// 定义客户端数量
				const clientCount = 5

				// 并发发送数据
				for i := 0; i < clientCount; i++ {
					wg.Add(1)
					go func(idx int) {
						defer wg.Done()

						// 每个客户端发送不同的转储
						dump := fmt.Sprintf("0000: %02x 02 03 04\n\n", idx+1)

						err := sendTCPDump(testTCPAddr, []byte(dump))
						if err != nil {
							errMutex.Lock()
							sendErr = err
							errMutex.Unlock()
						}
					}(i)
				}

				// 等待所有发送完成
				wg.Wait()

				// 检查是否有发送错误
				So(sendErr, ShouldBeNil)

				// 计数收到的转储块
				receivedCount := 0
				timeout := time.After(3 * time.Second)

				// 接收并计数
				for receivedCount < clientCount {
					select {
					case <-captureChan:
						receivedCount++
					case <-timeout:
						// 如果超时，退出循环
						t.Logf("收到 %d 个转储块，少于预期的 %d 个", receivedCount, clientCount)
						break
					}
				}

				// 验证结果
				So(receivedCount, ShouldEqual, clientCount)
			})
		})
	})
}

// TestTCPLongConnection 测试TCP长连接连续推送转储
func TestTCPLongConnection(t *testing.T) {
	// 跳过长时间运行测试，如果添加-short参数
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	Convey("测试TCP长连接推送", t, func() {
		// 设置测试环境
		logger := zaptest.NewLogger(t)

		// 1. 创建测试配置
		testPort := "18891" // 使用固定的高端口
		testTCPAddr := "127.0.0.1:" + testPort

		config := &pkg.Config{
			Source: pkg.SourceConfig{
				Type: "tcp",
				Para: map[string]interface{}{
					"port":      testPort,
					"whiteList": false,
					"timeout":   "30s", // 长连接超时时间设置较长
				},
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		ctx = pkg.WithLogger(ctx, logger)
		ctx = pkg.WithConfig(ctx, config)
		ctx = InitErrorChannel(ctx)

		Reset(func() {
			cancel() // 确保测试完成后取消上下文
		})

		Convey("创建并启动TCP数据源", func() {
			// 创建输出通道
			captureChan := make(chan *pkg.Capture, 100)

			tcpSource, err := source.New(ctx)
			So(err, ShouldBeNil)

			// 启动数据源
			go func() { _ = tcpSource.Start(captureChan) }()

			// 等待服务器启动
			time.Sleep(500 * time.Millisecond)

			Convey("使用长连接发送多个转储块", func() {
				// 建立长连接
				conn, err := net.Dial("tcp", testTCPAddr)
				So(err, ShouldBeNil)
				defer conn.Close()

				// 发送转储次数
				const sendCount = 10

				// 发送多个转储块
				for i := 0; i < sendCount; i++ {
					// 每次发送不同的转储
					dump := fmt.Sprintf("0000: %02x\n\n", i+1)

					_, err := conn.Write([]byte(dump))
					So(err, ShouldBeNil)

					// 小延迟，确保数据能够被处理
					time.Sleep(50 * time.Millisecond)
				}

				// 统计收到的转储块
				receivedCount := 0
				receivedTexts := make(map[string]bool)
				timeout := time.After(3 * time.Second)

				// 接收并验证切出的块
				for receivedCount < sendCount {
					select {
					case capture := <-captureChan:
						receivedCount++

						// 验证转储块
						So(capture, ShouldNotBeNil)
						So(capture.Remote, ShouldEqual, "127.0.0.1")
						receivedTexts[capture.Text] = true

					case <-timeout:
						// 如果超时，退出循环
						break
					}
				}

				// 验证结果 - 收到足够数量的转储块
				So(receivedCount, ShouldEqual, sendCount)

				// 验证每个转储块都完整到达
				for i := 0; i < sendCount; i++ {
					So(receivedTexts[fmt.Sprintf("0000: %02x", i+1)], ShouldBeTrue)
				}
			})
		})
	})
}

// TestTCPFragmentedDump 测试TCP数据源拼接分片到达的转储
func TestTCPFragmentedDump(t *testing.T) {
	// 跳过长时间运行测试，如果添加-short参数
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	Convey("测试TCP数据源处理分片数据", t, func() {
		// 设置测试环境
		logger := zaptest.NewLogger(t)

		// 1. 创建测试配置
		testPort := "18892" // 使用固定的高端口
		testTCPAddr := "127.0.0.1:" + testPort

		config := &pkg.Config{
			Source: pkg.SourceConfig{
				Type: "tcp",
				Para: map[string]interface{}{
					"port":      testPort,
					"whiteList": false,
					"timeout":   "5s",
				},
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		ctx = pkg.WithLogger(ctx, logger)
		ctx = pkg.WithConfig(ctx, config)
		ctx = InitErrorChannel(ctx)

		Reset(func() {
			cancel() // 确保测试完成后取消上下文
		})

		Convey("创建并启动TCP数据源", func() {
			// 创建输出通道
			captureChan := make(chan *pkg.Capture, 10)

			tcpSource, err := source.New(ctx)
			So(err, ShouldBeNil)

			// 启动数据源
			go func() { _ = tcpSource.Start(captureChan) }()

			// 等待服务器启动
			time.Sleep(500 * time.Millisecond)

			Convey("分两次发送一个转储块", func() {
				// 建立TCP连接
				conn, err := net.Dial("tcp", testTCPAddr)
				So(err, ShouldBeNil)
				defer conn.Close()

				payload := []byte(sampleDump + "\n\n")

				// 第一次发送前半部分，故意切在一行中间
				_, err = conn.Write(payload[:10])
				So(err, ShouldBeNil)

				// 短暂延迟，模拟网络延迟
				time.Sleep(100 * time.Millisecond)

				// 第二次发送剩余数据
				_, err = conn.Write(payload[10:])
				So(err, ShouldBeNil)

				// 等待处理结果
				var capture *pkg.Capture
				select {
				case capture = <-captureChan:
					// 成功接收到数据
				case <-time.After(3 * time.Second):
					So(true, ShouldBeFalse) // 报告超时
				}

				// 验证结果
				Convey("应该拼出完整的转储块", func() {
					So(capture, ShouldNotBeNil)
					So(capture.Text, ShouldEqual, sampleDump)
				})
			})
		})
	})
}

// sendTCPDump 通过一条短连接发送转储文本
func sendTCPDump(addr string, data []byte) error {
	// 建立TCP连接
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("连接TCP地址失败: %v", err)
	}
	defer conn.Close()

	// 写入数据
	_, err = conn.Write(data)
	if err != nil {
		return fmt.Errorf("写入TCP数据失败: %v", err)
	}

	return nil
}
