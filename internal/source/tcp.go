package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// TcpConfig 包含 TCP 服务端配置信息
type TcpConfig struct {
	WhiteList bool              `mapstructure:"whiteList"`
	IPAlias   map[string]string `mapstructure:"ipAlias"`
	Port      string            `mapstructure:"port"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// TcpSource Template的TcpServer版本实现。
// 设备通过 TCP 长连接推送转储文本，块与块之间以空行分隔，
// 连接关闭时残余数据作为最后一块吐出。
type TcpSource struct {
	ctx         context.Context
	listener    net.Listener
	config      TcpConfig
	activeConns sync.Map // 使用 sync.Map 来存储活跃的连接
}

// blockDelim 转储块之间的分隔串
var blockDelim = []byte("\n\n")

const ringSize = 1 << 16

func init() {
	Register("tcp", NewTcpSource)
}

func NewTcpSource(ctx context.Context) (Template, error) {
	// 1. 获取配置上下文
	config := pkg.ConfigFromContext(ctx)

	// 2. 处理 timeout 字段（从字符串解析为 time.Duration）
	if timeoutStr, ok := config.Source.Para["timeout"].(string); ok {
		duration, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("解析超时配置失败: %s", err)
		}
		config.Source.Para["timeout"] = duration // 替换为 time.Duration
	}

	// 3. 初始化配置结构
	var tcpConfig TcpConfig
	err := mapstructure.Decode(config.Source.Para, &tcpConfig)
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %s", err)
	}
	// 未配置超时则用 5s，保证 ctx 取消能被及时感知
	if tcpConfig.Timeout <= 0 {
		tcpConfig.Timeout = 5 * time.Second
	}

	// 4. 初始化listener
	listener, err := net.Listen("tcp", ":"+tcpConfig.Port)
	if err != nil {
		return nil, fmt.Errorf("tcp监听程序启动失败: %s", err)
	}

	return &TcpSource{
		ctx:      ctx,
		listener: listener,
		config:   tcpConfig,
	}, nil
}

func (t *TcpSource) GetType() string {
	return "tcp"
}

func (t *TcpSource) Start(out chan *pkg.Capture) error {
	log := pkg.LoggerFromContext(t.ctx)

	// Accept 无法感知 ctx，取消时通过关闭监听器让它退出阻塞
	go func() {
		<-t.ctx.Done()
		if err := t.Close(); err != nil {
			log.Warn("关闭 TCP 数据源失败", zap.Error(err))
		}
	}()

	log.Info("TCP服务已启动", zap.String("port", t.config.Port))
	for {
		// 该循环会一直阻塞，直到有新的连接到来
		conn, err := t.listener.Accept()
		if err != nil {
			// 检查错误是否由于监听器已关闭
			if errors.Is(err, net.ErrClosed) {
				log.Info("监听器已关闭，停止接受连接")
				return nil
			}
			log.Error("接受连接失败", zap.Error(err))
			continue
		}
		// 将连接存储到 activeConns
		connID := conn.RemoteAddr().String()
		t.activeConns.Store(connID, conn)
		go t.handleConn(conn, out)
	}
}

// handleConn 按空行分隔从连接中切出转储块，每块封装为一个 Capture
func (t *TcpSource) handleConn(conn net.Conn, out chan *pkg.Capture) {
	log := pkg.LoggerFromContext(t.ctx)
	metrics := pkg.GetPerformanceMetrics()
	connID := conn.RemoteAddr().String()
	defer func() {
		t.activeConns.Delete(connID)
		_ = conn.Close()
	}()

	remote, err := t.identify(conn)
	if err != nil {
		log.Warn("拒绝连接", zap.String("remote", connID), zap.Error(err))
		return
	}
	log.Info("建立连接", zap.String("remote", connID), zap.String("deviceId", remote))

	ring, err := pkg.NewRingBuffer(conn, ringSize)
	if err != nil {
		log.Error("初始化环形缓冲区失败", zap.Error(err))
		return
	}

	for {
		// 每轮刷新读超时，让空闲连接也能周期性回到循环检查 ctx
		if err := conn.SetReadDeadline(time.Now().Add(t.config.Timeout)); err != nil {
			log.Error("设置超时时间失败", zap.String("remote", connID), zap.Error(err))
			return
		}

		block, err := ring.ScanBlock(blockDelim)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Timeout() {
				select {
				case <-t.ctx.Done():
					return
				default:
					continue // 还没等到完整块，继续等
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Info("连接已关闭", zap.String("remote", connID))
			} else {
				metrics.IncMsgErrors("tcp")
				log.Error("读取转储块失败", zap.String("remote", connID), zap.Error(err))
			}
			return
		}
		if len(bytes.TrimSpace(block)) == 0 {
			continue // 连续空行之间的空块
		}
		metrics.IncMsgReceived("tcp")

		capture := &pkg.Capture{
			Source: "tcp",
			Remote: remote,
			Text:   string(block),
			Ts:     time.Now(),
		}
		select {
		case out <- capture:
			metrics.IncMsgProcessed("tcp")
		case <-t.ctx.Done():
			return
		}
	}
}

// identify 解析远程地址，套用 IP 别名并执行白名单检查
func (t *TcpSource) identify(conn net.Conn) (string, error) {
	log := pkg.LoggerFromContext(t.ctx)
	remoteAddrWithPort := conn.RemoteAddr().String()
	remoteAddr, _, err := net.SplitHostPort(remoteAddrWithPort)
	if err != nil {
		return "", fmt.Errorf("无法解析远程地址: %v", remoteAddrWithPort)
	}

	// 处理 IP 别名，无论白名单是否开启，都会影响 deviceId
	deviceId := remoteAddr
	if alias, exists := t.config.IPAlias[remoteAddr]; exists {
		deviceId = alias
		log.Info("已找到 IP 别名", zap.String("remote", remoteAddr), zap.String("deviceId", deviceId))
	}

	// 检查白名单逻辑，如果白名单启用且没有在 ipAlias 中找到匹配，则拒绝连接
	if t.config.WhiteList {
		if _, exists := t.config.IPAlias[remoteAddr]; !exists {
			return "", fmt.Errorf("白名单启用，拒绝连接: %s", remoteAddr)
		}
	}
	return deviceId, nil
}

func (t *TcpSource) Close() error {
	log := pkg.LoggerFromContext(t.ctx)
	log.Info("关闭监听器并停止接收新连接")

	// 关闭监听器，停止接收新连接
	if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("关闭监听程序失败: %s", err)
	}

	// 关闭所有活跃连接
	t.activeConns.Range(func(key, value interface{}) bool {
		conn := value.(net.Conn)
		log.Info("关闭连接", zap.String("remote", conn.RemoteAddr().String()))
		_ = conn.Close()
		return true
	})
	return nil
}
