package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// UdpConfig 包含 UDP 配置信息
type UdpConfig struct {
	IPAlias map[string]string `mapstructure:"ipAlias"`
	Port    string            `mapstructure:"port"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// UdpSource Template的Udp版本实现，每个数据报视作一份完整转储
type UdpSource struct {
	ctx    context.Context
	config *UdpConfig
	conn   *net.UDPConn
}

func init() {
	Register("udp", NewUdpSource)
}

func NewUdpSource(ctx context.Context) (Template, error) {
	// 1. 初始化配置文件
	config := pkg.ConfigFromContext(ctx)
	// 2. 处理 timeout 字段（从字符串解析为 time.Duration）
	if timeoutStr, ok := config.Source.Para["timeout"].(string); ok {
		duration, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("解析超时配置失败: %s", err)
		}
		config.Source.Para["timeout"] = duration // 替换为 time.Duration
	}
	var udpConfig UdpConfig
	err := mapstructure.Decode(config.Source.Para, &udpConfig)
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %s", err)
	}
	// 未配置超时则用 5s，保证 ctx 取消能被及时感知
	if udpConfig.Timeout <= 0 {
		udpConfig.Timeout = 5 * time.Second
	}

	return &UdpSource{
		ctx:    ctx,
		config: &udpConfig,
	}, nil
}

func (u *UdpSource) GetType() string {
	return "udp"
}

func (u *UdpSource) Start(out chan *pkg.Capture) error {
	log := pkg.LoggerFromContext(u.ctx)
	metrics := pkg.GetPerformanceMetrics()

	// 指定UDP地址
	addrToListen, err := net.ResolveUDPAddr("udp", ":"+u.config.Port)
	if err != nil {
		return fmt.Errorf("解析UDP地址失败: %s", err)
	}

	// 监听UDP连接
	u.conn, err = net.ListenUDP("udp", addrToListen)
	if err != nil {
		return fmt.Errorf("UDP监听程序启动失败: %s", err)
	}

	log.Info("UDP服务已启动", zap.String("port", u.config.Port))

	// 不断接收数据报
	for {
		select {
		case <-u.ctx.Done():
			log.Info("UDP 数据源停止中...")
			return u.Close()
		default:
			// 在每次读取之前设置读取超时
			if err := u.conn.SetReadDeadline(time.Now().Add(u.config.Timeout)); err != nil {
				log.Error("Error setting read deadline", zap.Error(err))
				continue
			}

			buffer := pkg.BytesPoolInstance.Get()
			n, addr, err := u.conn.ReadFromUDP(buffer)
			if err != nil {
				pkg.BytesPoolInstance.Put(buffer)
				// 检查是否为超时错误
				var opErr *net.OpError
				if errors.As(err, &opErr) && opErr.Timeout() {
					continue // 继续等待新的数据报
				}
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				log.Error("Error reading from UDP", zap.Error(err))
				return err
			}
			metrics.IncMsgReceived("udp")
			text := string(buffer[:n])
			pkg.BytesPoolInstance.Put(buffer)

			// 处理 IP 别名，命中的别名会成为 Capture 的 Remote 标识
			remote := addr.String()
			if alias, exists := u.config.IPAlias[addr.IP.String()]; exists {
				remote = alias
				log.Debug("已找到 IP 别名", zap.String("remote", addr.String()), zap.String("deviceId", alias))
			}

			capture := &pkg.Capture{
				Source: "udp",
				Remote: remote,
				Text:   text,
				Ts:     time.Now(),
			}
			select {
			case out <- capture:
				metrics.IncMsgProcessed("udp")
			case <-u.ctx.Done():
				return u.Close()
			}
		}
	}
}

func (u *UdpSource) Close() error {
	pkg.LoggerFromContext(u.ctx).Info("UDP连接正在关闭...")
	if u.conn == nil {
		return nil
	}
	if err := u.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("UDP连接关闭失败: %s", err)
	}
	return nil
}
