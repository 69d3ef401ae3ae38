package source

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// MQTTClient 定义一个接口，包含需要的 MQTT 客户端方法
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token
	IsConnected() bool
}

// MqttConfig 包含 MQTT 配置信息
type MqttConfig struct {
	Broker               string          `mapstructure:"broker"`
	ClientID             string          `mapstructure:"clientID"`
	Username             string          `mapstructure:"username"`
	Password             string          `mapstructure:"password"`
	MaxReconnectInterval time.Duration   `mapstructure:"maxReconnectInterval"`
	Topics               map[string]byte `mapstructure:"topics"` // 主题和 QoS 的 map
}

// MqttSource Template的Mqtt版本实现，设备把转储文本发布到订阅的主题上
type MqttSource struct {
	ctx    context.Context
	config *MqttConfig
	Client MQTTClient // MQTT 客户端
	out    chan *pkg.Capture
}

func init() {
	Register("mqtt", NewMqttSource)
}

func (m *MqttSource) GetType() string {
	return "mqtt"
}

func (m *MqttSource) Start(out chan *pkg.Capture) error {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	m.out = out
	// 检查客户端是否已经连接
	if token := m.Client.Connect(); token.Wait() && token.Error() != nil {
		metrics.IncErrorCount()
		metrics.IncMsgErrors("mqtt_connect")
		pkg.ErrChanFromContext(m.ctx) <- fmt.Errorf("MQTT连接失败: %v", token.Error())
	}

	// 订阅多个话题
	token := m.Client.SubscribeMultiple(m.config.Topics, m.messagePubHandler)
	token.Wait() // 等待订阅完成
	if err := token.Error(); err != nil {
		metrics.IncErrorCount()
		metrics.IncMsgErrors("mqtt_subscribe")
		pkg.ErrChanFromContext(m.ctx) <- fmt.Errorf("MQTT订阅失败: %v", err)
	}

	logger.Info("MQTT订阅成功，正在监听消息")

	// 消息由回调推送，这里挂起等待 ctx 取消
	<-m.ctx.Done()
	return m.Close()
}

func (m *MqttSource) Close() error {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	// 关闭MQTT客户端，优雅关闭
	if m.Client != nil && m.Client.IsConnected() {
		m.Client.Disconnect(250)
		logger.Info("MQTT连接已断开")
		return nil
	}
	metrics.IncErrorCount()
	return fmt.Errorf("MQTT客户端未连接")
}

func NewMqttSource(ctx context.Context) (Template, error) {
	// 1. 初始化配置文件
	config := pkg.ConfigFromContext(ctx)
	// 2. 处理 maxreconnectinterval 字段（从字符串解析为 time.Duration）
	if timeoutStr, ok := config.Source.Para["maxreconnectinterval"].(string); ok {
		duration, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("解析超时配置失败: %s", err)
		}
		config.Source.Para["maxreconnectinterval"] = duration // 替换为 time.Duration
	}
	var mqttConfig MqttConfig
	err := mapstructure.Decode(config.Source.Para, &mqttConfig)
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %s", err)
	}
	// 3. 创建 MQTT Template 实例
	mqttSource := &MqttSource{
		ctx:    ctx,
		config: &mqttConfig,
	}

	// 4. 创建一个新的 MQTT 客户端
	opts := mqtt.NewClientOptions()
	opts.AddBroker(mqttConfig.Broker)
	opts.SetClientID(mqttConfig.ClientID)
	opts.SetUsername(mqttConfig.Username) // 如果需要用户名和密码
	opts.SetPassword(mqttConfig.Password) // 如果需要用户名和密码

	// 设置自动重连
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(mqttConfig.MaxReconnectInterval) // 设置重连间隔时间

	opts.OnConnect = mqttSource.connectHandler
	opts.OnConnectionLost = mqttSource.connectLostHandler

	// 创建 MQTT 客户端
	client := mqtt.NewClient(opts)
	mqttSource.Client = client
	return mqttSource, nil
}

func (m *MqttSource) messagePubHandler(_ mqtt.Client, msg mqtt.Message) {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	// 创建消息处理计时器
	timer := metrics.NewTimer("mqtt_message_process")

	// 记录接收到的消息
	metrics.IncMsgReceived("mqtt")

	logger.Debug("Received message", zap.String("topic", msg.Topic()), zap.Int("bytes", len(msg.Payload())))

	capture := &pkg.Capture{
		Source: "mqtt",
		Remote: msg.Topic(),
		Text:   string(msg.Payload()),
		Ts:     time.Now(),
	}
	select {
	case m.out <- capture:
	case <-m.ctx.Done():
		timer.Stop()
		return
	}

	// 记录成功处理的消息
	metrics.IncMsgProcessed("mqtt")

	// 停止计时器
	duration := timer.Stop()
	logger.Debug("消息处理完成",
		zap.Duration("duration", duration),
		zap.String("topic", msg.Topic()))
}

// 连接成功回调
func (m *MqttSource) connectHandler(client mqtt.Client) {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	// client编译器不允许使用未使用的参数，所以这里使用下划线忽略
	_ = client
	metrics.IncMsgReceived("mqtt_connect")
	logger.Info("成功连接至MQTT broker")
}

// 连接丢失回调
func (m *MqttSource) connectLostHandler(client mqtt.Client, err error) {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics() // 获取性能指标实例

	// client编译器不允许使用未使用的参数，所以这里使用下划线忽略
	_ = client
	metrics.IncErrorCount()
	metrics.IncMsgErrors("mqtt_connection_lost")
	logger.Error("Connect lost", zap.Error(err))
	// 这里Paho会自动重连，不需要手动重连
}
