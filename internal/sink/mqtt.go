package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mitchellh/mapstructure"

	"lwlgate/internal/pkg"
)

// 初始化函数，注册 MQTT 输出端
func init() {
	// 注册输出端
	Register("mqtt", NewMqttSink)
}

// MQTTClientInterface 定义了我们需要的 MQTT 客户端方法
type MQTTClientInterface interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// MqttInfo MQTT's specific configuration
type MqttInfo struct {
	Broker         string `mapstructure:"broker"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	ClientID       string `mapstructure:"clientID"`
	Topic          string `mapstructure:"topic"` // Base topic
	QoS            byte   `mapstructure:"qos"`
	Retained       bool   `mapstructure:"retained"`
	KeepAliveSec   uint   `mapstructure:"keepAliveSec"`
	PingTimeoutSec uint   `mapstructure:"pingTimeoutSec"`
}

// MqttSink 实现将批次发布到 MQTT 的逻辑
type MqttSink struct {
	client MQTTClientInterface
	info   MqttInfo
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewMqttSink Step.0 Constructor
func NewMqttSink(ctx context.Context) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)
	var info MqttInfo
	found := false

	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "mqtt" {
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				log.Error("Failed to decode MQTT config", zap.Error(err), zap.Any("config", sinkConfig.Para))
				return nil, fmt.Errorf("failed to decode MQTT config: %w", err)
			}
			found = true
			break
		}
	}

	if !found {
		log.Warn("No enabled MQTT sink configuration found")
		return nil, fmt.Errorf("no enabled MQTT sink configuration found")
	}

	if info.Broker == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'broker' is required")
	}
	if info.Topic == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'topic' is required")
	}
	if info.Port == 0 {
		info.Port = 1883 // Default MQTT port
	}
	if info.ClientID == "" {
		info.ClientID = fmt.Sprintf("lwlgate-mqtt-%d", time.Now().UnixNano())
		log.Info("MQTT ClientID not set, generated default", zap.String("clientID", info.ClientID))
	}
	if info.KeepAliveSec == 0 {
		info.KeepAliveSec = 60
	}
	if info.PingTimeoutSec == 0 {
		info.PingTimeoutSec = 2
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", info.Broker, info.Port))
	opts.SetClientID(info.ClientID)
	opts.SetUsername(info.Username)
	opts.SetPassword(info.Password)
	opts.SetKeepAlive(time.Duration(info.KeepAliveSec) * time.Second)
	opts.SetPingTimeout(time.Duration(info.PingTimeoutSec) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Connection logging
	opts.OnConnect = func(client mqtt.Client) {
		log.Info("MQTT connected", zap.String("broker", info.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Error("MQTT connection lost", zap.Error(err), zap.String("broker", info.Broker))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Error("MQTT connection failed", zap.Error(token.Error()), zap.String("broker", info.Broker))
		return nil, fmt.Errorf("mqtt connection failed for %s: %w", info.Broker, token.Error())
	}

	sinkCtx, cancel := context.WithCancel(ctx)

	return &MqttSink{
		client: client,
		info:   info,
		ctx:    sinkCtx,
		cancel: cancel,
		logger: log.With(zap.String("sink_type", "mqtt"), zap.String("broker", info.Broker), zap.String("base_topic", info.Topic)),
	}, nil
}

// GetType Step.1
func (b *MqttSink) GetType() string {
	return "mqtt"
}

// Start Step.2
func (b *MqttSink) Start(in chan *pkg.EntryBatch) {
	metrics := pkg.GetPerformanceMetrics()
	b.logger.Info("===MqttSink Started===")

OuterLoop:
	for {
		select {
		case <-b.ctx.Done():
			b.logger.Info("===MqttSink Stopping===")
			break OuterLoop
		case batch, ok := <-in:
			if !ok {
				b.logger.Info("Input channel closed, stopping MqttSink")
				break OuterLoop
			}
			if batch == nil || (len(batch.Entries) == 0 && batch.Fault == nil) {
				b.logger.Debug("Skipping nil or empty batch")
				continue
			}

			metrics.IncMsgReceived("mqtt_sink")
			publishTimer := metrics.NewTimer("mqtt_sink_publish")

			// 主题末段用设备标识，没有远端标识时退化为采集源类型
			device := batch.Remote
			if device == "" {
				device = batch.Source
			}
			if device == "" {
				device = "unknown_device"
			}
			topic := strings.TrimSuffix(b.info.Topic, "/") + "/" + device

			jsonData, err := json.Marshal(batch)
			if err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("mqtt_sink_json_marshal")
				b.logger.Error("Failed to marshal batch to JSON for MQTT",
					zap.Error(err),
					zap.String("topic", topic),
					zap.String("frameId", batch.FrameId))
				publishTimer.Stop()
				continue
			}

			token := b.client.Publish(topic, b.info.QoS, b.info.Retained, jsonData)
			// Fire-and-forget：QoS>0 的投递确认交给 paho 的重连与离线缓冲，
			// 不在发送路径上逐条 Wait
			_ = token
			b.logger.Debug("Message prepared for MQTT", zap.String("topic", topic), zap.Int("payload_size", len(jsonData)))

			duration := publishTimer.StopAndLog(b.logger)
			metrics.IncMsgProcessed("mqtt_sink")
			b.logger.Debug("Batch published to MQTT",
				zap.Int("entries", len(batch.Entries)),
				zap.Duration("duration", duration),
				zap.String("frameId", batch.FrameId))
		}
	}
	b.logger.Info("===MqttSink Finished===")
	if b.client.IsConnected() {
		b.client.Disconnect(250) // Graceful disconnect with 250ms timeout
	}
}

// Stop 停止 MqttSink
func (b *MqttSink) Stop() {
	b.logger.Info("Requesting stop for MqttSink via context cancel")
	if b.cancel != nil {
		b.cancel()
	}
	// Disconnect is handled at the end of Start's loop to ensure messages are processed.
}
