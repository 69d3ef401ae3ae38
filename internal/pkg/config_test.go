package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// TestInitCommon 测试 InitCommon 函数
func TestInitCommon(t *testing.T) {
	// 创建一个临时的配置文件目录
	tempDir := t.TempDir()

	// 在临时目录中创建一个测试用的配置文件
	configFilePath := filepath.Join(tempDir, "test_config.yaml")
	configContent := `
version: "1.0.0"
my_custom_config: "custom_value"
log:
  log_path: ./logs
  # MaxSize：在进行切割之前，日志文件的最大大小（以MB为单位）
  max_size: 512
  # MaxBackups：保留旧文件的最大个数
  max_backups: 1000
  # MaxAge：保留旧文件的最大天数
  max_age: 365
  # Compress：是否压缩/归档旧文件
  compress: true
  level: debug
# 采集源相关配置
source:
  type: tcp  # tcp|udp|mqtt|file|stdin
  ip: 0.0.0.0
  port: 8790
  block_delim: "\n\n"

# 解码器相关配置
decoder:
  catalog: ./yaml/catalog.yaml
  entry_offset: 32
  scan_sections: true

# 分发器相关配置
dispatcher:
  delta_only: true
  delta_devices:
    - "tcp/.*"

# 输出端相关配置 可以有多个
sinks:
  - type: console
    enable: true
  - type: influxdb
    enable: false
    filter:
      - ".*"
    url: http://127.0.0.1:8086
    org: "lwl"
    bucket: "entries"

# 管理端相关配置
admin:
  enable: true
  port: 8081
  mongo: "mongodb://localhost:27017"
  database: "lwlgate_admin"
`
	err := os.WriteFile(configFilePath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("创建配置文件失败: %v", err)
	}

	// 调用 InitCommon 进行初始化
	config, err := InitCommon(tempDir)
	if err != nil {
		t.Fatalf("InitCommon 函数调用失败: %v", err)
	}

	// 验证配置项是否正确解析
	if config.Source.Type != "tcp" {
		t.Errorf("期望采集源类型为 'tcp'，但得到的是 %s", config.Source.Type)
	}
	if config.Source.Para["block_delim"] != "\n\n" {
		t.Errorf("期望块分隔串为空行，但得到的是 %q", config.Source.Para["block_delim"])
	}
	if config.Decoder.EntryOffset != 32 {
		t.Errorf("期望条目区偏移为 32，但得到的是 %d", config.Decoder.EntryOffset)
	}
	if !config.Decoder.ScanSections {
		t.Error("期望开启分段识别，但得到的是关闭")
	}
	if !config.Dispatcher.DeltaOnly {
		t.Error("期望开启增量分发，但得到的是关闭")
	}
	if len(config.Sinks) != 2 {
		t.Fatalf("期望 2 个输出端配置，但得到的是 %d", len(config.Sinks))
	}
	if config.Sinks[0].Type != "console" || !config.Sinks[0].Enable {
		t.Errorf("期望第一个输出端为启用的 'console'，但得到的是 %+v", config.Sinks[0])
	}
	if config.Sinks[1].Para["url"] != "http://127.0.0.1:8086" {
		t.Errorf("期望 influxdb 输出端的 url 落入自定义配置项，但得到的是 %v", config.Sinks[1].Para)
	}
	if config.Admin.Port != 8081 {
		t.Errorf("期望管理端端口为 8081，但得到的是 %d", config.Admin.Port)
	}
	if config.Log.LogPath != "./logs" {
		t.Errorf("期望日志路径为 './logs'，但得到的是 %s", config.Log.LogPath)
	}
	if config.Log.MaxSize != 512 {
		t.Errorf("期望日志文件大小为 512 MB，但得到的是 %d", config.Log.MaxSize)
	}
	if config.Log.Level != "debug" {
		t.Errorf("期望日志级别为 'debug'，但得到的是 %s", config.Log.Level)
	}
	if config.Others["my_custom_config"] != "custom_value" {
		t.Errorf("期望自定义配置项 my_custom_config 为 'custom_value'，但得到的是 %s", config.Others["my_custom_config"])
	}
}

// TestInitCommonEntryOffsetDefault 测试条目区偏移的默认值回填
func TestInitCommonEntryOffsetDefault(t *testing.T) {
	// 配置中不写 decoder.entry_offset 时回填默认值
	tempDir := t.TempDir()
	configFilePath := filepath.Join(tempDir, "config.yaml")
	err := os.WriteFile(configFilePath, []byte("source:\n  type: stdin\n"), 0644)
	if err != nil {
		t.Fatalf("创建配置文件失败: %v", err)
	}

	config, err := InitCommon(tempDir)
	if err != nil {
		t.Fatalf("InitCommon 函数调用失败: %v", err)
	}
	if config.Decoder.EntryOffset != DefaultEntryOffset {
		t.Errorf("期望条目区偏移回填为默认值 %d，但得到的是 %d", DefaultEntryOffset, config.Decoder.EntryOffset)
	}

	// 显式写 0 时保留 0，不回填默认值
	zeroDir := t.TempDir()
	zeroFilePath := filepath.Join(zeroDir, "config.yaml")
	err = os.WriteFile(zeroFilePath, []byte("decoder:\n  entry_offset: 0\n"), 0644)
	if err != nil {
		t.Fatalf("创建配置文件失败: %v", err)
	}

	config, err = InitCommon(zeroDir)
	if err != nil {
		t.Fatalf("InitCommon 函数调用失败: %v", err)
	}
	if config.Decoder.EntryOffset != 0 {
		t.Errorf("期望显式配置的条目区偏移 0 被保留，但得到的是 %d", config.Decoder.EntryOffset)
	}
}

// TestInitCommonMissingDir 测试配置目录不存在时的处理
func TestInitCommonMissingDir(t *testing.T) {
	// 目录遍历的错误被丢弃，返回全默认配置
	config, err := InitCommon(filepath.Join(t.TempDir(), "no-such-dir"))
	if err != nil {
		t.Fatalf("期望目录不存在时仍返回默认配置，但得到错误: %v", err)
	}
	if config.Decoder.EntryOffset != DefaultEntryOffset {
		t.Errorf("期望条目区偏移为默认值 %d，但得到的是 %d", DefaultEntryOffset, config.Decoder.EntryOffset)
	}
}

// TestWithConfigAndConfigFromContext 测试 WithConfig 和 ConfigFromContext 函数
func TestWithConfigAndConfigFromContext(t *testing.T) {
	// 创建一个测试配置
	testConfig := &Config{
		Version: "1.0.0",
		Source: SourceConfig{
			Type: "stdin",
		},
	}

	// 创建一个基础上下文
	ctx := context.Background()

	// 将配置存入上下文
	ctxWithConfig := WithConfig(ctx, testConfig)

	// 从上下文中提取配置
	extractedConfig := ConfigFromContext(ctxWithConfig)

	// 检查提取出来的配置是否与原始配置相同
	if extractedConfig.Version != "1.0.0" {
		t.Errorf("期望提取到的配置版本为 '1.0.0'，但得到的是 %s", extractedConfig.Version)
	}

	if extractedConfig.Source.Type != "stdin" {
		t.Errorf("期望采集源类型为 'stdin'，但得到的是 %s", extractedConfig.Source.Type)
	}
}

func TestUnmarshalConfig(t *testing.T) {
	// 创建一个临时的配置文件目录
	tempDir := t.TempDir()

	// 在临时目录中创建一个与config不匹配的配置文件
	configFilePath := filepath.Join(tempDir, "invalid_config.yaml")
	invalidConfigContent := `
source:
  type: "tcp"
  ip: "0.0.0.0"
log:
  log_path: "/var/log/test.log"
  max_size: 10
  max_backups: 3
  max_age: "not_a_number"
  compress: true
  level: "info"
my_custom_config: "custom_value"
` // 无效的数据类型
	err := os.WriteFile(configFilePath, []byte(invalidConfigContent), 0644)
	if err != nil {
		t.Fatalf("创建配置文件失败: %v", err)
	}

	// 调用 InitCommon 进行初始化，预期会出错
	_, err = InitCommon(tempDir)
	if err == nil {
		t.Fatal("期望出现错误，但未得到错误")
	}

	expectedErr := "反序列化配置失败"
	if err.Error()[:len(expectedErr)] != expectedErr {
		t.Errorf("期望错误信息为 '%s'，但得到的是 '%s'", expectedErr, err.Error())
	}
}

// TestConfigFromContextWithoutConfig 测试在上下文中没有配置时的情况
func TestConfigFromContextWithoutConfig(t *testing.T) {
	// 创建一个不包含配置的上下文
	ctx := context.Background()

	// 从上下文中提取配置
	extractedConfig := ConfigFromContext(ctx)

	// 检查提取到的配置是否为默认值（空配置）
	// 注意条目区偏移的默认值只在 InitCommon 中回填，这里应当是 0
	if extractedConfig.Version != "" {
		t.Errorf("期望提取到的版本为空字符串，但得到的是 %s", extractedConfig.Version)
	}
	if extractedConfig.Decoder.EntryOffset != 0 {
		t.Errorf("期望条目区偏移为 0，但得到的是 %d", extractedConfig.Decoder.EntryOffset)
	}
}
