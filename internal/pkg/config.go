package pkg

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/viper"
)

// SinkConfig 描述一个输出端的配置
type SinkConfig struct {
	Type   string                 `mapstructure:"type"`    // 输出端类型
	Enable bool                   `mapstructure:"enable"`  // 是否启用
	Filter []string               `mapstructure:"filter"`  // 条目过滤表达式
	Para   map[string]interface{} `mapstructure:",remain"` // 自定义配置项
}

// SourceConfig 描述采集源的配置
type SourceConfig struct {
	Type string                 `mapstructure:"type"`    // 采集源类型
	Para map[string]interface{} `mapstructure:",remain"` // 自定义配置项
}

// DecoderConfig 描述十六进制转储解码的配置
type DecoderConfig struct {
	Catalog      string `mapstructure:"catalog"`       // ID名称目录文件 (yaml)，为空则不做命名
	EntryOffset  int    `mapstructure:"entry_offset"`  // 条目区起始偏移，默认 16
	ScanSections bool   `mapstructure:"scan_sections"` // 是否按 magic/size 识别转储中的段
}

// DispatcherConfig 描述分发器的配置
type DispatcherConfig struct {
	DeltaOnly    bool     `mapstructure:"delta_only"`    // 只放行相对上一帧新增的条目
	DeltaDevices []string `mapstructure:"delta_devices"` // 参与增量抑制的设备匹配规则，空表示全部
}

// AdminConfig 描述管理端 HTTP 服务的配置
type AdminConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Port     int    `mapstructure:"port"`
	Mongo    string `mapstructure:"mongo"`    // mongodb 连接串
	Database string `mapstructure:"database"` // mongodb 库名
}

type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
	Async      bool   `mapstructure:"async"` // 标准输出走异步写入器
}

type Config struct {
	Version    string                 `mapstructure:"version"`
	Log        LogConfig              `mapstructure:"log"`
	Source     SourceConfig           `mapstructure:"source"`
	Decoder    DecoderConfig          `mapstructure:"decoder"`
	Dispatcher DispatcherConfig       `mapstructure:"dispatcher"`
	Sinks      []SinkConfig           `mapstructure:"sinks"`
	Admin      AdminConfig            `mapstructure:"admin"`
	Others     map[string]interface{} `mapstructure:",remain"` // 未归类的自定义配置项
}

// InitCommon 用于初始化全局配置
func InitCommon(configDir string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 设置 key 分隔符为 ::，因为默认的 . 会和 IP 地址冲突
	v.AddConfigPath(configDir)
	v.AutomaticEnv() // 读取环境变量
	// 遍历配置目录及其子目录中的所有文件
	_ = filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}

		// 如果是目录则跳过，继续遍历
		if d.IsDir() {
			return nil
		}

		// 获取文件的扩展名
		ext := filepath.Ext(filePath)

		// 只处理 .yaml 或 .yml 文件
		if ext == ".yaml" || ext == ".yml" {
			// 设置配置文件的名称（不包括扩展名）
			baseName := filepath.Base(filePath)
			configName := baseName[0 : len(baseName)-len(ext)]
			v.SetConfigName(configName)

			// 设置配置文件的路径（不需要再使用 AddConfigPath，因为我们已经有完整路径）
			v.SetConfigFile(filePath)

			// 读取并合并配置文件 (会覆盖之前的配置)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		}

		return nil
	})
	var common Config
	// 反序列化到结构体
	if err := v.Unmarshal(&common); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	// 条目区偏移只有显式配置为其他值时才偏离默认值
	if !v.IsSet("decoder::entry_offset") {
		common.Decoder.EntryOffset = DefaultEntryOffset
	}
	return &common, nil
}
