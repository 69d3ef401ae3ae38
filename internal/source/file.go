package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// FileConfig 包含 file 数据源配置信息
type FileConfig struct {
	Path    string `mapstructure:"path"`    // 转储文件或目录
	Pattern string `mapstructure:"pattern"` // 目录扫描时的文件名通配，默认 *
}

// FileSource Template的文件版本实现。
// path 指向单个转储文件或一个目录，目录下每个匹配的文件视作一份转储。
type FileSource struct {
	ctx    context.Context
	config *FileConfig
}

func init() {
	Register("file", NewFileSource)
}

func NewFileSource(ctx context.Context) (Template, error) {
	config := pkg.ConfigFromContext(ctx)
	var fileConfig FileConfig
	err := mapstructure.Decode(config.Source.Para, &fileConfig)
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %s", err)
	}
	if fileConfig.Path == "" {
		return nil, fmt.Errorf("file数据源缺少 path 配置")
	}
	if fileConfig.Pattern == "" {
		fileConfig.Pattern = "*"
	}
	return &FileSource{ctx: ctx, config: &fileConfig}, nil
}

func (f *FileSource) GetType() string {
	return "file"
}

func (f *FileSource) Start(out chan *pkg.Capture) error {
	log := pkg.LoggerFromContext(f.ctx)

	info, err := os.Stat(f.config.Path)
	if err != nil {
		return fmt.Errorf("无法访问转储路径: %s", err)
	}

	if !info.IsDir() {
		return f.emit(out, f.config.Path)
	}

	entries, err := os.ReadDir(f.config.Path)
	if err != nil {
		return fmt.Errorf("读取转储目录失败: %s", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(f.config.Pattern, entry.Name())
		if err != nil {
			return fmt.Errorf("文件名通配不合法: %s", err)
		}
		if !matched {
			continue
		}
		select {
		case <-f.ctx.Done():
			return nil
		default:
		}
		if err := f.emit(out, filepath.Join(f.config.Path, entry.Name())); err != nil {
			// 单个文件失败不中断整个目录
			pkg.GetPerformanceMetrics().IncMsgErrors("file")
			log.Error("读取转储文件失败", zap.String("file", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

// emit 读取一个转储文件并推入通道
func (f *FileSource) emit(out chan *pkg.Capture, path string) error {
	log := pkg.LoggerFromContext(f.ctx)
	metrics := pkg.GetPerformanceMetrics()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	metrics.IncMsgReceived("file")
	log.Info("已读取转储文件", zap.String("file", path), zap.Int("bytes", len(data)))

	capture := &pkg.Capture{
		Source: "file",
		Remote: path,
		Text:   string(data),
		Ts:     time.Now(),
	}
	select {
	case out <- capture:
		metrics.IncMsgProcessed("file")
	case <-f.ctx.Done():
	}
	return nil
}
