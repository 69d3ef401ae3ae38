package decode

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog 是条目 ID 到可读名称的映射表。
// 目录只用于为下游输出补充名称，文本报告的格式不受它影响。
type Catalog map[uint8]string

// catalogFile 是目录 yaml 文件的根结构
type catalogFile struct {
	IDs map[uint8]string `yaml:"ids"`
}

// LoadCatalog 从 yaml 文件加载目录。路径为空时返回空目录，不是错误。
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return Catalog{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录文件失败: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog 解析 yaml 格式的目录内容
func ParseCatalog(raw []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("解析目录文件失败: %w", err)
	}
	if file.IDs == nil {
		return Catalog{}, nil
	}
	return Catalog(file.IDs), nil
}

// Name 返回 ID 对应的名称，没有登记时返回空串
func (c Catalog) Name(id uint8) string {
	return c[id]
}

// Marshal 把目录导出为 yaml 文本
func (c Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(catalogFile{IDs: c})
}
