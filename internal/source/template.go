package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// Template 是所有数据源的通用接口
type Template interface {
	Start(chan *pkg.Capture) error // 启动数据源，将抓取到的转储推入通道
	GetType() string
}

// FactoryFunc 代表一个数据源的工厂函数, 返回数据源实例
type FactoryFunc func(ctx context.Context) (source Template, err error)

// Factories 全局工厂映射，用于注册不同数据源类型的构造函数
var Factories = make(map[string]FactoryFunc)

// Register 注册一个数据源
func Register(sourceType string, factory FactoryFunc) {
	Factories[sourceType] = factory
}

// New 运行指定类型的数据源
var New = func(ctx context.Context) (source Template, err error) {
	config := pkg.ConfigFromContext(ctx)
	// 记录可用的工厂类型
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	pkg.LoggerFromContext(ctx).Debug("Template Factory:", zap.Strings("Factories", factoryTypes))
	pkg.LoggerFromContext(ctx).Debug(fmt.Sprintf("===正在启动Source: %s===", config.Source.Type))
	factory, ok := Factories[config.Source.Type]
	if !ok {
		return nil, fmt.Errorf("未找到数据源类型: %s", config.Source.Type)
	}
	// 直接调用工厂函数
	var s Template
	s, err = factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化数据源失败: %v", err)
	}
	return s, nil
}
