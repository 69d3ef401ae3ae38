package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// Template 定义了所有输出端的通用接口
type Template interface {
	GetType() string            // Step:1 强制要求所有输出端都有一个类型标识
	Start(chan *pkg.EntryBatch) // Step:2 强制要求所有输出端都有一个启动方法
	Stop()                      // Step:3 停止输出端并释放其持有的资源
}

// FactoryFunc 代表一个输出端的工厂函数
type FactoryFunc func(context.Context) (Template, error)

// Factories 全局工厂映射，用于注册不同输出端类型的构造函数  这里面可能包含了没有启用的输出端
var Factories = make(map[string]FactoryFunc)

// Register 注册一个输出端
func Register(sinkType string, factory FactoryFunc) {
	Factories[sinkType] = factory
}

// TemplateCollection 代表输出端集 这里面是所有已启用的输出端
type TemplateCollection map[string]Template

// Start 为每个输出端启动一个消费协程，通道按输出端类型对应
func (c *TemplateCollection) Start(sinkChan pkg.Dispatch2SinkChan) {
	for key, s := range *c {
		go s.Start(sinkChan[key])
	}
}

// New 初始化一个输出端集
var New = func(ctx context.Context) (TemplateCollection, error) {
	collection := make(TemplateCollection)
	// 记录可用的工厂类型
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	pkg.LoggerFromContext(ctx).Debug("Template Factory:", zap.Strings("Factories", factoryTypes))
	for _, sinkConfig := range pkg.ConfigFromContext(ctx).Sinks {
		if sinkConfig.Enable {
			pkg.LoggerFromContext(ctx).Info(fmt.Sprintf("===正在启动Sink: %s===", sinkConfig.Type))
			if factory, exists := Factories[sinkConfig.Type]; exists {
				s, err := factory(ctx)
				if err != nil {
					return nil, fmt.Errorf("初始化输出端 %s 失败: %w", sinkConfig.Type, err)
				}
				collection[sinkConfig.Type] = s
			}
		}
	}
	return collection, nil
}
