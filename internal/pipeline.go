package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lwlgate/internal/decode"
	"lwlgate/internal/dispatcher"
	"lwlgate/internal/pkg"
	"lwlgate/internal/sink"
	"lwlgate/internal/source"
)

// 各级通道的缓冲深度。转储是低频大块数据，浅缓冲能更早暴露下游堆积。
const chanDepth = 100

// StartPipeline 组装并启动整条处理链: 采集 -> 解码 -> 分发 -> 输出。
// 组件初始化失败或数据源运行失败通过 ErrChan 上抛，由调用方决定退出。
func StartPipeline(ctx context.Context) {
	log := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)

	// 0. 初始化输出端集
	sinks, err := sink.New(pkg.WithLoggerAndModule(ctx, log, "Sink"))
	if err != nil {
		log.Error("failed to create sinks", zap.Error(err))
		pkg.ErrChanFromContext(ctx) <- fmt.Errorf("failed to create sinks: %w", err)
		return
	}

	// 1. 初始化分发器：过滤编译失败属于配置错误，直接上抛
	handler, err := dispatcher.NewHandler(config.Sinks)
	if err != nil {
		log.Error("failed to create dispatcher", zap.Error(err))
		pkg.ErrChanFromContext(ctx) <- fmt.Errorf("failed to create dispatcher: %w", err)
		return
	}
	var tracker *dispatcher.Tracker
	if config.Dispatcher.DeltaOnly {
		tracker, err = dispatcher.NewTracker(&config.Dispatcher)
		if err != nil {
			log.Error("failed to create tracker", zap.Error(err))
			pkg.ErrChanFromContext(ctx) <- fmt.Errorf("failed to create tracker: %w", err)
			return
		}
	}

	// 2. 初始化解码器
	decoder, err := decode.NewDecoder(pkg.WithLoggerAndModule(ctx, log, "Decoder"))
	if err != nil {
		log.Error("failed to create decoder", zap.Error(err))
		pkg.ErrChanFromContext(ctx) <- fmt.Errorf("failed to create decoder: %w", err)
		return
	}

	// 3. 初始化数据源
	s, err := source.New(pkg.WithLoggerAndModule(ctx, log, "Source"))
	if err != nil {
		log.Error("failed to create source", zap.Error(err))
		pkg.ErrChanFromContext(ctx) <- fmt.Errorf("failed to create source: %w", err)
		return
	}

	// 4. 通道接线：每个输出端类型一条独立通道
	captureChan := make(pkg.Source2DecodeChan, chanDepth)
	batchChan := make(pkg.Decode2DispatchChan, chanDepth)
	sinkChan := make(pkg.Dispatch2SinkChan)
	for key := range sinks {
		sinkChan[key] = make(chan *pkg.EntryBatch, chanDepth)
	}

	// 5. 自下而上启动，消费端先就位
	sinks.Start(sinkChan)
	go runDispatch(pkg.WithLoggerAndModule(ctx, log, "Dispatcher"), handler, tracker, batchChan, sinkChan)
	go decoder.Run(captureChan, batchChan)
	go func() {
		if err := s.Start(captureChan); err != nil {
			pkg.LoggerFromContext(ctx).Error("source failed", zap.Error(err))
			pkg.ErrChanFromContext(ctx) <- fmt.Errorf("source failed: %w", err)
		}
	}()
}

// runDispatch 消费解码批次并按输出端路由。
// 单个批次的过滤执行失败只记录日志和指标，不中断管道。
func runDispatch(ctx context.Context, handler *dispatcher.Handler, tracker *dispatcher.Tracker, in chan *pkg.EntryBatch, sinkChan pkg.Dispatch2SinkChan) {
	log := pkg.LoggerFromContext(ctx)
	metrics := pkg.GetPerformanceMetrics()
	log.Info("===Dispatcher Started===")
	for {
		select {
		case <-ctx.Done():
			log.Info("===Dispatcher Stopped===")
			return
		case batch, ok := <-in:
			if !ok {
				log.Info("解码通道已关闭, 分发器退出")
				return
			}
			metrics.IncMsgReceived("dispatcher")

			if tracker != nil {
				batch = tracker.Filter(batch)
				if batch == nil {
					// 整帧与上一帧相同，被增量抑制
					log.Debug("批次被增量抑制")
					continue
				}
			}

			routed, err := handler.Dispatch(batch)
			if err != nil {
				metrics.IncErrorCount()
				metrics.IncMsgErrors("dispatcher")
				log.Error("分发批次失败", zap.Error(err))
				continue
			}
			metrics.IncMsgProcessed("dispatcher")

			for key, sinkBatch := range routed {
				ch, exists := sinkChan[key]
				if !exists {
					// 过滤配置里启用了该类型但没有对应的输出端实例
					log.Warn("没有对应的输出端实例", zap.String("sink", key))
					continue
				}
				select {
				case ch <- sinkBatch:
				case <-ctx.Done():
					log.Info("===Dispatcher Stopped===")
					return
				}
			}
		}
	}
}
