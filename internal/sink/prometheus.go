package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lwlgate/internal/pkg"
)

// 初始化函数，注册 Prometheus 输出端
func init() {
	// 注册 Prometheus 输出端
	Register("prometheus", NewPrometheusSink)
}

// PrometheusInfo Prometheus 的专属配置
type PrometheusInfo struct {
	Port     int    `mapstructure:"port"`
	Endpoint string `mapstructure:"endpoint"`
}

// PrometheusSink 将条目批次汇总为 Prometheus 指标并暴露抓取端点
type PrometheusSink struct {
	info     PrometheusInfo
	ctx      context.Context
	logger   *zap.Logger
	registry *prometheus.Registry
	server   *http.Server

	entriesTotal *prometheus.CounterVec
	lastOffset   *prometheus.GaugeVec
	batchesTotal *prometheus.CounterVec
	faultsTotal  *prometheus.CounterVec
}

// NewPrometheusSink Step.0 构造函数
func NewPrometheusSink(ctx context.Context) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)
	var info PrometheusInfo
	for _, sinkConfig := range config.Sinks {
		if sinkConfig.Enable && sinkConfig.Type == "prometheus" {
			// 将 map 转换为结构体
			if err := mapstructure.Decode(sinkConfig.Para, &info); err != nil {
				log.Error("Error decoding map to struct", zap.Error(err))
				return nil, fmt.Errorf("[NewPrometheusSink] Error decoding map to struct: %v", err)
			}
		}
	}
	if info.Port == 0 {
		info.Port = 9090
	}
	if info.Endpoint == "" {
		info.Endpoint = "/metrics"
	}

	// 指标集固定，注册到独立的 registry，避免与进程内其他组件冲突
	registry := prometheus.NewRegistry()
	entriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lwl_entries_total",
			Help: "Decoded log entries by id",
		},
		[]string{"id", "name", "source"},
	)
	lastOffset := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lwl_entry_last_offset",
			Help: "Last ring offset observed for an entry id",
		},
		[]string{"id", "source"},
	)
	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lwl_batches_total",
			Help: "Decoded dump batches by source",
		},
		[]string{"source"},
	)
	faultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lwl_faults_total",
			Help: "Fault records by fault type",
		},
		[]string{"type", "source"},
	)
	registry.MustRegister(entriesTotal, lastOffset, batchesTotal, faultsTotal)

	// 启动 HTTP 服务器，暴露 Prometheus 指标
	mux := http.NewServeMux()
	mux.Handle(info.Endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: fmt.Sprintf(":%d", info.Port), Handler: mux}
	go func() {
		log.Info("Starting Prometheus HTTP server", zap.Int("port", info.Port), zap.String("endpoint", info.Endpoint))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Prometheus HTTP server failed to start", zap.Error(err))
		}
	}()

	return &PrometheusSink{
		info:         info,
		ctx:          ctx,
		logger:       log,
		registry:     registry,
		server:       server,
		entriesTotal: entriesTotal,
		lastOffset:   lastOffset,
		batchesTotal: batchesTotal,
		faultsTotal:  faultsTotal,
	}, nil
}

// GetType Step.1
func (p *PrometheusSink) GetType() string {
	return "prometheus"
}

// Start Step.2
func (p *PrometheusSink) Start(in chan *pkg.EntryBatch) {
	p.logger.Info("===PrometheusSink started===")

	for {
		select {
		case <-p.ctx.Done():
			p.Stop()
			p.logger.Info("===PrometheusSink stopped===")
			return
		case batch := <-in:
			err := p.Publish(batch)
			if err != nil {
				pkg.ErrChanFromContext(p.ctx) <- fmt.Errorf("PrometheusSink error occurred: %w", err)
			}
		}
	}
}

// Publish 把一个批次计入指标
func (p *PrometheusSink) Publish(batch *pkg.EntryBatch) error {
	if batch == nil {
		return nil
	}
	p.batchesTotal.WithLabelValues(batch.Source).Inc()

	for _, entry := range batch.Entries {
		if entry == nil {
			continue
		}
		id := strconv.Itoa(int(entry.ID))
		p.entriesTotal.WithLabelValues(id, entry.Name, batch.Source).Inc()
		p.lastOffset.WithLabelValues(id, batch.Source).Set(float64(entry.Offset))
	}

	if batch.Fault != nil {
		p.faultsTotal.WithLabelValues(strconv.Itoa(int(batch.Fault.Type)), batch.Source).Inc()
	}

	p.logger.Debug("[PrometheusSink] 发布指标",
		zap.String("frameId", batch.FrameId),
		zap.Int("entries", len(batch.Entries)))
	return nil
}

// Stop 停止 PrometheusSink，关闭抓取端点
func (p *PrometheusSink) Stop() {
	p.logger.Info("Stopping PrometheusSink")
	if p.server != nil {
		_ = p.server.Close()
	}
}
