package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lwlgate/internal"
	"lwlgate/internal/admin/db"
	"lwlgate/internal/admin/router"
	"lwlgate/internal/pkg"
)

// syncLog 安全地同步日志，忽略与标准输出相关的错误
func syncLog(log *zap.Logger) {
	// Windows平台上，同步标准输出时会出现"The handle is invalid"错误
	// 这是zap的已知问题，我们可以安全地忽略它
	err := log.Sync()
	if err != nil && !strings.Contains(err.Error(), "The handle is invalid") {
		log.Error("程序退出时同步日志失败", zap.Error(err))
	}
}

// startAdminServer 在守护进程内起管理端 HTTP 服务，返回关闭函数
func startAdminServer(log *zap.Logger, cfg *pkg.AdminConfig) (func(), error) {
	if err := db.InitMongoDB(cfg.Mongo, cfg.Database); err != nil {
		return nil, fmt.Errorf("无法初始化 MongoDB: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router.SetupRouter(),
	}
	go func() {
		log.Info("管理端服务已启动", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("管理端服务异常退出", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("管理端服务关闭失败", zap.Error(err))
		}
		db.CloseMongoDB()
	}, nil
}

func main() {

	// 1. 初始化common yaml
	config, err := pkg.InitCommon("yaml")
	if err != nil {
		fmt.Printf("[main] 加载配置失败: %s", err)
		return
	}

	// 2. 初始化log
	log := pkg.NewLogger(&config.Log)

	log.Info("程序启动", zap.String("version", config.Version))
	log.Info("配置信息", zap.Any("common", config))
	log.Info("==== 初始化流程开始 ====")

	// 3. 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 10) // 创建一个只写的全局错误通道, 缓存大小为10
	ctx = pkg.WithErrChan(ctx, errChan)
	// 将config挂载到ctx上
	ctxWithConfig := pkg.WithConfig(ctx, config)
	// 将logger挂载到ctx上
	ctxWithConfigAndLogger := pkg.WithLogger(ctxWithConfig, log)

	// 4. 按需启动管理端
	stopAdmin := func() {}
	if config.Admin.Enable {
		stopAdmin, err = startAdminServer(log, &config.Admin)
		if err != nil {
			log.Error("启动管理端失败", zap.Error(err))
			cancel()
			return
		}
	}

	printStartupLogo()
	// 5. 启动管道
	internal.StartPipeline(ctxWithConfigAndLogger)

	// 定期把运行指标写入日志
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pkg.GetPerformanceMetrics().LogMetrics(log)
			}
		}
	}()

	// 6. 主线程监听终止信号
	si := make(chan os.Signal, 1)
	signal.Notify(si, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-si:
			log.Info("Caught exit signal, so close channel chDone.")
			log.Info("Exiting lwlgate...")
			cancel()                    // 取消上下文
			stopAdmin()                 // 关闭管理端
			time.Sleep(1 * time.Second) // 给其他协程时间处理取消
			syncLog(log)                // 使用安全的同步函数
			pkg.CloseLogger()           // 停止异步写入器，刷出残留日志
			os.Exit(0)                  // 安全退出程序
		case bad := <-errChan:
			log.Error("Error occurred", zap.Error(bad))
			cancel() // 取消上下文
			stopAdmin()
			// 等待其他可能的错误
			go func() {
				for err := range errChan {
					log.Error("Error occurred before shutdown", zap.Error(err))
				}
			}()
			time.Sleep(1 * time.Second) // 确保日志输出完整
			syncLog(log)                // 使用安全的同步函数
			pkg.CloseLogger()           // 停止异步写入器，刷出残留日志
			os.Exit(1)
		}
	}
}

func printStartupLogo() {
	logo := `
		 _     __        __ _       ____    _  _____  _____
		| |    \ \      / /| |     / ___|  / \|_   _|| ____|
		| |     \ \ /\ / / | |    | |  _  / _ \ | |  |  _|
		| |___   \ V  V /  | |___ | |_| |/ ___ \| |  | |___
		|_____|   \_/\_/   |_____| \____/_/   \_\_|  |_____|

`
	fmt.Print(logo)
}
