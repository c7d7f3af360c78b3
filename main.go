package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/app"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "config.yaml 路径，BAM 定义位于同目录的 data/bam_config.yaml")
	flag.Parse()

	cfgManager, err := config.NewConfigManager(*configPath)
	if err != nil {
		log.Fatalf("创建配置管理器失败: %v", err)
	}
	cfg := cfgManager.GetConfig()

	log.SetDefaultLog(&log.LogCfg{
		Filepath:    cfg.Log.Filepath,
		Level:       cfg.Log.Level,
		MaxSize:     cfg.Log.MaxSize,
		MaxAge:      cfg.Log.MaxAge,
		MaxBackups:  cfg.Log.MaxBackups,
		Compress:    cfg.Log.Compress,
		Development: cfg.Log.Development,
	})
	defer func() {
		_ = log.Sync()
	}()

	application, err := app.New(cfgManager)
	if err != nil {
		log.Fatalf("build app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 退出时 monitoring 先保存状态，再关闭连接
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Close(shutdownCtx); err != nil {
			log.Errorf("close application: %v", err)
		}
		cfgManager.Stop()
	}()

	log.Infof("BAM 引擎启动，source=%s, updates_topic=%s, events_topic=%s, api_port=%d",
		cfg.Bam.Ingest.Source.Type, cfg.Kafka.MonitoringUpdates.Topic, cfg.Kafka.BamEvents.Topic, cfg.API.Port)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := cfgManager.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		if err := application.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Errorf("application exited: %v", err)
	}
}
