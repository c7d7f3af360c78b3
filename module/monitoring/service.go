package monitoring

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/metrics"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/bam"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/monitoring/standardizer"
)

const (
	defaultCheckInterval = 5 * time.Second // 检查配置快照是否变化
	defaultSaveInterval  = time.Minute     // 定期保存引擎状态
)

// ConfigSource 提供当前配置快照，重新加载时替换指针。
type ConfigSource interface {
	GetConfig() *config.Config
}

// Service 组合引擎、摄取与上报，并在 BAM 定义变化时重建计算图。
type Service struct {
	cfgSource  ConfigSource
	engine     *bam.Engine
	ingest     *IngestStage
	std        standardizer.Standardizer
	stateCache core.StateCache
	producer   core.KafkaProducer
	consumer   core.KafkaConsumer

	applied       *config.Config
	checkInterval time.Duration
	saveInterval  time.Duration
}

// New 创建 Kafka 客户端、标准化器和引擎。
func New(cfgManager ConfigSource, repos core.RepositoryFactory, stateCache core.StateCache) (*Service, error) {
	cfg := cfgManager.GetConfig()

	producer, err := kafka.NewProducer(kafka.ConfigFromMQ(cfg.DepServices.MQ, cfg.Kafka.BamEvents.Topic, ""))
	if err != nil {
		return nil, errors.Wrap(err, "创建kafka生产者失败")
	}

	consumer, err := kafka.NewConsumer(kafka.ConfigFromMQ(cfg.DepServices.MQ,
		cfg.Kafka.MonitoringUpdates.Topic, cfg.Kafka.MonitoringUpdates.ConsumerGroup))
	if err != nil {
		_ = producer.Close()
		return nil, errors.Wrap(err, "创建kafka消费者失败")
	}

	std, err := standardizer.Build(cfg, configResolver{src: cfgManager})
	if err != nil {
		_ = producer.Close()
		_ = consumer.Close()
		return nil, errors.Wrap(err, "初始化 standardizer 失败")
	}

	return newService(cfgManager, repos, stateCache, producer, consumer, std), nil
}

func newService(src ConfigSource, repos core.RepositoryFactory, stateCache core.StateCache,
	producer core.KafkaProducer, consumer core.KafkaConsumer, std standardizer.Standardizer) *Service {
	engine := bam.NewEngine(NewReportingStage(repos, producer))
	return &Service{
		cfgSource:     src,
		engine:        engine,
		ingest:        NewIngestStage(consumer, std, engine),
		std:           std,
		stateCache:    stateCache,
		producer:      producer,
		consumer:      consumer,
		checkInterval: defaultCheckInterval,
		saveInterval:  defaultSaveInterval,
	}
}

// Engine 供 API 查询实时状态。
func (s *Service) Engine() *bam.Engine {
	return s.engine
}

// Standardizer 供 API 在写入 Kafka 前校验请求体。
func (s *Service) Standardizer() standardizer.Standardizer {
	return s.std
}

// Start 加载计算图后开始消费，退出前保存引擎状态。
func (s *Service) Start(ctx context.Context) error {
	if err := s.reload(ctx, s.cfgSource.GetConfig()); err != nil {
		log.Errorf("加载计算图失败: %v", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := s.ingest.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "ingest stage 启动失败")
		}
		return nil
	})
	eg.Go(func() error {
		s.run(egCtx)
		return nil
	})
	err := eg.Wait()

	s.saveState(context.Background())
	return err
}

// run 定期检查配置快照并保存状态。
func (s *Service) run(ctx context.Context) {
	check := time.NewTicker(s.checkInterval)
	defer check.Stop()
	save := time.NewTicker(s.saveInterval)
	defer save.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			s.checkConfig(ctx)
		case <-save.C:
			s.saveState(ctx)
		}
	}
}

// checkConfig 同步日志级别，只有 BAM 定义或引擎参数变化时才重建计算图。
func (s *Service) checkConfig(ctx context.Context) {
	cfg := s.cfgSource.GetConfig()
	if cfg == nil || cfg == s.applied {
		return
	}
	if s.applied != nil && cfg.Log.Level != s.applied.Log.Level {
		if err := log.SetLevel(cfg.Log.Level); err != nil {
			log.Warnf("日志级别 %q 不合法: %v", cfg.Log.Level, err)
		} else {
			log.Infof("日志级别调整为 %s", cfg.Log.Level)
		}
	}
	if s.applied != nil && reflect.DeepEqual(cfg.BAM, s.applied.BAM) && reflect.DeepEqual(cfg.Bam, s.applied.Bam) {
		s.applied = cfg
		return
	}
	log.Info("检测到 BAM 定义变化，重建计算图")
	if err := s.reload(ctx, cfg); err != nil {
		log.Errorf("重建计算图失败: %v", err)
	}
}

// reload 首次加载从缓存恢复状态，之后沿用当前引擎的快照。
func (s *Service) reload(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var state domain.EngineState
	if s.applied == nil {
		state = s.loadState(ctx)
	} else {
		state = s.engine.Snapshot()
		s.saveSnapshot(ctx, state)
	}

	applier := bam.NewApplier(bam.ApplierOptions{
		GenerateVirtualStatus: cfg.Bam.GenerateVirtualStatus,
		MetaStatusInterval:    cfg.Bam.MetaStatusInterval,
	})
	g, errs := applier.Apply(&cfg.BAM)
	metrics.ConfigErrors.Set(float64(len(errs)))
	for _, e := range errs {
		log.Warnf("%v", e)
	}

	s.applied = cfg
	if err := s.engine.Load(ctx, g, state); err != nil {
		return errors.Wrap(err, "加载计算图")
	}
	log.Infof("计算图已加载: %d 个节点, %d 个配置错误", g.Len(), len(errs))
	return nil
}

func (s *Service) loadState(ctx context.Context) domain.EngineState {
	if s.stateCache == nil {
		return domain.EngineState{}
	}
	state, err := s.stateCache.Load(ctx)
	if err != nil {
		log.Warnf("读取引擎状态失败，从空状态启动: %v", err)
		return domain.EngineState{}
	}
	log.Infof("恢复引擎状态: %d 个 BA 事件, %d 个 KPI 事件, %d 个继承停机",
		len(state.BaEvents), len(state.KpiEvents), len(state.InheritedDowntimes))
	return state
}

func (s *Service) saveState(ctx context.Context) {
	if s.stateCache == nil {
		return
	}
	s.saveSnapshot(ctx, s.engine.Snapshot())
}

func (s *Service) saveSnapshot(ctx context.Context, state domain.EngineState) {
	if s.stateCache == nil {
		return
	}
	if err := s.stateCache.Save(ctx, state); err != nil {
		log.Errorf("保存引擎状态失败: %v", err)
	}
}

// Close 关闭 Service 持有的 Kafka 客户端。
func (s *Service) Close() error {
	var errs []error
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close kafkaConsumer"))
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close kafkaProducer"))
		}
	}
	if len(errs) > 0 {
		return errors.New(fmt.Sprintf("关闭 monitoring service 时发生 %d 个错误: %v", len(errs), errs))
	}
	return nil
}

// configResolver 每次都读最新快照，服务定义变化后无需重建标准化器。
type configResolver struct {
	src ConfigSource
}

func (r configResolver) ResolveService(host, service string) (uint32, uint32, bool) {
	cfg := r.src.GetConfig()
	if cfg == nil {
		return 0, 0, false
	}
	return cfg.BAM.ResolveService(host, service)
}
