package app

import (
	"context"
	stderr "errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/cache"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/opensearch"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/api"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/availability"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/monitoring"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// App 负责模块装配与生命周期。
type App struct {
	API          *api.Server
	Monitoring   *monitoring.Service
	Availability *availability.Scheduler
	cache        cache.Cache
}

func New(cfgManager *config.ConfigManager) (*App, error) {
	cfg := cfgManager.GetConfig()

	osClient, err := opensearch.NewClient(opensearch.ConfigFromDep(cfg.DepServices.OpenSearch))
	if err != nil {
		return nil, errors.Wrap(err, "初始化 OpenSearch 失败")
	}
	repoFactory := opensearch.NewRepositoryFactory(osClient)

	a := &App{}

	// 未启用时保持接口为 nil，引擎从空状态启动
	var stateCache core.StateCache
	if cfg.Bam.StateCache.Enabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfigFromDep(cfg.DepServices.Redis))
		if err != nil {
			return nil, errors.Wrap(err, "初始化 Redis 失败")
		}
		a.cache = redisCache
		stateCache = cache.NewStateCache(redisCache, "", cfg.Bam.StateCache.TTL)
	}

	mon, err := monitoring.New(cfgManager, repoFactory, stateCache)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, errors.Wrap(err, "初始化 MonitoringService 失败")
	}
	a.Monitoring = mon

	apiServer, err := api.New(cfg, mon.Engine(), mon.Standardizer(), repoFactory)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, errors.Wrap(err, "初始化 Api 失败")
	}
	a.API = apiServer

	if cfg.Bam.Availability.Enabled {
		job := availability.NewJob(repoFactory)
		a.Availability = availability.NewScheduler(cfg.Bam.Availability.Schedule, job.RunYesterday)
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context 不能为空")
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if a.Monitoring != nil {
		eg.Go(func() error {
			if err := a.Monitoring.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "monitoring 启动失败")
			}
			return nil
		})
	}

	if a.API != nil {
		eg.Go(func() error {
			if err := a.API.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "api 启动失败")
			}
			return nil
		})
	}

	if a.Availability != nil {
		eg.Go(func() error {
			if err := a.Availability.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "availability 启动失败")
			}
			return nil
		})
	}

	log.Info("应用已启动，等待退出信号")
	return eg.Wait()
}

// Close 统一关闭持有的连接资源，需由上层在取消上下文后调用。
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, errors.Wrap(err, "stop api"))
		}
	}
	if a.Monitoring != nil {
		if err := a.Monitoring.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close monitoring"))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close redis"))
		}
	}

	return stderr.Join(errs...)
}
