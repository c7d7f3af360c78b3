package standardizer

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// Standardizer 负责将上游原始 payload 转换为标准化的监控更新。
// 不同来源独立实现，互不依赖。
type Standardizer interface {
	Standardize(ctx context.Context, payload []byte) (domain.Update, error)
}

// ServiceResolver 按主机名/服务名查找服务 ID，只带名称的来源需要它。
type ServiceResolver interface {
	ResolveService(host, service string) (uint32, uint32, bool)
}

// Build 根据 bam.ingest.source.type 创建对应的 Standardizer。
func Build(cfg *config.Config, resolver ServiceResolver) (Standardizer, error) {
	return defaultRegistry().Resolve(cfg, resolver)
}

// Factory 创建具体标准化器。
type Factory func(cfg *config.Config, resolver ServiceResolver) (Standardizer, error)

// Registry 管理不同数据源的标准化器。
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册数据源对应的标准化器，名称大小写不敏感。
func (r *Registry) Register(source string, factory Factory) {
	key := strings.TrimSpace(strings.ToLower(source))
	if key == "" || factory == nil {
		return
	}
	r.factories[key] = factory
}

func (r *Registry) Resolve(cfg *config.Config, resolver ServiceResolver) (Standardizer, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	source := cfg.Bam.Ingest.Source.Type
	factory, ok := r.factories[strings.TrimSpace(strings.ToLower(source))]
	if !ok {
		return nil, errors.Errorf("unsupported source type: %s", source)
	}
	return factory(cfg, resolver)
}

func defaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SourceNative, func(cfg *config.Config, _ ServiceResolver) (Standardizer, error) {
		return NewNativeStandardizer(), nil
	})
	r.Register(SourceZabbixWebhook, func(cfg *config.Config, resolver ServiceResolver) (Standardizer, error) {
		if resolver == nil {
			return nil, errors.New("zabbix_webhook 需要服务名解析")
		}
		return NewZabbixWebhookStandardizer(resolver), nil
	})
	return r
}
