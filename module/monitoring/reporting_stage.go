package monitoring

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/metrics"
)

// EventMessage 发布到 bam_events 的消息体。
type EventMessage struct {
	Type domain.EventType `json:"type"`
	Data domain.Event     `json:"data"`
}

// ReportingStage 是引擎的事件出口：事件与状态写入 OpenSearch，BA/KPI 事件和虚拟服务状态发布到 Kafka。
type ReportingStage struct {
	repos    core.RepositoryFactory
	producer core.KafkaProducer
}

var _ core.Stream = (*ReportingStage)(nil)

func NewReportingStage(repos core.RepositoryFactory, producer core.KafkaProducer) *ReportingStage {
	return &ReportingStage{repos: repos, producer: producer}
}

// Write 先持久化再发布，任一步失败都返回错误。
func (s *ReportingStage) Write(ctx context.Context, ev domain.Event) error {
	if ev == nil {
		return nil
	}
	if err := s.persist(ctx, ev); err != nil {
		metrics.StreamErrorsTotal.WithLabelValues("opensearch").Inc()
		return errors.Wrapf(err, "persist %s", ev.EventType())
	}
	if !published(ev) {
		return nil
	}
	if err := s.publish(ctx, ev); err != nil {
		metrics.StreamErrorsTotal.WithLabelValues("kafka").Inc()
		return errors.Wrapf(err, "publish %s", ev.EventType())
	}
	return nil
}

func (s *ReportingStage) persist(ctx context.Context, ev domain.Event) error {
	if s.repos == nil {
		return nil
	}
	switch e := ev.(type) {
	case *domain.BaEvent:
		if err := s.repos.BaEvent().Upsert(ctx, *e); err != nil {
			return err
		}
		// 区间关闭时同步生成时长记录
		if d := domain.NewBaDurationEvent(e); d != nil {
			return s.repos.BaDurationEvent().Upsert(ctx, *d)
		}
		return nil
	case *domain.KpiEvent:
		return s.repos.KpiEvent().Upsert(ctx, *e)
	case *domain.BaDurationEvent:
		return s.repos.BaDurationEvent().Upsert(ctx, *e)
	default:
		return s.repos.Status().Upsert(ctx, ev)
	}
}

func published(ev domain.Event) bool {
	switch ev.(type) {
	case *domain.BaEvent, *domain.KpiEvent, *domain.ServiceStatus:
		return true
	}
	return false
}

func (s *ReportingStage) publish(ctx context.Context, ev domain.Event) error {
	if s.producer == nil {
		return nil
	}
	value, err := sonic.Marshal(EventMessage{Type: ev.EventType(), Data: ev})
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	return s.producer.Publish(ctx, messageKey(ev), value)
}

// messageKey 同一节点的消息进入同一分区，保证顺序。
func messageKey(ev domain.Event) string {
	switch e := ev.(type) {
	case *domain.BaEvent:
		return fmt.Sprintf("ba_%d", e.BaID)
	case *domain.KpiEvent:
		return fmt.Sprintf("kpi_%d", e.KpiID)
	case *domain.ServiceStatus:
		return fmt.Sprintf("service_%d_%d", e.HostID, e.ServiceID)
	}
	return string(ev.EventType())
}
