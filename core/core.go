package core

import (
	"context"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// KafkaProducer 生产 Kafka 消息。
type KafkaProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// KafkaConsumer 顺序消费单个 topic。
type KafkaConsumer interface {
	ConsumeMessages(ctx context.Context, handler func(ctx context.Context, msg KafkaMessage) error) error
	Close() error
}

// KafkaMessage 表示消费到的 Kafka 消息。
type KafkaMessage struct {
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Stream 引擎事件的持久化/通知出口。
type Stream interface {
	Write(ctx context.Context, ev domain.Event) error
}

// UpdateHandler 是 ingest 的下游处理器。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd domain.Update) error
}

// BaEventRepository 管理 BA 事件索引。
type BaEventRepository interface {
	Upsert(ctx context.Context, ev domain.BaEvent) error
	QueryByBaID(ctx context.Context, baID uint32, start, end time.Time) ([]domain.BaEvent, error)
	QueryInWindow(ctx context.Context, start, end time.Time) ([]domain.BaEvent, error)
}

// KpiEventRepository 管理 KPI 事件索引。
type KpiEventRepository interface {
	Upsert(ctx context.Context, ev domain.KpiEvent) error
	QueryByKpiID(ctx context.Context, kpiID uint32, start, end time.Time) ([]domain.KpiEvent, error)
}

// BaDurationEventRepository 管理 BA 时长事件索引。
type BaDurationEventRepository interface {
	Upsert(ctx context.Context, ev domain.BaDurationEvent) error
}

// StatusRepository 保存各节点最新状态快照，每个节点一条文档。
type StatusRepository interface {
	Upsert(ctx context.Context, ev domain.Event) error
}

// AvailabilityRepository 管理 BA 可用性汇总索引。
type AvailabilityRepository interface {
	Upsert(ctx context.Context, av domain.BaAvailability) error
	QueryByBaID(ctx context.Context, baID uint32, start, end time.Time) ([]domain.BaAvailability, error)
}

type RepositoryFactory interface {
	BaEvent() BaEventRepository
	KpiEvent() KpiEventRepository
	BaDurationEvent() BaDurationEventRepository
	Status() StatusRepository
	Availability() AvailabilityRepository
}

// StateCache 保存引擎重启需要恢复的状态。
type StateCache interface {
	Save(ctx context.Context, st domain.EngineState) error
	Load(ctx context.Context) (domain.EngineState, error)
}
