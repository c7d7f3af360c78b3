package monitoring

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/monitoring/standardizer"
)

// IngestStage 顺序消费监控更新，标准化后交给引擎。
type IngestStage struct {
	consumer core.KafkaConsumer
	std      standardizer.Standardizer
	handler  core.UpdateHandler
}

func NewIngestStage(consumer core.KafkaConsumer, std standardizer.Standardizer, handler core.UpdateHandler) *IngestStage {
	return &IngestStage{
		consumer: consumer,
		std:      std,
		handler:  handler,
	}
}

// Start 阻塞消费直到 ctx 取消。
func (s *IngestStage) Start(ctx context.Context) error {
	if s.consumer == nil {
		return errors.New("kafka consumer not configured")
	}
	if s.std == nil {
		return errors.New("standardizer not configured")
	}
	if s.handler == nil {
		return errors.New("update handler not configured")
	}
	return s.consumer.ConsumeMessages(ctx, s.handleKafkaMessage)
}

func (s *IngestStage) handleKafkaMessage(ctx context.Context, msg core.KafkaMessage) error {
	upd, err := s.std.Standardize(ctx, msg.Value)
	if err != nil {
		return errors.Wrap(err, "standardize update")
	}

	defer func(t time.Time) {
		log.Debugw("监控更新处理完成",
			"type", upd.Type,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"duration_ms", time.Since(t).Milliseconds(),
		)
	}(time.Now())

	if err := s.handler.HandleUpdate(ctx, upd); err != nil {
		return errors.Wrapf(err, "apply %s update", upd.Type)
	}
	return nil
}
