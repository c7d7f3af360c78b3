package kafka

import (
	"cmp"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/metrics"
)

// Consumer 单 reader 顺序消费监控更新，同一时刻只处理一条。
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(cfg Config) (core.KafkaConsumer, error) {
	mechanism, err := buildSASLMechanism(cfg.SASL)
	if err != nil {
		return nil, errors.Wrap(err, "构建 SASL 认证失败")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cmp.Or(cfg.GroupID, defaultGroupID),
		MinBytes: minBytes,
		MaxBytes: maxBytes,
		MaxWait:  time.Second,
		// 不预取，停机时未处理的消息留在 broker
		QueueCapacity: 1,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mechanism,
		},
		ErrorLogger: kafka.LoggerFunc(log.Errorf),
	})
	log.Infof("Kafka Consumer: topic=%s, group=%s, brokers=%v", cfg.Topic, reader.Config().GroupID, cfg.Brokers)
	return &Consumer{reader: reader}, nil
}

// ConsumeMessages 逐条处理并提交 offset。处理失败的更新无法重放出正确的状态，只记录后跳过。
func (c *Consumer) ConsumeMessages(ctx context.Context, handler func(ctx context.Context, msg core.KafkaMessage) error) error {
	if c.reader == nil {
		return errors.New("kafka reader 未初始化")
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		if !msg.Time.IsZero() {
			metrics.IngestLagSeconds.Observe(time.Since(msg.Time).Seconds())
		}

		result := "ok"
		if err := handler(ctx, core.KafkaMessage{
			Key:       string(msg.Key),
			Value:     msg.Value,
			Partition: int32(msg.Partition),
			Offset:    msg.Offset,
			Timestamp: msg.Time,
		}); err != nil {
			result = "error"
			log.Warnw("监控更新处理失败，跳过",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
				"body", string(msg.Value),
			)
		}
		metrics.IngestMessagesTotal.WithLabelValues(result).Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit kafka offset")
		}
	}
}

func (c *Consumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
