package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// Producer 同步写入单条消息。事件按提交顺序发送，失败立即返回给引擎。
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) (core.KafkaProducer, error) {
	mechanism, err := buildSASLMechanism(cfg.SASL)
	if err != nil {
		return nil, errors.Wrap(err, "构建 SASL 认证失败")
	}
	log.Infof("Kafka Producer: topic=%s, brokers=%v, sasl=%t", cfg.Topic, cfg.Brokers, mechanism != nil)

	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			Transport:              &kafka.Transport{SASL: mechanism},
			RequiredAcks:           kafka.RequireOne,
			// 每次只写一条，不等待凑批
			BatchSize:    1,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
			Compression:  kafka.Snappy,
			ErrorLogger:  kafka.LoggerFunc(log.Errorf),
		},
	}, nil
}

// Publish 相同 key 落在同一分区，写入错误原样返回。
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if p.writer == nil {
		return errors.New("kafka writer 未初始化")
	}
	defer func(start time.Time) {
		log.Debugw("Kafka",
			"operation", "Publish",
			"topic", p.writer.Topic,
			"key", key,
			"bytes", len(value),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
