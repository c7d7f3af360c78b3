package bam

import (
	"context"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"github.com/pkg/errors"
)

// EventCacheVisitor 缓存一次传播过程中产生的事件，按 其他 -> BA 事件 -> KPI 事件 的顺序提交。
// KPI 事件引用 BA 事件，下游要求 BA 事件先落库。
type EventCacheVisitor struct {
	others    []domain.Event
	baEvents  []domain.Event
	kpiEvents []domain.Event
}

var _ Visitor = (*EventCacheVisitor)(nil)

func NewEventCacheVisitor() *EventCacheVisitor {
	return &EventCacheVisitor{}
}

func (c *EventCacheVisitor) Write(ev domain.Event) {
	switch ev.(type) {
	case nil:
		return
	case *domain.BaEvent:
		c.baEvents = append(c.baEvents, ev)
	case *domain.KpiEvent:
		c.kpiEvents = append(c.kpiEvents, ev)
	default:
		c.others = append(c.others, ev)
	}
}

// Len 缓存中的事件数。
func (c *EventCacheVisitor) Len() int {
	return len(c.others) + len(c.baEvents) + len(c.kpiEvents)
}

// Events 按提交顺序返回缓存的事件，不清空。
func (c *EventCacheVisitor) Events() []domain.Event {
	out := make([]domain.Event, 0, c.Len())
	out = append(out, c.others...)
	out = append(out, c.baEvents...)
	return append(out, c.kpiEvents...)
}

// CommitTo 按顺序写入 stream 并清空缓存；遇到第一个写入错误即停止，剩余事件丢弃。
func (c *EventCacheVisitor) CommitTo(ctx context.Context, stream core.Stream) error {
	events := c.Events()
	c.Reset()
	if stream == nil {
		return nil
	}
	for i, ev := range events {
		if err := stream.Write(ctx, ev); err != nil {
			return errors.Wrapf(err, "提交事件 %s 失败，丢弃剩余 %d 个事件", ev.EventType(), len(events)-i-1)
		}
	}
	return nil
}

func (c *EventCacheVisitor) Reset() {
	c.others, c.baEvents, c.kpiEvents = nil, nil, nil
}
