package bam

import (
	"context"
	"time"

	"github.com/agiledragon/gomonkey/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

var testNow = time.Date(2024, 5, 6, 10, 0, 0, 0, time.Local)

// patchNow 固定事件时间来源
func patchNow(t time.Time) *gomonkey.Patches {
	return gomonkey.ApplyGlobalVar(&nowFunc, func() time.Time { return t })
}

// patchClock 时间取自 *now，测试中可随时推进
func patchClock(now *time.Time) *gomonkey.Patches {
	return gomonkey.ApplyGlobalVar(&nowFunc, func() time.Time { return *now })
}

// recorder 记录写入的事件
type recorder struct {
	events []domain.Event
}

func (r *recorder) Write(ev domain.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) reset() {
	r.events = nil
}

func (r *recorder) count(t domain.EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.EventType() == t {
			n++
		}
	}
	return n
}

func (r *recorder) baEvents() []*domain.BaEvent {
	var out []*domain.BaEvent
	for _, ev := range r.events {
		if e, ok := ev.(*domain.BaEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) kpiEvents() []*domain.KpiEvent {
	var out []*domain.KpiEvent
	for _, ev := range r.events {
		if e, ok := ev.(*domain.KpiEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last(t domain.EventType) domain.Event {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == t {
			return r.events[i]
		}
	}
	return nil
}

// fakeStream 记录提交顺序，可注入写入错误
type fakeStream struct {
	events []domain.Event
	failAt int // 第几次写入失败，0 表示不失败
	err    error
}

func (s *fakeStream) Write(_ context.Context, ev domain.Event) error {
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

// newBA 创建 BA 并放入图中
func newBA(g *Graph, id uint32, source domain.StateSource, warning, critical float64) *BA {
	ba := NewBA(id, 1000, id, source, false)
	ba.SetLevelWarning(warning)
	ba.SetLevelCritical(critical)
	g.Add(ba)
	return ba
}

// addServiceKpi 创建服务 KPI、挂到 BA 上并注册订阅
func addServiceKpi(g *Graph, ba *BA, id, hostID, serviceID uint32, impacts ImpactTable) *KpiService {
	k := NewKpiService(id, ba.ID(), hostID, serviceID)
	k.SetImpacts(impacts)
	g.Add(k)
	g.ListenService(hostID, serviceID, k)
	k.AddParent(ba)
	ba.AddImpact(k)
	return k
}

func serviceState(hostID, serviceID uint32, state domain.State, at time.Time) *domain.ServiceStatusUpdate {
	return &domain.ServiceStatusUpdate{
		HostID:        hostID,
		ServiceID:     serviceID,
		LastCheck:     at,
		LastHardState: state,
		CurrentState:  state,
		StateType:     1,
	}
}

func downtimeStart(internalID uint64, hostID, serviceID uint32, at time.Time) *domain.DowntimeUpdate {
	return &domain.DowntimeUpdate{
		InternalID:      internalID,
		HostID:          hostID,
		ServiceID:       serviceID,
		WasStarted:      true,
		ActualStartTime: at,
	}
}

func downtimeEnd(internalID uint64, hostID, serviceID uint32, start, end time.Time) *domain.DowntimeUpdate {
	return &domain.DowntimeUpdate{
		InternalID:      internalID,
		HostID:          hostID,
		ServiceID:       serviceID,
		WasStarted:      true,
		ActualStartTime: start,
		ActualEndTime:   end,
	}
}
