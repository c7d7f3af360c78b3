package bam

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

func TestEngine(t *testing.T) {
	Convey("TestEngine", t, func() {
		now := testNow
		patches := patchClock(&now)
		defer patches.Reset()

		ctx := context.Background()
		stream := &fakeStream{}
		e := NewEngine(stream)
		g, errs := NewApplier(ApplierOptions{}).Apply(testBAMConfig())
		So(errs, ShouldBeEmpty)

		Convey("加载后输出全部节点的初始事件和状态", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)

			counts := map[domain.EventType]int{}
			for _, ev := range stream.events {
				counts[ev.EventType()]++
			}
			So(counts[domain.EventTypeBaEvent], ShouldEqual, 2)
			// 服务 KPI 在首次检查结果到达前不开区间
			So(counts[domain.EventTypeKpiEvent], ShouldEqual, 3)
			So(g.Kpi(1).OpenEvent(), ShouldBeNil)
			So(counts[domain.EventTypeKpiStatus], ShouldEqual, 4)
			So(counts[domain.EventTypeBaStatus], ShouldEqual, 2)
			So(counts[domain.EventTypeMetaServiceStatus], ShouldEqual, 1)
			// BA 2 输出虚拟服务状态
			So(counts[domain.EventTypeServiceStatus], ShouldEqual, 1)

			// KPI 事件在 BA 事件之后提交
			lastBa, firstKpi := -1, -1
			for i, ev := range stream.events {
				switch ev.EventType() {
				case domain.EventTypeBaEvent:
					lastBa = i
				case domain.EventTypeKpiEvent:
					if firstKpi < 0 {
						firstKpi = i
					}
				}
			}
			So(lastBa, ShouldBeLessThan, firstKpi)
		})

		Convey("加载空图返回错误", func() {
			So(e.Load(ctx, nil, domain.EngineState{}), ShouldNotBeNil)
		})

		Convey("处理服务状态更新并提交事件", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)
			stream.events = nil

			err := e.HandleUpdate(ctx, domain.Update{
				Type:          domain.UpdateTypeServiceStatus,
				ServiceStatus: serviceState(1, 11, domain.StateCritical, testNow.Add(time.Minute)),
			})
			So(err, ShouldBeNil)
			So(stream.events, ShouldNotBeEmpty)

			views := e.BAState(1, 2, 99)
			So(len(views), ShouldEqual, 2)
			So(views[0].StateHard, ShouldEqual, domain.StateCritical)
			So(views[0].LevelHard, ShouldEqual, 20)
			So(views[0].NumKpis, ShouldEqual, 3)
			So(views[1].StateSource, ShouldEqual, domain.StateSourceWorst)
			So(views[1].StateHard, ShouldEqual, domain.StateCritical)

			kpis := e.KPIState(1, 2, 3, 4)
			So(len(kpis), ShouldEqual, 4)
			So(kpis[0].Type, ShouldEqual, "service")
			So(kpis[0].ImpactHard.Nominal, ShouldEqual, 50)
			So(kpis[1].Type, ShouldEqual, "meta")
			So(kpis[2].Type, ShouldEqual, "boolexp")
			So(kpis[3].Type, ShouldEqual, "ba")
		})

		Convey("处理确认、停机和指标更新", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:          domain.UpdateTypeServiceStatus,
				ServiceStatus: serviceState(1, 11, domain.StateCritical, testNow),
			}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:            domain.UpdateTypeAcknowledgement,
				Acknowledgement: &domain.AcknowledgementUpdate{HostID: 1, ServiceID: 11, EntryTime: testNow},
			}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:     domain.UpdateTypeDowntime,
				Downtime: downtimeStart(1, 1, 11, testNow.Add(time.Minute)),
			}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:   domain.UpdateTypeMetric,
				Metric: &domain.MetricUpdate{MetricID: 102, Value: 160, Ctime: testNow},
			}), ShouldBeNil)

			views := e.BAState(1)
			So(views[0].AckHard, ShouldEqual, 50)
			So(views[0].DowntimeHard, ShouldEqual, 50)

			metas := e.MetaState(1)
			So(len(metas), ShouldEqual, 1)
			So(*metas[0].Value, ShouldEqual, 80)
			So(metas[0].State, ShouldEqual, domain.StateWarning)
			So(metas[0].NumMetrics, ShouldEqual, 2)
		})

		Convey("非法更新被拒绝", func() {
			So(e.HandleUpdate(ctx, domain.Update{Type: domain.UpdateTypeServiceStatus}), ShouldNotBeNil)
			So(e.HandleUpdate(ctx, domain.Update{Type: domain.UpdateTypeMetric}), ShouldNotBeNil)
			So(e.HandleUpdate(ctx, domain.Update{Type: "bogus"}), ShouldNotBeNil)
		})

		Convey("提交失败时返回错误", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)
			stream.events = nil
			stream.failAt = 1
			stream.err = errors.New("sink down")

			err := e.HandleUpdate(ctx, domain.Update{
				Type:          domain.UpdateTypeServiceStatus,
				ServiceStatus: serviceState(1, 11, domain.StateCritical, testNow),
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "sink down")
		})

		Convey("快照与恢复", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)
			state := e.Snapshot()
			So(len(state.BaEvents), ShouldEqual, 2)
			So(len(state.KpiEvents), ShouldEqual, 3)
			So(state.Services, ShouldBeEmpty)

			now = testNow.Add(time.Hour)
			restored := &fakeStream{}
			e2 := NewEngine(restored)
			g2, _ := NewApplier(ApplierOptions{}).Apply(testBAMConfig())
			So(e2.Load(ctx, g2, state), ShouldBeNil)

			// 打开的事件原样写回，状态未变化不开新区间
			counts := map[domain.EventType]int{}
			for _, ev := range restored.events {
				counts[ev.EventType()]++
			}
			So(counts[domain.EventTypeBaEvent], ShouldEqual, 2)
			So(counts[domain.EventTypeKpiEvent], ShouldEqual, 3)
			So(g2.BA(1).LastStateChange(), ShouldEqual, testNow)
			So(g2.Kpi(3).LastStateChange(), ShouldEqual, testNow)

			Convey("实时状态与恢复的事件不同时关闭旧区间", func() {
				So(e2.HandleUpdate(ctx, domain.Update{
					Type:          domain.UpdateTypeServiceStatus,
					ServiceStatus: serviceState(1, 11, domain.StateCritical, now),
				}), ShouldBeNil)
				ev := g2.BA(1).OpenEvent()
				So(ev.Status, ShouldEqual, domain.StateCritical)
				So(ev.StartTime, ShouldEqual, now)
			})
		})

		Convey("恢复时跳过已不存在或不匹配的节点", func() {
			state := domain.EngineState{
				BaEvents: []domain.BaEvent{
					{BaID: 99, StartTime: testNow, Status: domain.StateCritical},
				},
				KpiEvents: []domain.KpiEvent{
					{KpiID: 1, BaID: 2, StartTime: testNow, Status: domain.StateCritical},
				},
				InheritedDowntimes: []domain.InheritedDowntime{{BaID: 1, InDowntime: true}},
			}
			So(e.Load(ctx, g, state), ShouldBeNil)
			So(g.Kpi(1).OpenEvent(), ShouldBeNil)
			So(g.BA(1).InDowntime(), ShouldBeTrue)
		})

		Convey("相同定义重新加载时沿用叶子输入，不切分区间", func() {
			So(e.Load(ctx, g, domain.EngineState{}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:          domain.UpdateTypeServiceStatus,
				ServiceStatus: serviceState(1, 11, domain.StateCritical, testNow),
			}), ShouldBeNil)
			So(e.HandleUpdate(ctx, domain.Update{
				Type:   domain.UpdateTypeMetric,
				Metric: &domain.MetricUpdate{MetricID: 102, Value: 160, Ctime: testNow},
			}), ShouldBeNil)

			state := e.Snapshot()
			So(len(state.Services), ShouldEqual, 1)
			So(state.Services[0].LastHardState, ShouldEqual, domain.StateCritical)
			So(state.Services[0].LastCheck, ShouldEqual, testNow)
			So(state.Metrics, ShouldContain, domain.MetricValue{MetricID: 102, Value: 160})
			before := e.BAState(1, 2)
			metaBefore := *e.MetaState(1)[0].Value

			now = testNow.Add(time.Hour)
			stream.events = nil
			g2, errs := NewApplier(ApplierOptions{}).Apply(testBAMConfig())
			So(errs, ShouldBeEmpty)
			So(e.Load(ctx, g2, state), ShouldBeNil)

			for _, ev := range stream.events {
				switch x := ev.(type) {
				case *domain.BaEvent:
					So(x.Open(), ShouldBeTrue)
				case *domain.KpiEvent:
					So(x.EndTime, ShouldBeNil)
				}
			}
			So(g2.BA(1).OpenEvent().Status, ShouldEqual, domain.StateCritical)
			So(g2.BA(1).OpenEvent().StartTime, ShouldEqual, testNow)
			So(g2.Kpi(1).OpenEvent().Status, ShouldEqual, domain.StateCritical)
			So(g2.Kpi(1).OpenEvent().StartTime, ShouldEqual, testNow)

			after := e.BAState(1, 2)
			So(after[0].StateHard, ShouldEqual, domain.StateCritical)
			So(after[0].LevelHard, ShouldEqual, before[0].LevelHard)
			So(after[1].StateHard, ShouldEqual, before[1].StateHard)
			So(*e.MetaState(1)[0].Value, ShouldEqual, metaBefore)
		})
	})
}
