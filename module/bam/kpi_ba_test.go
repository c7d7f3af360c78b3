package bam

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

func TestKpiBA(t *testing.T) {
	Convey("TestKpiBA", t, func() {
		patches := patchNow(testNow)
		defer patches.Reset()

		g := NewGraph()
		ba1 := newBA(g, 1, domain.StateSourceImpact, 80, 60)
		ba2 := newBA(g, 2, domain.StateSourceImpact, 80, 60)
		k := addServiceKpi(g, ba1, 10, 1, 1, ImpactTable{Critical: 50})

		kb := NewKpiBA(20, ba2.ID())
		kb.SetImpacts(ImpactTable{Warning: 40, Critical: 100})
		kb.LinkBA(ba1)
		g.Add(kb)
		kb.AddParent(ba2)
		ba2.AddImpact(kb)
		v := &recorder{}

		Convey("子 BA 的状态变化传递到上层 BA", func() {
			k.ServiceStatusUpdate(serviceState(1, 1, domain.StateCritical, testNow), v)
			So(ba1.StateHard(), ShouldEqual, domain.StateCritical)
			So(kb.ImpactHard().State, ShouldEqual, domain.StateCritical)
			So(ba2.LevelHard(), ShouldEqual, 0)
			So(ba2.StateHard(), ShouldEqual, domain.StateCritical)

			kpiEvents := v.kpiEvents()
			So(kpiEvents[len(kpiEvents)-1].KpiID, ShouldEqual, 20)
			So(kpiEvents[len(kpiEvents)-1].Output, ShouldEqual, "Status is CRITICAL - Level = 50")

			Convey("停机影响按子 BA 的停机百分比折算", func() {
				k.DowntimeUpdate(downtimeStart(1, 1, 1, testNow), v)
				So(ba1.DowntimeImpactHard(), ShouldEqual, 50)
				So(kb.ImpactHard().Downtime, ShouldEqual, 50)
				So(ba2.DowntimeImpactHard(), ShouldEqual, 50)
				So(kb.InDowntime(), ShouldBeFalse)
			})

			Convey("确认影响同样折算", func() {
				k.AcknowledgementUpdate(&domain.AcknowledgementUpdate{HostID: 1, ServiceID: 1, EntryTime: testNow}, v)
				So(kb.ImpactHard().Acknowledgement, ShouldEqual, 50)
				So(ba2.AckImpactHard(), ShouldEqual, 50)
			})
		})

		Convey("子 BA 停机时 KPI 处于停机", func() {
			ba1.DowntimeUpdate(downtimeStart(1, 1000, 1, testNow), v)
			So(kb.InDowntime(), ShouldBeTrue)
			So(kb.OpenEvent().InDowntime, ShouldBeTrue)
		})

		Convey("解绑后状态为 UNKNOWN", func() {
			kb.UnlinkBA()
			So(kb.LinkedBA(), ShouldBeNil)
			So(kb.ImpactHard().State, ShouldEqual, domain.StateUnknown)
			So(kb.ImpactHard().Nominal, ShouldEqual, 0)
		})
	})
}
