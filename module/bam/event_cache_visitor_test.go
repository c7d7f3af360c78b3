package bam

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

func TestEventCacheVisitor(t *testing.T) {
	Convey("TestEventCacheVisitor", t, func() {
		ctx := context.Background()
		c := NewEventCacheVisitor()

		kpiEv := &domain.KpiEvent{KpiID: 1}
		baEv := &domain.BaEvent{BaID: 1}
		status := &domain.BaStatus{BaID: 1}
		kpiStatus := &domain.KpiStatus{KpiID: 1}
		c.Write(kpiEv)
		c.Write(status)
		c.Write(baEv)
		c.Write(nil)
		c.Write(kpiStatus)

		Convey("按 其他、BA 事件、KPI 事件 的顺序提交", func() {
			So(c.Len(), ShouldEqual, 4)
			s := &fakeStream{}
			So(c.CommitTo(ctx, s), ShouldBeNil)
			So(s.events, ShouldResemble, []domain.Event{status, kpiStatus, baEv, kpiEv})
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("第一个写入错误后停止，剩余事件丢弃", func() {
			s := &fakeStream{failAt: 2, err: errors.New("broker down")}
			err := c.CommitTo(ctx, s)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "broker down")
			So(err.Error(), ShouldContainSubstring, "丢弃剩余 2 个事件")
			So(s.events, ShouldResemble, []domain.Event{status})
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("没有 stream 时只清空", func() {
			So(c.CommitTo(ctx, nil), ShouldBeNil)
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("Events 不清空缓存", func() {
			So(len(c.Events()), ShouldEqual, 4)
			So(c.Len(), ShouldEqual, 4)
			c.Reset()
			So(c.Events(), ShouldBeEmpty)
		})
	})
}
