package opensearch

import (
	"context"
	"io"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

var storeTestTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestBaEventStore(t *testing.T) {
	Convey("TestBaEventStore", t, func() {
		ctx := context.Background()
		end := storeTestTime.Add(time.Hour)
		ev := domain.BaEvent{BaID: 3, StartTime: storeTestTime, EndTime: &end, Status: domain.StateCritical, FirstLevel: 40}

		Convey("以 ba_id 和开始时间为键写入", func() {
			tr := newMockTransport(201, `{"result":"created"}`)
			store := NewBaEventStore(newClientWithTransport(tr))
			So(store.Upsert(ctx, ev), ShouldBeNil)
			So(tr.method, ShouldEqual, http.MethodPut)
			So(tr.path, ShouldEqual, "/"+BaEventIndex+"/_doc/"+baEventID(3, storeTestTime))

			var doc map[string]any
			So(sonic.UnmarshalString(tr.body, &doc), ShouldBeNil)
			So(doc["ba_id"], ShouldEqual, 3)
			So(doc["status"], ShouldEqual, 2)
			So(doc["__index_base"], ShouldEqual, BaEventIndexBase)
			So(doc["__id"], ShouldEqual, baEventID(3, storeTestTime))
			So(doc["end_time"], ShouldNotBeNil)
		})

		Convey("打开的区间没有 end_time", func() {
			tr := newMockTransport(201, `{}`)
			open := ev
			open.EndTime = nil
			So(NewBaEventStore(newClientWithTransport(tr)).Upsert(ctx, open), ShouldBeNil)
			So(tr.body, ShouldNotContainSubstring, "end_time")
		})

		Convey("client 为空", func() {
			err := NewBaEventStore(nil).Upsert(ctx, ev)
			So(err.Error(), ShouldContainSubstring, "opensearch client 未初始化")
		})

		Convey("请求失败", func() {
			err := NewBaEventStore(newMockClientWithError(io.ErrUnexpectedEOF)).Upsert(ctx, ev)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "BaEventStore.Upsert 写入失败")
		})

		Convey("返回错误状态", func() {
			client := newMockClient(400, `{"error":{"type":"mapper_parsing_exception","reason":"bad doc"},"status":400}`)
			err := NewBaEventStore(client).Upsert(ctx, ev)
			So(err.Error(), ShouldContainSubstring, "bad doc")
		})

		Convey("按 BA 查询相交区间", func() {
			tr := newMockTransport(200, `{"hits":{"hits":[{"_source":{"ba_id":3,"start_time":"2026-03-01T08:00:00Z","status":2,"first_level":40}}]}}`)
			events, err := NewBaEventStore(newClientWithTransport(tr)).QueryByBaID(ctx, 3, storeTestTime, end)
			So(err, ShouldBeNil)
			So(len(events), ShouldEqual, 1)
			So(events[0].Status, ShouldEqual, domain.StateCritical)
			So(events[0].Open(), ShouldBeTrue)
			So(tr.path, ShouldEqual, "/"+BaEventIndex+"/_search")
			So(tr.body, ShouldContainSubstring, `"ba_id":3`)
			So(tr.body, ShouldContainSubstring, `"minimum_should_match":1`)
		})

		Convey("窗口查询不限定 BA", func() {
			tr := newMockTransport(200, `{"hits":{"hits":[]}}`)
			events, err := NewBaEventStore(newClientWithTransport(tr)).QueryInWindow(ctx, storeTestTime, end)
			So(err, ShouldBeNil)
			So(events, ShouldBeEmpty)
			So(tr.body, ShouldNotContainSubstring, "ba_id")
		})

		Convey("查询返回错误状态", func() {
			_, err := NewBaEventStore(newMockClient(500, `boom`)).QueryInWindow(ctx, storeTestTime, end)
			So(err.Error(), ShouldEqual, "boom")
		})
	})
}

func TestKpiEventStore(t *testing.T) {
	Convey("TestKpiEventStore", t, func() {
		ctx := context.Background()
		tr := newMockTransport(201, `{}`)
		store := NewKpiEventStore(newClientWithTransport(tr))

		ev := domain.KpiEvent{KpiID: 7, BaID: 3, StartTime: storeTestTime, Status: domain.StateWarning, ImpactLevel: 25, Output: "load high"}
		So(store.Upsert(ctx, ev), ShouldBeNil)
		So(tr.path, ShouldEqual, "/"+KpiEventIndex+"/_doc/7_"+itoa(storeTestTime.UnixNano()))
		So(tr.body, ShouldContainSubstring, `"output":"load high"`)

		qtr := newMockTransport(200, `{"hits":{"hits":[{"_source":{"kpi_id":7,"ba_id":3,"status":1,"impact_level":25}}]}}`)
		events, err := NewKpiEventStore(newClientWithTransport(qtr)).QueryByKpiID(ctx, 7, storeTestTime, storeTestTime.Add(time.Hour))
		So(err, ShouldBeNil)
		So(events[0].ImpactLevel, ShouldEqual, 25)
		So(qtr.body, ShouldContainSubstring, `"kpi_id":7`)
	})
}

func TestBaDurationEventStore(t *testing.T) {
	Convey("TestBaDurationEventStore", t, func() {
		tr := newMockTransport(201, `{}`)
		end := storeTestTime.Add(90 * time.Second)
		ev := domain.NewBaDurationEvent(&domain.BaEvent{BaID: 3, StartTime: storeTestTime, EndTime: &end})
		So(NewBaDurationEventStore(newClientWithTransport(tr)).Upsert(context.Background(), *ev), ShouldBeNil)
		So(tr.path, ShouldEqual, "/"+BaDurationEventIndex+"/_doc/"+baEventID(3, storeTestTime))
		So(tr.body, ShouldContainSubstring, `"duration":90`)
	})
}

func TestStatusStore(t *testing.T) {
	Convey("TestStatusStore", t, func() {
		ctx := context.Background()

		Convey("每种状态一个节点一条文档", func() {
			cases := []struct {
				ev domain.Event
				id string
			}{
				{&domain.BaStatus{BaID: 1}, "ba_status_1"},
				{&domain.KpiStatus{KpiID: 2}, "kpi_status_2"},
				{&domain.MetaServiceStatus{MetaServiceID: 3}, "meta_service_status_3"},
				{&domain.BoolStatus{BoolID: 4}, "bool_status_4"},
				{&domain.InheritedDowntime{BaID: 5}, "inherited_downtime_5"},
				{&domain.ServiceStatus{HostID: 6, ServiceID: 7}, "service_status_6_7"},
			}
			for _, c := range cases {
				tr := newMockTransport(200, `{}`)
				So(NewStatusStore(newClientWithTransport(tr)).Upsert(ctx, c.ev), ShouldBeNil)
				So(tr.path, ShouldEqual, "/"+StatusIndex+"/_doc/"+c.id)
				So(tr.body, ShouldContainSubstring, `"event_type":"`+string(c.ev.EventType())+`"`)
			}
		})

		Convey("元服务取值 NaN 写为 null", func() {
			tr := newMockTransport(200, `{}`)
			ev := &domain.MetaServiceStatus{MetaServiceID: 3, Value: math.NaN(), State: domain.StateUnknown}
			So(NewStatusStore(newClientWithTransport(tr)).Upsert(ctx, ev), ShouldBeNil)
			So(tr.body, ShouldContainSubstring, `"value":null`)
		})

		Convey("事件类记录不写入状态索引", func() {
			store := NewStatusStore(newMockClient(200, `{}`))
			So(store.Upsert(ctx, &domain.BaEvent{BaID: 1}), ShouldNotBeNil)
			So(store.Upsert(ctx, nil), ShouldNotBeNil)
		})
	})
}

func TestAvailabilityStore(t *testing.T) {
	Convey("TestAvailabilityStore", t, func() {
		ctx := context.Background()
		av := domain.BaAvailability{BaID: 3, TimeID: storeTestTime, WindowEnd: storeTestTime.Add(24 * time.Hour), Available: 86000, Unavailable: 400}

		tr := newMockTransport(201, `{}`)
		So(NewAvailabilityStore(newClientWithTransport(tr)).Upsert(ctx, av), ShouldBeNil)
		So(tr.path, ShouldEqual, "/"+AvailabilityIndex+"/_doc/3_"+itoa(storeTestTime.Unix()))

		qtr := newMockTransport(200, `{"hits":{"hits":[{"_source":{"ba_id":3,"available":86000,"unavailable":400}}]}}`)
		items, err := NewAvailabilityStore(newClientWithTransport(qtr)).QueryByBaID(ctx, 3, storeTestTime, storeTestTime.Add(48*time.Hour))
		So(err, ShouldBeNil)
		So(items[0].Unavailable, ShouldEqual, 400)
		So(qtr.body, ShouldContainSubstring, `"time_id"`)
	})
}
