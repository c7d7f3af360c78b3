package cache

import (
	"context"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

func TestStateCache(t *testing.T) {
	Convey("TestStateCache", t, func() {
		ctx := context.Background()
		db, mock := redismock.NewClientMock()
		sc := NewStateCache(&RedisCache{client: db}, "", 0)
		So(sc.key, ShouldEqual, defaultStateKey)

		start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		st := domain.EngineState{
			InheritedDowntimes: []domain.InheritedDowntime{{BaID: 1, InDowntime: true}},
			BaEvents:           []domain.BaEvent{{BaID: 1, StartTime: start, Status: domain.StateCritical, InDowntime: true}},
			KpiEvents:          []domain.KpiEvent{{KpiID: 2, BaID: 1, StartTime: start, Status: domain.StateWarning, ImpactLevel: 30}},
			Services: []domain.ServiceState{{
				HostID: 1, ServiceID: 11, LastHardState: domain.StateCritical, CurrentState: domain.StateCritical,
				StateType: 1, Downtimes: []uint64{7}, LastCheck: start,
			}},
			Metrics: []domain.MetricValue{{MetricID: 102, Value: 160}},
		}
		data, _ := sonic.MarshalString(st)

		Convey("保存快照", func() {
			mock.ExpectSet(defaultStateKey, data, 0).SetVal("OK")
			So(sc.Save(ctx, st), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("配置 TTL 时带过期时间保存", func() {
			withTTL := NewStateCache(&RedisCache{client: db}, "bam:state", time.Hour)
			mock.ExpectSet("bam:state", data, time.Hour).SetVal("OK")
			So(withTTL.Save(ctx, st), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("读取快照", func() {
			mock.ExpectGet(defaultStateKey).SetVal(data)
			got, err := sc.Load(ctx)
			So(err, ShouldBeNil)
			So(len(got.BaEvents), ShouldEqual, 1)
			So(got.BaEvents[0].StartTime.Equal(start), ShouldBeTrue)
			So(got.BaEvents[0].Open(), ShouldBeTrue)
			So(got.KpiEvents[0].ImpactLevel, ShouldEqual, 30)
			So(got.InheritedDowntimes[0].InDowntime, ShouldBeTrue)
			So(got.Services[0].LastHardState, ShouldEqual, domain.StateCritical)
			So(got.Services[0].Downtimes, ShouldResemble, []uint64{7})
			So(got.Services[0].LastCheck.Equal(start), ShouldBeTrue)
			So(got.Metrics[0].Value, ShouldEqual, 160)
		})

		Convey("没有快照时返回空状态", func() {
			mock.ExpectGet(defaultStateKey).RedisNil()
			got, err := sc.Load(ctx)
			So(err, ShouldBeNil)
			So(got.BaEvents, ShouldBeEmpty)
		})

		Convey("快照损坏", func() {
			mock.ExpectGet(defaultStateKey).SetVal("{broken")
			_, err := sc.Load(ctx)
			So(err.Error(), ShouldContainSubstring, "解析引擎状态失败")
		})

		Convey("Redis 不可用", func() {
			mock.ExpectGet(defaultStateKey).SetErr(redis.ErrClosed)
			_, err := sc.Load(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}
