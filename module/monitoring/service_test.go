package monitoring

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/monitoring/standardizer"
)

func TestService(t *testing.T) {
	Convey("TestService", t, func() {
		ctx := context.Background()
		src := &staticConfig{cfg: testConfig()}
		repos := &fakeRepos{}
		producer := &fakeProducer{}
		cache := &fakeStateCache{}

		Convey("启动时恢复状态，消费更新，退出时保存状态", func() {
			since := time.Now().Add(-time.Hour)
			cache.state = domain.EngineState{
				InheritedDowntimes: []domain.InheritedDowntime{{BaID: 1}},
				BaEvents:           []domain.BaEvent{{BaID: 1, StartTime: since, Status: domain.StateOk, FirstLevel: 100}},
			}
			runCtx, cancel := context.WithCancel(ctx)
			consumer := &fakeConsumer{
				messages: []core.KafkaMessage{
					{Value: []byte(`{"type":"service_status","data":{"host_id":1,"service_id":11,"current_state":"CRITICAL","last_hard_state":"CRITICAL","state_type":1}}`)},
				},
				done: cancel,
			}
			s := newService(src, repos, cache, producer, consumer, standardizer.NewNativeStandardizer())

			So(s.Start(runCtx), ShouldBeNil)
			So(consumer.errs[0], ShouldBeNil)

			views := s.Engine().BAState(1)
			So(views[0].LevelHard, ShouldEqual, 50)
			So(views[0].StateHard, ShouldEqual, domain.StateCritical)

			// 恢复的事件原样写回，随后被 CRITICAL 关闭
			So(repos.baEvents[0].StartTime.Equal(since), ShouldBeTrue)
			last := repos.baEvents[len(repos.baEvents)-1]
			So(last.Status, ShouldEqual, domain.StateCritical)
			So(last.Open(), ShouldBeTrue)
			So(len(repos.durations), ShouldBeGreaterThanOrEqualTo, 1)
			So(repos.durations[0].StartTime.Equal(since), ShouldBeTrue)

			So(len(cache.saved), ShouldEqual, 1)
			So(cache.saved[0].BaEvents[0].Status, ShouldEqual, domain.StateCritical)
		})

		Convey("读取状态失败时从空状态启动", func() {
			cache.loadErr = errBoom
			s := newService(src, repos, cache, producer, &fakeConsumer{}, standardizer.NewNativeStandardizer())
			So(s.reload(ctx, src.GetConfig()), ShouldBeNil)
			So(s.Engine().BAState(1)[0].StateHard, ShouldEqual, domain.StateOk)
			So(s.reload(ctx, nil), ShouldNotBeNil)
		})

		Convey("配置快照变化", func() {
			s := newService(src, repos, cache, producer, &fakeConsumer{}, standardizer.NewNativeStandardizer())
			So(s.reload(ctx, src.GetConfig()), ShouldBeNil)
			saved := len(cache.saved)

			Convey("BAM 定义未变只替换快照", func() {
				same := testConfig()
				src.set(same)
				s.checkConfig(ctx)
				So(s.applied, ShouldPointTo, same)
				So(len(cache.saved), ShouldEqual, saved)
			})

			Convey("BAM 定义变化时保存状态并重建", func() {
				changed := testConfig()
				changed.BAM.BAs = append(changed.BAM.BAs, config.BADef{ID: 2, Name: "db", StateSource: "worst"})
				src.set(changed)
				s.checkConfig(ctx)
				So(s.applied, ShouldPointTo, changed)
				So(len(cache.saved), ShouldEqual, saved+1)
				So(len(s.Engine().BAState(1, 2)), ShouldEqual, 2)
			})

			Convey("日志级别变化时同步调整", func() {
				defer func() { _ = log.SetLevel("info") }()
				changed := testConfig()
				changed.Log.Level = "debug"
				src.set(changed)
				s.checkConfig(ctx)
				So(log.Level(), ShouldEqual, "debug")
				So(len(cache.saved), ShouldEqual, saved)
			})

			Convey("同一快照不处理", func() {
				s.checkConfig(ctx)
				So(len(cache.saved), ShouldEqual, saved)
			})
		})

		Convey("服务名解析读取最新快照", func() {
			r := configResolver{src: src}
			host, svc, ok := r.ResolveService("web-01", "http")
			So(ok, ShouldBeTrue)
			So(host, ShouldEqual, 1)
			So(svc, ShouldEqual, 11)

			src.set(nil)
			_, _, ok = r.ResolveService("web-01", "http")
			So(ok, ShouldBeFalse)
		})

		Convey("关闭 Kafka 客户端并汇总错误", func() {
			consumer := &fakeConsumer{closeErr: errBoom}
			s := newService(src, repos, nil, producer, consumer, nil)
			err := s.Close()
			So(err.Error(), ShouldContainSubstring, "1 个错误")
			So(producer.closed, ShouldBeTrue)
			s.saveState(ctx)
		})
	})
}
