package monitoring

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/monitoring/standardizer"
)

type handlerFunc func(ctx context.Context, u domain.Update) error

func (f handlerFunc) HandleUpdate(ctx context.Context, u domain.Update) error { return f(ctx, u) }

func TestIngestStage(t *testing.T) {
	Convey("TestIngestStage", t, func() {
		var got []domain.Update
		handler := handlerFunc(func(_ context.Context, u domain.Update) error {
			if u.Metric != nil && u.Metric.MetricID == 13 {
				return errBoom
			}
			got = append(got, u)
			return nil
		})

		Convey("缺少依赖时不启动", func() {
			std := standardizer.NewNativeStandardizer()
			So(NewIngestStage(nil, std, handler).Start(context.Background()), ShouldNotBeNil)
			So(NewIngestStage(&fakeConsumer{}, nil, handler).Start(context.Background()), ShouldNotBeNil)
			So(NewIngestStage(&fakeConsumer{}, std, nil).Start(context.Background()), ShouldNotBeNil)
		})

		Convey("逐条标准化并交给引擎，单条失败不影响后续", func() {
			ctx, cancel := context.WithCancel(context.Background())
			consumer := &fakeConsumer{
				messages: []core.KafkaMessage{
					{Offset: 1, Value: []byte(`{"type":"metric","data":{"metric_id":12,"value":3}}`)},
					{Offset: 2, Value: []byte(`garbage`)},
					{Offset: 3, Value: []byte(`{"type":"metric","data":{"metric_id":13,"value":3}}`)},
					{Offset: 4, Value: []byte(`{"type":"service_status","data":{"host_id":1,"service_id":11,"current_state":2}}`)},
				},
				done: cancel,
			}
			stage := NewIngestStage(consumer, standardizer.NewNativeStandardizer(), handler)

			err := stage.Start(ctx)
			So(err, ShouldEqual, context.Canceled)
			So(len(got), ShouldEqual, 2)
			So(got[0].Metric.MetricID, ShouldEqual, 12)
			So(got[1].ServiceStatus.CurrentState, ShouldEqual, domain.StateCritical)

			So(consumer.errs[0], ShouldBeNil)
			So(consumer.errs[1].Error(), ShouldContainSubstring, "standardize update")
			So(consumer.errs[2].Error(), ShouldContainSubstring, "apply metric update")
			So(consumer.errs[3], ShouldBeNil)
		})
	})
}
