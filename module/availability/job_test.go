package availability

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

type memRepos struct {
	events   []domain.BaEvent
	queryErr error
	writeErr error
	start    time.Time
	end      time.Time
	written  []domain.BaAvailability
}

func (m *memRepos) BaEvent() core.BaEventRepository                 { return memBaEvents{m} }
func (m *memRepos) KpiEvent() core.KpiEventRepository               { return nil }
func (m *memRepos) BaDurationEvent() core.BaDurationEventRepository { return nil }
func (m *memRepos) Status() core.StatusRepository                   { return nil }
func (m *memRepos) Availability() core.AvailabilityRepository       { return memAvail{m} }

type memBaEvents struct{ m *memRepos }

func (r memBaEvents) Upsert(context.Context, domain.BaEvent) error { return nil }
func (r memBaEvents) QueryByBaID(context.Context, uint32, time.Time, time.Time) ([]domain.BaEvent, error) {
	return nil, nil
}
func (r memBaEvents) QueryInWindow(_ context.Context, start, end time.Time) ([]domain.BaEvent, error) {
	r.m.start, r.m.end = start, end
	return r.m.events, r.m.queryErr
}

type memAvail struct{ m *memRepos }

func (r memAvail) Upsert(_ context.Context, av domain.BaAvailability) error {
	if r.m.writeErr != nil {
		return r.m.writeErr
	}
	r.m.written = append(r.m.written, av)
	return nil
}
func (r memAvail) QueryByBaID(context.Context, uint32, time.Time, time.Time) ([]domain.BaAvailability, error) {
	return r.m.written, nil
}

func TestJob(t *testing.T) {
	Convey("TestJob", t, func() {
		ctx := context.Background()
		repos := &memRepos{events: []domain.BaEvent{
			closed(2, domain.StateCritical, at(1, 0), at(2, 0)),
			closed(1, domain.StateOk, day, at(12, 0)),
			closed(2, domain.StateOk, at(2, 0), at(3, 0)),
		}}
		job := NewJob(repos)

		Convey("按 BA 分组写入", func() {
			n, err := job.RunDay(ctx, at(15, 0))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(repos.start, ShouldEqual, day)
			So(repos.end, ShouldEqual, day.AddDate(0, 0, 1))
			So(repos.written[0].BaID, ShouldEqual, 1)
			So(repos.written[0].Available, ShouldEqual, 12*3600)
			So(repos.written[1].Unavailable, ShouldEqual, 3600)
			So(repos.written[1].Available, ShouldEqual, 3600)
		})

		Convey("定时任务计算前一天", func() {
			job.now = func() time.Time { return day.AddDate(0, 0, 1).Add(5 * time.Minute) }
			So(job.RunYesterday(ctx), ShouldBeNil)
			So(repos.start, ShouldEqual, day)
		})

		Convey("查询或写入失败", func() {
			repos.queryErr = errors.New("search failed")
			_, err := job.RunDay(ctx, day)
			So(err.Error(), ShouldContainSubstring, "查询 BA 事件失败")

			repos.queryErr = nil
			repos.writeErr = errors.New("index failed")
			_, err = job.RunDay(ctx, day)
			So(err.Error(), ShouldContainSubstring, "写入 BA 1 可用性失败")
		})
	})
}
