package availability

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils/timex"
)

// Job 按天汇总已持久化的 BA 事件并写回可用性索引。
type Job struct {
	repos core.RepositoryFactory
	now   func() time.Time
}

func NewJob(repos core.RepositoryFactory) *Job {
	return &Job{repos: repos, now: timex.NowLocalTime}
}

// RunYesterday 计算前一个自然日，供定时任务调用。
func (j *Job) RunYesterday(ctx context.Context) error {
	today := timex.StartOfDay(j.now())
	_, err := j.RunDay(ctx, today.AddDate(0, 0, -1))
	return err
}

// RunDay 计算 day 所在自然日 [00:00, 次日 00:00) 的可用性，返回写入的条数。
func (j *Job) RunDay(ctx context.Context, day time.Time) (int, error) {
	start := timex.StartOfDay(day)
	end := start.AddDate(0, 0, 1)

	events, err := j.repos.BaEvent().QueryInWindow(ctx, start, end)
	if err != nil {
		return 0, errors.Wrap(err, "查询 BA 事件失败")
	}

	results := Build(events, start, end)
	for _, av := range results {
		if err := j.repos.Availability().Upsert(ctx, av); err != nil {
			return 0, errors.Wrapf(err, "写入 BA %d 可用性失败", av.BaID)
		}
	}
	log.Infof("可用性统计完成: %s, %d 个事件, %d 个 BA", start.Format(time.DateOnly), len(events), len(results))
	return len(results), nil
}

// Build 按 BA 分组计算，结果按 BA ID 升序。
func Build(events []domain.BaEvent, start, end time.Time) []domain.BaAvailability {
	builders := make(map[uint32]*Builder)
	for _, ev := range events {
		b, ok := builders[ev.BaID]
		if !ok {
			b = NewBuilder(ev.BaID, start, end)
			builders[ev.BaID] = b
		}
		b.AddEvent(ev)
	}
	out := make([]domain.BaAvailability, 0, len(builders))
	for _, b := range builders {
		out = append(out, b.Result())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].BaID < out[k].BaID })
	return out
}
