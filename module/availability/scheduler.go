package availability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

const defaultCronSpec = "5 0 * * *"

// Scheduler 按 cron 表达式执行可用性统计，上一次未结束时跳过本次。
type Scheduler struct {
	cronExpr string
	task     func(context.Context) error

	mu      sync.Mutex
	running bool
}

func NewScheduler(spec string, task func(context.Context) error) *Scheduler {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultCronSpec
	}
	return &Scheduler{cronExpr: spec, task: task}
}

// Run 阻塞直到 ctx 取消，退出前等待正在执行的任务结束。
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	id, err := c.AddFunc(s.cronExpr, func() { s.runOnce(ctx) })
	if err != nil {
		return errors.Wrapf(err, "注册定时任务失败: %s", s.cronExpr)
	}
	c.Start()
	log.Infof("可用性统计调度已启动, cron=%s, next=%s", s.cronExpr, c.Entry(id).Next.Format(time.DateTime))

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("可用性统计调度已停止")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.task == nil {
		log.Warn("可用性统计任务未配置")
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("上一次可用性统计仍在执行，跳过本次")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.task(ctx); err != nil {
		log.Errorw("可用性统计失败", "duration", time.Since(start), "error", err)
		return
	}
	log.Infow("可用性统计完成", "duration", time.Since(start))
}
