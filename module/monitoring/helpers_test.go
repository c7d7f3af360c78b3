package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

type publishedMessage struct {
	key   string
	value []byte
}

type fakeProducer struct {
	mu     sync.Mutex
	msgs   []publishedMessage
	err    error
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, publishedMessage{key: key, value: value})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

// fakeConsumer 依次投递消息，投递完后调用 done 并等待 ctx 结束。
type fakeConsumer struct {
	messages []core.KafkaMessage
	errs     []error
	done     func()
	closeErr error
}

func (c *fakeConsumer) ConsumeMessages(ctx context.Context, handler func(ctx context.Context, msg core.KafkaMessage) error) error {
	for _, m := range c.messages {
		c.errs = append(c.errs, handler(ctx, m))
	}
	if c.done != nil {
		c.done()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error { return c.closeErr }

type fakeRepos struct {
	baEvents   []domain.BaEvent
	kpiEvents  []domain.KpiEvent
	durations  []domain.BaDurationEvent
	statuses   []domain.Event
	avails     []domain.BaAvailability
	err        error
	queryItems []domain.BaEvent
}

func (r *fakeRepos) BaEvent() core.BaEventRepository                 { return baEventRepo{r} }
func (r *fakeRepos) KpiEvent() core.KpiEventRepository               { return kpiEventRepo{r} }
func (r *fakeRepos) BaDurationEvent() core.BaDurationEventRepository { return durationRepo{r} }
func (r *fakeRepos) Status() core.StatusRepository                   { return statusRepo{r} }
func (r *fakeRepos) Availability() core.AvailabilityRepository       { return availRepo{r} }

type baEventRepo struct{ r *fakeRepos }

func (b baEventRepo) Upsert(_ context.Context, ev domain.BaEvent) error {
	if b.r.err != nil {
		return b.r.err
	}
	b.r.baEvents = append(b.r.baEvents, ev)
	return nil
}

func (b baEventRepo) QueryByBaID(context.Context, uint32, time.Time, time.Time) ([]domain.BaEvent, error) {
	return b.r.queryItems, b.r.err
}

func (b baEventRepo) QueryInWindow(context.Context, time.Time, time.Time) ([]domain.BaEvent, error) {
	return b.r.queryItems, b.r.err
}

type kpiEventRepo struct{ r *fakeRepos }

func (k kpiEventRepo) Upsert(_ context.Context, ev domain.KpiEvent) error {
	k.r.kpiEvents = append(k.r.kpiEvents, ev)
	return k.r.err
}

func (k kpiEventRepo) QueryByKpiID(context.Context, uint32, time.Time, time.Time) ([]domain.KpiEvent, error) {
	return nil, k.r.err
}

type durationRepo struct{ r *fakeRepos }

func (d durationRepo) Upsert(_ context.Context, ev domain.BaDurationEvent) error {
	d.r.durations = append(d.r.durations, ev)
	return d.r.err
}

type statusRepo struct{ r *fakeRepos }

func (s statusRepo) Upsert(_ context.Context, ev domain.Event) error {
	s.r.statuses = append(s.r.statuses, ev)
	return s.r.err
}

type availRepo struct{ r *fakeRepos }

func (a availRepo) Upsert(_ context.Context, av domain.BaAvailability) error {
	a.r.avails = append(a.r.avails, av)
	return a.r.err
}

func (a availRepo) QueryByBaID(context.Context, uint32, time.Time, time.Time) ([]domain.BaAvailability, error) {
	return a.r.avails, a.r.err
}

type fakeStateCache struct {
	state   domain.EngineState
	saved   []domain.EngineState
	loadErr error
}

func (c *fakeStateCache) Save(_ context.Context, st domain.EngineState) error {
	c.saved = append(c.saved, st)
	return nil
}

func (c *fakeStateCache) Load(context.Context) (domain.EngineState, error) {
	return c.state, c.loadErr
}

type staticConfig struct {
	mu  sync.Mutex
	cfg *config.Config
}

func (s *staticConfig) GetConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *staticConfig) set(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// testConfig 一个服务 KPI 挂在一个 BA 上。
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Bam.Ingest.Source.Type = "native"
	cfg.Bam.MetaStatusInterval = time.Minute
	cfg.BAM = config.BAMConfig{
		Services: []config.ServiceDef{{HostName: "web-01", ServiceName: "http", HostID: 1, ServiceID: 11}},
		BAs: []config.BADef{
			{ID: 1, Name: "web", HostID: 1000, ServiceID: 1, StateSource: "impact", LevelWarning: 80, LevelCritical: 60},
		},
		KPIs: []config.KPIDef{
			{ID: 1, BaID: 1, Type: config.KPITypeService, HostID: 1, ServiceID: 11, ImpactCritical: 50, ImpactWarning: 25},
		},
	}
	return cfg
}

var errBoom = errors.New("boom")
