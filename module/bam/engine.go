package bam

import (
	"context"
	"math"
	"sync"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/metrics"
	"github.com/pkg/errors"
)

// Engine 持有当前计算图，所有更新在同一把锁下串行处理。
type Engine struct {
	mu     sync.Mutex
	graph  *Graph
	stream core.Stream
	cache  *EventCacheVisitor
}

var _ core.UpdateHandler = (*Engine)(nil)

func NewEngine(stream core.Stream) *Engine {
	return &Engine{
		graph:  NewGraph(),
		stream: stream,
		cache:  NewEventCacheVisitor(),
	}
}

// Load 替换计算图：先恢复打开的事件和叶子输入并重算汇总，再访问全部节点输出初始事件与状态。
func (e *Engine) Load(ctx context.Context, g *Graph, state domain.EngineState) error {
	if g == nil {
		return errors.New("计算图为空")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	restore(g, state)
	restoreLeaves(g, state)
	settle(g)
	e.graph = g
	for kind, n := range countByKind(g) {
		metrics.GraphNodes.WithLabelValues(kind.String()).Set(float64(n))
	}

	for _, k := range g.Kpis() {
		k.Visit(e.cache)
	}
	for _, ba := range g.BAs() {
		ba.Visit(e.cache)
	}
	for _, m := range g.MetaServices() {
		m.Visit(e.cache)
	}
	return e.commit(ctx)
}

func countByKind(g *Graph) map[NodeKind]int {
	out := map[NodeKind]int{KindBA: 0, KindKpi: 0, KindMetaService: 0, KindBoolExp: 0}
	for id := range g.nodes {
		out[id.Kind]++
	}
	return out
}

// Snapshot 导出崩溃恢复和重载需要的状态：继承停机、打开的事件与叶子输入。
func (e *Engine) Snapshot() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	var state domain.EngineState
	for _, ba := range e.graph.BAs() {
		if dt := ba.SaveInheritedDowntime(); dt != nil {
			state.InheritedDowntimes = append(state.InheritedDowntimes, *dt)
		}
		if ev := ba.OpenEvent(); ev != nil {
			state.BaEvents = append(state.BaEvents, *ev)
		}
	}
	for _, k := range e.graph.Kpis() {
		if ev := k.OpenEvent(); ev != nil {
			state.KpiEvents = append(state.KpiEvents, *ev)
		}
	}
	state.Services, state.Metrics = snapshotLeaves(e.graph)
	return state
}

// HandleUpdate 将原始更新分发到订阅它的叶子节点，并提交产生的事件。
func (e *Engine) HandleUpdate(ctx context.Context, u domain.Update) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch u.Type {
	case domain.UpdateTypeServiceStatus:
		if u.ServiceStatus == nil {
			err = errors.New("service_status 更新缺少内容")
			break
		}
		for _, l := range e.graph.ServiceListeners(u.ServiceStatus.HostID, u.ServiceStatus.ServiceID) {
			l.ServiceStatusUpdate(u.ServiceStatus, e.cache)
		}
	case domain.UpdateTypeAcknowledgement:
		if u.Acknowledgement == nil {
			err = errors.New("acknowledgement 更新缺少内容")
			break
		}
		for _, l := range e.graph.ServiceListeners(u.Acknowledgement.HostID, u.Acknowledgement.ServiceID) {
			l.AcknowledgementUpdate(u.Acknowledgement, e.cache)
		}
	case domain.UpdateTypeDowntime:
		if u.Downtime == nil {
			err = errors.New("downtime 更新缺少内容")
			break
		}
		for _, l := range e.graph.ServiceListeners(u.Downtime.HostID, u.Downtime.ServiceID) {
			l.DowntimeUpdate(u.Downtime, e.cache)
		}
	case domain.UpdateTypeMetric:
		if u.Metric == nil {
			err = errors.New("metric 更新缺少内容")
			break
		}
		for _, l := range e.graph.MetricListeners(u.Metric.MetricID) {
			l.MetricUpdate(u.Metric, e.cache)
		}
	default:
		err = errors.Errorf("未知的更新类型: %s", u.Type)
	}
	if err != nil {
		metrics.UpdatesTotal.WithLabelValues(string(u.Type), "rejected").Inc()
		return err
	}

	err = e.commit(ctx)
	result := "ok"
	if err != nil {
		result = "commit_failed"
	}
	metrics.UpdatesTotal.WithLabelValues(string(u.Type), result).Inc()
	metrics.UpdateDuration.WithLabelValues(string(u.Type)).Observe(time.Since(start).Seconds())
	return err
}

func (e *Engine) commit(ctx context.Context) error {
	for _, ev := range e.cache.Events() {
		metrics.EventsTotal.WithLabelValues(string(ev.EventType())).Inc()
	}
	if err := e.cache.CommitTo(ctx, e.stream); err != nil {
		log.Errorf("BAM: 提交事件失败: %v", err)
		return err
	}
	return nil
}

// BAView BA 的实时状态
type BAView struct {
	ID              uint32             `json:"id"`
	Name            string             `json:"name"`
	StateSource     domain.StateSource `json:"state_source"`
	StateHard       domain.State       `json:"state_hard"`
	StateSoft       domain.State       `json:"state_soft"`
	LevelHard       float64            `json:"level_hard"`
	LevelSoft       float64            `json:"level_soft"`
	AckHard         float64            `json:"level_acknowledgement"`
	DowntimeHard    float64            `json:"level_downtime"`
	InDowntime      bool               `json:"in_downtime"`
	Valid           bool               `json:"valid"`
	NumKpis         int                `json:"num_kpis"`
	LastStateChange time.Time          `json:"last_state_change"`
	Output          string             `json:"output"`
}

// KPIView KPI 的实时状态
type KPIView struct {
	ID              uint32             `json:"id"`
	BaID            uint32             `json:"ba_id"`
	Type            string             `json:"type"`
	ImpactHard      domain.ImpactValue `json:"impact_hard"`
	ImpactSoft      domain.ImpactValue `json:"impact_soft"`
	InDowntime      bool               `json:"in_downtime"`
	Valid           bool               `json:"valid"`
	LastStateChange time.Time          `json:"last_state_change"`
}

// MetaView 元服务的实时状态
type MetaView struct {
	ID          uint32             `json:"id"`
	Computation domain.Computation `json:"computation"`
	Value       *float64           `json:"value"` // 无指标时为空
	State       domain.State       `json:"state"`
	NumMetrics  int                `json:"num_metrics"`
}

// BAState 按 ID 查询 BA 状态，不存在的 ID 被跳过。
func (e *Engine) BAState(ids ...uint32) []BAView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BAView, 0, len(ids))
	for _, id := range ids {
		ba := e.graph.BA(id)
		if ba == nil {
			continue
		}
		out = append(out, BAView{
			ID:              ba.ID(),
			Name:            ba.Name(),
			StateSource:     ba.StateSource(),
			StateHard:       ba.StateHard(),
			StateSoft:       ba.StateSoft(),
			LevelHard:       clampLevel(ba.LevelHard()),
			LevelSoft:       clampLevel(ba.LevelSoft()),
			AckHard:         clampLevel(ba.AckImpactHard()),
			DowntimeHard:    clampLevel(ba.DowntimeImpactHard()),
			InDowntime:      ba.InDowntime(),
			Valid:           ba.Valid(),
			NumKpis:         ba.NumImpacts(),
			LastStateChange: ba.LastStateChange(),
			Output:          ba.Output(),
		})
	}
	return out
}

// KPIState 按 ID 查询 KPI 状态，不存在的 ID 被跳过。
func (e *Engine) KPIState(ids ...uint32) []KPIView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]KPIView, 0, len(ids))
	for _, id := range ids {
		k := e.graph.Kpi(id)
		if k == nil {
			continue
		}
		out = append(out, KPIView{
			ID:              k.KpiID(),
			BaID:            k.BaID(),
			Type:            kpiType(k),
			ImpactHard:      k.ImpactHard(),
			ImpactSoft:      k.ImpactSoft(),
			InDowntime:      k.InDowntime(),
			Valid:           k.Valid(),
			LastStateChange: k.LastStateChange(),
		})
	}
	return out
}

// MetaState 按 ID 查询元服务状态，不存在的 ID 被跳过。
func (e *Engine) MetaState(ids ...uint32) []MetaView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]MetaView, 0, len(ids))
	for _, id := range ids {
		m := e.graph.MetaService(id)
		if m == nil {
			continue
		}
		view := MetaView{
			ID:          m.ID(),
			Computation: m.Computation(),
			State:       m.State(),
			NumMetrics:  len(m.metrics),
		}
		if value := m.Value(); !math.IsNaN(value) {
			view.Value = &value
		}
		out = append(out, view)
	}
	return out
}

func kpiType(k Kpi) string {
	switch k.(type) {
	case *KpiService:
		return "service"
	case *KpiBA:
		return "ba"
	case *KpiMeta:
		return "meta"
	case *KpiBoolexp:
		return "boolexp"
	}
	return "unknown"
}
