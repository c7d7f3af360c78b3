package bam

import (
	"math"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// DefaultMetaStatusInterval 状态未变化时两次状态输出的最小间隔。
const DefaultMetaStatusInterval = 60 * time.Second

// MetaService 对一组原始指标做 min/max/sum/average 聚合。
type MetaService struct {
	computable
	hostID         uint32
	serviceID      uint32
	computation    domain.Computation
	levelWarning   float64
	levelCritical  float64
	metrics        map[uint32]float64
	value          float64
	recomputeCount int

	statusInterval time.Duration
	statusSent     bool
	lastState      domain.State
	lastStatusTime time.Time
}

var _ MetricListener = (*MetaService)(nil)

func NewMetaService(id, hostID, serviceID uint32, computation domain.Computation) *MetaService {
	return &MetaService{
		computable:     newComputable(NodeID{Kind: KindMetaService, ID: id}),
		hostID:         hostID,
		serviceID:      serviceID,
		computation:    computation,
		metrics:        make(map[uint32]float64),
		value:          math.NaN(),
		recomputeCount: recomputeLimit,
		statusInterval: DefaultMetaStatusInterval,
	}
}

func (m *MetaService) ID() uint32 { return m.id.ID }

func (m *MetaService) HostID() uint32 { return m.hostID }

func (m *MetaService) ServiceID() uint32 { return m.serviceID }

func (m *MetaService) Computation() domain.Computation { return m.computation }

func (m *MetaService) LevelWarning() float64 { return m.levelWarning }

func (m *MetaService) LevelCritical() float64 { return m.levelCritical }

func (m *MetaService) SetLevelWarning(level float64) { m.levelWarning = level }

func (m *MetaService) SetLevelCritical(level float64) { m.levelCritical = level }

func (m *MetaService) SetStatusInterval(d time.Duration) {
	if d > 0 {
		m.statusInterval = d
	}
}

// AddMetric 挂接指标，下次取值时全量重算。
func (m *MetaService) AddMetric(metricID uint32) {
	m.metrics[metricID] = 0
	m.recomputeCount = recomputeLimit
}

// RemoveMetric 移除指标，下次取值时全量重算。
func (m *MetaService) RemoveMetric(metricID uint32) {
	delete(m.metrics, metricID)
	m.recomputeCount = recomputeLimit
}

func (m *MetaService) MetricIDs() []uint32 {
	ids := make([]uint32, 0, len(m.metrics))
	for id := range m.metrics {
		ids = append(ids, id)
	}
	return ids
}

// restoreMetric 写入恢复的指标值，下次取值时全量重算。未挂接的指标被忽略。
func (m *MetaService) restoreMetric(metricID uint32, value float64) {
	if _, ok := m.metrics[metricID]; !ok {
		return
	}
	m.metrics[metricID] = value
	m.recomputeCount = recomputeLimit
}

// Value 当前聚合值，无指标时 min/max/average 为 NaN。
func (m *MetaService) Value() float64 {
	if m.recomputeCount >= recomputeLimit {
		m.recompute()
	}
	return m.value
}

// State 阈值方向由 warning 与 critical 的大小关系决定。
func (m *MetaService) State() domain.State {
	value := m.Value()
	lessThan := m.levelWarning < m.levelCritical
	switch {
	case (lessThan && value >= m.levelCritical) || (!lessThan && value <= m.levelCritical):
		return domain.StateCritical
	case (lessThan && value >= m.levelWarning) || (!lessThan && value <= m.levelWarning):
		return domain.StateWarning
	case math.IsNaN(value):
		return domain.StateUnknown
	}
	return domain.StateOk
}

func (m *MetaService) MetricUpdate(mu *domain.MetricUpdate, v Visitor) {
	if mu == nil {
		return
	}
	old, ok := m.metrics[mu.MetricID]
	if !ok {
		log.Debugf("BAM: 元服务 %d 未挂接指标 %d，忽略", m.ID(), mu.MetricID)
		return
	}
	if old == mu.Value {
		return
	}
	m.metrics[mu.MetricID] = mu.Value

	m.recomputeCount++
	if m.recomputeCount >= recomputeLimit {
		m.recompute()
	} else {
		m.recomputePartial(mu.Value, old)
	}

	m.Visit(v)
	m.PropagateUpdate(v)
}

func (m *MetaService) recompute() {
	switch m.computation {
	case domain.ComputationMin, domain.ComputationMax:
		m.value = math.NaN()
		first := true
		for _, val := range m.metrics {
			if first {
				m.value, first = val, false
				continue
			}
			if (m.computation == domain.ComputationMin && val < m.value) ||
				(m.computation == domain.ComputationMax && val > m.value) {
				m.value = val
			}
		}
	default:
		m.value = 0
		for _, val := range m.metrics {
			m.value += val
		}
		if m.computation != domain.ComputationSum {
			m.value /= float64(len(m.metrics))
		}
	}
	m.recomputeCount = 0
}

// recomputePartial 增量更新；极值可能丢失时退回全量重算。
func (m *MetaService) recomputePartial(newValue, oldValue float64) {
	switch m.computation {
	case domain.ComputationMin:
		if newValue <= m.value {
			m.value = newValue
		} else if m.value == oldValue {
			m.recompute()
		}
	case domain.ComputationMax:
		if newValue >= m.value {
			m.value = newValue
		} else if m.value == oldValue {
			m.recompute()
		}
	case domain.ComputationSum:
		m.value += newValue - oldValue
	default:
		m.value += (newValue - oldValue) / float64(len(m.metrics))
	}
}

func (m *MetaService) NotifyChildUpdate(Computable, Visitor) bool { return true }

func (m *MetaService) PropagateUpdate(v Visitor) { m.propagate(m, v) }

// Visit 状态变化或距上次输出超过间隔时输出 MetaServiceStatus。
func (m *MetaService) Visit(v Visitor) {
	state := m.State()
	changed := !m.statusSent || state != m.lastState
	now := nowFunc()
	if changed || now.Sub(m.lastStatusTime) >= m.statusInterval {
		emit(v, &domain.MetaServiceStatus{
			MetaServiceID: m.ID(),
			Value:         m.value,
			State:         state,
			StateChanged:  changed,
		})
		m.statusSent = true
		m.lastStatusTime = now
		log.Debugf("BAM: 元服务 %d 输出状态 value=%g state=%s", m.ID(), m.value, state)
	}
	m.lastState = state
}
