package bam

import (
	"fmt"
	"math"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"github.com/pkg/errors"
)

// recomputeLimit 增量更新累计到该次数后做一次全量重算，消除浮点累积误差。
const recomputeLimit = 100

// stateRank 最好/最坏状态比较用的序，OK < UNKNOWN < WARNING < CRITICAL。
var stateRank = [...]int{
	domain.StateOk:       0,
	domain.StateWarning:  3,
	domain.StateCritical: 4,
	domain.StateUnknown:  2,
}

func rankOf(s domain.State) int {
	if !s.Valid() {
		return stateRank[domain.StateUnknown]
	}
	return stateRank[s]
}

// impactInfo BA 为每个子 KPI 保存的最近一次影响值。
type impactInfo struct {
	kpi        Kpi
	hard       domain.ImpactValue
	soft       domain.ImpactValue
	inDowntime bool
}

// BA 业务活动：按 StateSource 聚合子 KPI 的影响。
type BA struct {
	computable
	hostID                uint32
	serviceID             uint32
	name                  string
	stateSource           domain.StateSource
	dtBehaviour           domain.DowntimeBehaviour
	generateVirtualStatus bool

	levelWarning  float64
	levelCritical float64

	levelHard       float64
	levelSoft       float64
	ackHard         float64
	ackSoft         float64
	downtimeHard    float64
	downtimeSoft    float64
	numHardCritical int
	numSoftCritical int

	computedHardState domain.State
	computedSoftState domain.State

	inDowntime     bool
	lastKpiUpdate  time.Time
	valid          bool
	recomputeCount int

	impacts           map[NodeID]*impactInfo
	event             *domain.BaEvent
	inheritedDowntime *domain.InheritedDowntime
	initialEvents     []domain.BaEvent

	statusSent bool
	lastState  domain.State
}

func NewBA(id, hostID, serviceID uint32, source domain.StateSource, generateVirtualStatus bool) *BA {
	b := &BA{
		computable:            newComputable(NodeID{Kind: KindBA, ID: id}),
		hostID:                hostID,
		serviceID:             serviceID,
		stateSource:           source,
		dtBehaviour:           domain.DowntimeIgnore,
		generateVirtualStatus: generateVirtualStatus,
		levelHard:             100,
		levelSoft:             100,
		valid:                 true,
		impacts:               make(map[NodeID]*impactInfo),
	}
	b.resetStateAggregate()
	return b
}

func (b *BA) ID() uint32 { return b.id.ID }

func (b *BA) HostID() uint32 { return b.hostID }

func (b *BA) ServiceID() uint32 { return b.serviceID }

func (b *BA) Name() string { return b.name }

func (b *BA) SetName(name string) { b.name = name }

func (b *BA) StateSource() domain.StateSource { return b.stateSource }

func (b *BA) DowntimeBehaviour() domain.DowntimeBehaviour { return b.dtBehaviour }

func (b *BA) SetDowntimeBehaviour(dt domain.DowntimeBehaviour) { b.dtBehaviour = dt }

func (b *BA) LevelWarning() float64 { return b.levelWarning }

func (b *BA) LevelCritical() float64 { return b.levelCritical }

func (b *BA) SetLevelWarning(level float64) { b.levelWarning = level }

func (b *BA) SetLevelCritical(level float64) { b.levelCritical = level }

func (b *BA) Valid() bool { return b.valid }

// SetValid 无效的 BA 状态固定为 UNKNOWN。
func (b *BA) SetValid(valid bool) { b.valid = valid }

func (b *BA) InDowntime() bool { return b.inDowntime }

func (b *BA) LastKpiUpdate() time.Time { return b.lastKpiUpdate }

func (b *BA) LevelHard() float64 { return b.levelHard }

func (b *BA) LevelSoft() float64 { return b.levelSoft }

func (b *BA) AckImpactHard() float64 { return b.ackHard }

func (b *BA) AckImpactSoft() float64 { return b.ackSoft }

func (b *BA) DowntimeImpactHard() float64 { return b.downtimeHard }

func (b *BA) DowntimeImpactSoft() float64 { return b.downtimeSoft }

func (b *BA) NumImpacts() int { return len(b.impacts) }

// OpenEvent 返回当前打开事件的副本。
func (b *BA) OpenEvent() *domain.BaEvent {
	if b.event == nil {
		return nil
	}
	ev := *b.event
	return &ev
}

// LastStateChange 当前事件的开始时间，没有事件时为当前时间。
func (b *BA) LastStateChange() time.Time {
	if b.event != nil {
		return b.event.StartTime
	}
	return nowFunc()
}

// AddImpact 挂接 KPI 并立即计入其影响，重复挂接无效。
func (b *BA) AddImpact(k Kpi) {
	if k == nil {
		return
	}
	key := k.NodeID()
	if _, ok := b.impacts[key]; ok {
		return
	}
	info := &impactInfo{
		kpi:        k,
		hard:       k.ImpactHard(),
		soft:       k.ImpactSoft(),
		inDowntime: k.InDowntime(),
	}
	b.impacts[key] = info
	b.applyImpact(info)
	b.touch(k.LastStateChange())
}

// RemoveImpact 撤销 KPI 的影响并解除挂接。
func (b *BA) RemoveImpact(k Kpi) {
	if k == nil {
		return
	}
	key := k.NodeID()
	info, ok := b.impacts[key]
	if !ok {
		return
	}
	b.unapplyImpact(key, info)
	delete(b.impacts, key)
}

func (b *BA) NotifyChildUpdate(child Computable, v Visitor) bool {
	if child == nil {
		return false
	}
	key := child.NodeID()
	info, ok := b.impacts[key]
	if !ok {
		return false
	}

	k := info.kpi
	hard, soft, inDowntime := k.ImpactHard(), k.ImpactSoft(), k.InDowntime()
	if hard.Equal(info.hard) && soft.Equal(info.soft) && inDowntime == info.inDowntime {
		return false
	}

	log.Debugf("BAM: ba %d 收到 kpi %d 变更通知, hard=%v soft=%v downtime=%v",
		b.ID(), k.KpiID(), hard, soft, inDowntime)

	b.touch(k.LastStateChange())
	b.unapplyImpact(key, info)
	info.hard, info.soft, info.inDowntime = hard, soft, inDowntime
	b.applyImpact(info)
	b.computeInheritedDowntime(v)
	b.Visit(v)
	return true
}

func (b *BA) PropagateUpdate(v Visitor) { b.propagate(b, v) }

func (b *BA) touch(t time.Time) {
	if t.After(b.lastKpiUpdate) {
		b.lastKpiUpdate = t
	}
}

// ignored 停机中的 KPI 在 ignore_kpi 模式下不参与名义影响和状态聚合。
func (b *BA) ignored(info *impactInfo) bool {
	return b.dtBehaviour == domain.DowntimeIgnoreKpi && info.inDowntime
}

func (b *BA) applyImpact(info *impactInfo) {
	b.ackHard += info.hard.Acknowledgement
	b.ackSoft += info.soft.Acknowledgement
	b.downtimeHard += info.hard.Downtime
	b.downtimeSoft += info.soft.Downtime
	if b.ignored(info) {
		return
	}
	b.levelHard -= info.hard.Nominal
	b.levelSoft -= info.soft.Nominal
	b.applyState(info)
}

func (b *BA) applyState(info *impactInfo) {
	switch b.stateSource {
	case domain.StateSourceBest:
		if rankOf(info.hard.State) < rankOf(b.computedHardState) {
			b.computedHardState = info.hard.State
		}
		if rankOf(info.soft.State) < rankOf(b.computedSoftState) {
			b.computedSoftState = info.soft.State
		}
	case domain.StateSourceWorst:
		if rankOf(info.hard.State) > rankOf(b.computedHardState) {
			b.computedHardState = info.hard.State
		}
		if rankOf(info.soft.State) > rankOf(b.computedSoftState) {
			b.computedSoftState = info.soft.State
		}
	case domain.StateSourceRatioNumber, domain.StateSourceRatioPercent:
		if info.hard.State == domain.StateCritical {
			b.numHardCritical++
		}
		if info.soft.State == domain.StateCritical {
			b.numSoftCritical++
		}
	}
}

// unapplyImpact 撤销一个 KPI 的影响。最好/最坏/比例聚合无法直接相减，
// 重置后除 key 以外的 KPI 全部重新计入。
func (b *BA) unapplyImpact(key NodeID, info *impactInfo) {
	if b.stateSource == domain.StateSourceImpact {
		b.recomputeCount++
		if b.recomputeCount >= recomputeLimit {
			b.recompute()
		}
	}

	b.ackHard -= info.hard.Acknowledgement
	b.ackSoft -= info.soft.Acknowledgement
	b.downtimeHard -= info.hard.Downtime
	b.downtimeSoft -= info.soft.Downtime
	if !b.ignored(info) {
		b.levelHard += info.hard.Nominal
		b.levelSoft += info.soft.Nominal
	}

	switch b.stateSource {
	case domain.StateSourceBest, domain.StateSourceWorst,
		domain.StateSourceRatioNumber, domain.StateSourceRatioPercent:
		b.resetStateAggregate()
		for k, other := range b.impacts {
			if k == key || b.ignored(other) {
				continue
			}
			b.applyState(other)
		}
	}
}

func (b *BA) resetStateAggregate() {
	switch b.stateSource {
	case domain.StateSourceBest:
		b.computedHardState, b.computedSoftState = domain.StateCritical, domain.StateCritical
	case domain.StateSourceWorst:
		b.computedHardState, b.computedSoftState = domain.StateOk, domain.StateOk
	}
	b.numHardCritical, b.numSoftCritical = 0, 0
}

// recompute 清零后按当前保存的影响全量重算。
func (b *BA) recompute() {
	b.levelHard, b.levelSoft = 100, 100
	b.ackHard, b.ackSoft = 0, 0
	b.downtimeHard, b.downtimeSoft = 0, 0
	b.resetStateAggregate()
	for _, info := range b.impacts {
		b.applyImpact(info)
	}
	b.recomputeCount = 0
}

// settle 重新读取全部子 KPI 的影响并全量重算，不访问也不输出事件。
func (b *BA) settle() bool {
	changed := false
	for _, info := range b.impacts {
		k := info.kpi
		hard, soft, inDowntime := k.ImpactHard(), k.ImpactSoft(), k.InDowntime()
		if hard.Equal(info.hard) && soft.Equal(info.soft) && inDowntime == info.inDowntime {
			continue
		}
		info.hard, info.soft, info.inDowntime = hard, soft, inDowntime
		b.touch(k.LastStateChange())
		changed = true
	}
	if changed {
		b.recompute()
	}
	return changed
}

func (b *BA) StateHard() domain.State {
	return b.computeState(b.levelHard, b.computedHardState, b.numHardCritical)
}

func (b *BA) StateSoft() domain.State {
	return b.computeState(b.levelSoft, b.computedSoftState, b.numSoftCritical)
}

func (b *BA) computeState(level float64, computed domain.State, numCritical int) domain.State {
	if !b.valid {
		return domain.StateUnknown
	}
	switch b.stateSource {
	case domain.StateSourceImpact:
		if level <= b.levelCritical {
			return domain.StateCritical
		}
		if level <= b.levelWarning {
			return domain.StateWarning
		}
		return domain.StateOk
	case domain.StateSourceBest, domain.StateSourceWorst:
		if b.dtBehaviour == domain.DowntimeIgnoreKpi && b.everyKpiInDowntime() {
			return domain.StateOk
		}
		return computed
	case domain.StateSourceRatioNumber:
		return b.ratioState(float64(numCritical))
	case domain.StateSourceRatioPercent:
		// 没有 KPI 时结果为 NaN，两个比较都不成立，状态为 OK。
		return b.ratioState(float64(numCritical) * 100 / float64(len(b.impacts)))
	}
	return domain.StateUnknown
}

func (b *BA) ratioState(v float64) domain.State {
	if v >= b.levelCritical {
		return domain.StateCritical
	}
	if v >= b.levelWarning {
		return domain.StateWarning
	}
	return domain.StateOk
}

func (b *BA) everyKpiInDowntime() bool {
	for _, info := range b.impacts {
		if !info.inDowntime {
			return false
		}
	}
	return true
}

// computeInheritedDowntime 所有子 KPI 都处于 OK 或停机且 BA 非 OK 时，BA 继承停机。
func (b *BA) computeInheritedDowntime(v Visitor) {
	if b.dtBehaviour != domain.DowntimeInherit {
		return
	}

	every := len(b.impacts) > 0
	for _, info := range b.impacts {
		if !info.kpi.OkState() && !info.kpi.InDowntime() {
			every = false
			break
		}
	}

	hard := b.StateHard()
	if hard != domain.StateOk && every && b.inheritedDowntime == nil {
		b.inheritedDowntime = &domain.InheritedDowntime{BaID: b.ID(), InDowntime: true}
		b.inDowntime = true
		dt := *b.inheritedDowntime
		emit(v, &dt)
		log.Infof("BAM: ba %d 继承停机", b.ID())
	} else if (hard == domain.StateOk || !every) && b.inheritedDowntime != nil {
		b.inheritedDowntime.InDowntime = false
		b.inDowntime = false
		dt := *b.inheritedDowntime
		b.inheritedDowntime = nil
		emit(v, &dt)
		log.Infof("BAM: ba %d 解除继承停机", b.ID())
	}
}

// SaveInheritedDowntime 返回需要持久化的继承停机记录。
func (b *BA) SaveInheritedDowntime() *domain.InheritedDowntime {
	if b.inheritedDowntime == nil {
		return nil
	}
	dt := *b.inheritedDowntime
	return &dt
}

// SetInheritedDowntime 从持久化记录恢复继承停机。
func (b *BA) SetInheritedDowntime(dt domain.InheritedDowntime) {
	if !dt.InDowntime {
		return
	}
	dt.BaID = b.ID()
	b.inheritedDowntime = &dt
	b.inDowntime = true
}

// SetInitialEvent 用持久化的打开事件初始化 BA，只允许一次。
func (b *BA) SetInitialEvent(ev domain.BaEvent) error {
	if b.event != nil {
		log.Warnf("BAM: ba %d 已有初始事件，忽略重复设置", b.ID())
		return errors.Errorf("ba %d initial event already set", b.ID())
	}
	seed := ev
	b.event = &seed
	b.initialEvents = append(b.initialEvents, ev)
	return nil
}

// Visit 维护 BA 事件区间并输出状态快照。
func (b *BA) Visit(v Visitor) {
	if v != nil && len(b.initialEvents) > 0 {
		for i := range b.initialEvents {
			ev := b.initialEvents[i]
			v.Write(&ev)
		}
		b.initialEvents = nil
	}

	hard := b.StateHard()
	if b.event == nil {
		if b.lastKpiUpdate.IsZero() {
			b.lastKpiUpdate = nowFunc()
		}
		b.openEvent(v, b.lastKpiUpdate, hard)
	} else if b.event.InDowntime != b.inDowntime || b.event.Status != hard {
		at := b.lastKpiUpdate
		if at.Before(b.event.StartTime) {
			at = b.event.StartTime
		}
		closed := *b.event
		closed.EndTime = &at
		b.event = nil
		emit(v, &closed)
		b.openEvent(v, at, hard)
	}

	changed := !b.statusSent || b.lastState != hard
	b.statusSent, b.lastState = true, hard
	emit(v, &domain.BaStatus{
		BaID:                 b.ID(),
		InDowntime:           b.inDowntime,
		LastStateChange:      b.LastStateChange(),
		LevelAcknowledgement: clampLevel(b.ackHard),
		LevelDowntime:        clampLevel(b.downtimeHard),
		LevelNominal:         clampLevel(b.levelHard),
		State:                hard,
		StateChanged:         changed,
	})

	if b.generateVirtualStatus {
		emit(v, &domain.ServiceStatus{
			HostID:        b.hostID,
			ServiceID:     b.serviceID,
			CurrentState:  b.StateSoft(),
			LastHardState: hard,
			StateType:     1,
			Output:        b.Output(),
			Perfdata:      b.Perfdata(),
			LastCheck:     b.lastKpiUpdate,
			LastUpdate:    nowFunc(),
			ActiveChecks:  false,
			PassiveChecks: true,
		})
	}
}

func (b *BA) openEvent(v Visitor, start time.Time, status domain.State) {
	b.event = &domain.BaEvent{
		BaID:       b.ID(),
		StartTime:  start,
		Status:     status,
		InDowntime: b.inDowntime,
		FirstLevel: math.Max(b.levelHard, 0),
	}
	ev := *b.event
	emit(v, &ev)
}

// Output 人可读的状态摘要。
func (b *BA) Output() string {
	state := b.StateHard()
	switch b.stateSource {
	case domain.StateSourceBest:
		return fmt.Sprintf("Status is %s - Best state rule", state)
	case domain.StateSourceWorst:
		return fmt.Sprintf("Status is %s - Worst state rule", state)
	case domain.StateSourceRatioNumber:
		return fmt.Sprintf("Status is %s - %d out of %d KPI are in a CRITICAL state",
			state, b.numHardCritical, len(b.impacts))
	case domain.StateSourceRatioPercent:
		return fmt.Sprintf("Status is %s - %d%% of KPI are in a CRITICAL state",
			state, b.criticalPercent())
	}
	return fmt.Sprintf("Status is %s - Level = %g", state, clampLevel(b.levelHard))
}

// Perfdata 性能数据，格式 label=value;warn;crit;min;max。
func (b *BA) Perfdata() string {
	switch b.stateSource {
	case domain.StateSourceRatioNumber:
		return fmt.Sprintf("BA_Critical_Count=%d;%g;%g;0;%d BA_Downtime=%g",
			b.numHardCritical, b.levelWarning, b.levelCritical, len(b.impacts), clampLevel(b.downtimeHard))
	case domain.StateSourceRatioPercent:
		return fmt.Sprintf("BA_Critical_Percent=%d;%g;%g;0;100 BA_Downtime=%g",
			b.criticalPercent(), b.levelWarning, b.levelCritical, clampLevel(b.downtimeHard))
	}
	return fmt.Sprintf("BA_Level=%g;%g;%g;0;100 BA_Downtime=%g",
		clampLevel(b.levelHard), b.levelWarning, b.levelCritical, clampLevel(b.downtimeHard))
}

func (b *BA) criticalPercent() int {
	if len(b.impacts) == 0 {
		return 0
	}
	return b.numHardCritical * 100 / len(b.impacts)
}

// ServiceStatusUpdate BA 虚拟服务的状态由 BA 自己产生，忽略外部状态。
func (b *BA) ServiceStatusUpdate(*domain.ServiceStatusUpdate, Visitor) {}

func (b *BA) AcknowledgementUpdate(*domain.AcknowledgementUpdate, Visitor) {}

// DowntimeUpdate BA 虚拟服务上的直接停机。
func (b *BA) DowntimeUpdate(dt *domain.DowntimeUpdate, v Visitor) {
	if dt == nil {
		return
	}
	if dt.HostID != b.hostID || dt.ServiceID != b.serviceID {
		log.Warnf("BAM: ba %d 收到不匹配的停机 (%d, %d)，忽略", b.ID(), dt.HostID, dt.ServiceID)
		return
	}
	active := dt.Active()
	if active == b.inDowntime {
		return
	}
	b.inDowntime = active
	if active {
		b.touch(timeOrNow(dt.ActualStartTime))
	} else {
		b.touch(timeOrNow(dt.ActualEndTime))
	}
	log.Debugf("BAM: ba %d 停机状态变为 %v", b.ID(), active)
	b.Visit(v)
	b.PropagateUpdate(v)
}
