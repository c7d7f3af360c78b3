package bam

import (
	"sort"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// KpiService 以监控服务为输入的 KPI。
type KpiService struct {
	kpi
	hostID       uint32
	serviceID    uint32
	impacts      ImpactTable
	stateHard    domain.State
	stateSoft    domain.State
	stateType    int
	acknowledged bool
	downtimes    map[uint64]struct{}
	lastCheck    time.Time
	output       string
	perfdata     string
}

var (
	_ Kpi             = (*KpiService)(nil)
	_ ServiceListener = (*KpiService)(nil)
)

func NewKpiService(id, baID, hostID, serviceID uint32) *KpiService {
	return &KpiService{
		kpi:       newKpi(id, baID),
		hostID:    hostID,
		serviceID: serviceID,
		downtimes: make(map[uint64]struct{}),
	}
}

func (k *KpiService) HostID() uint32 { return k.hostID }

func (k *KpiService) ServiceID() uint32 { return k.serviceID }

func (k *KpiService) SetImpacts(t ImpactTable) { k.impacts = t }

func (k *KpiService) StateHard() domain.State { return k.stateHard }

func (k *KpiService) StateSoft() domain.State { return k.stateSoft }

func (k *KpiService) SetStateHard(s domain.State) { k.stateHard = s }

func (k *KpiService) SetStateSoft(s domain.State) { k.stateSoft = s }

func (k *KpiService) Acknowledged() bool { return k.acknowledged }

func (k *KpiService) InDowntime() bool { return len(k.downtimes) > 0 }

func (k *KpiService) OkState() bool { return k.stateHard == domain.StateOk }

func (k *KpiService) ImpactHard() domain.ImpactValue { return k.fillImpact(k.stateHard) }

func (k *KpiService) ImpactSoft() domain.ImpactValue { return k.fillImpact(k.stateSoft) }

// fillImpact 确认和停机影响在标志置位时等于完整的名义影响。
func (k *KpiService) fillImpact(state domain.State) domain.ImpactValue {
	var nominal float64
	if k.valid {
		nominal = k.impacts.nominal(state)
	}
	iv := domain.ImpactValue{Nominal: nominal, State: state}
	if k.acknowledged {
		iv.Acknowledgement = nominal
	}
	if k.InDowntime() {
		iv.Downtime = nominal
	}
	return iv
}

// NotifyChildUpdate 服务 KPI 没有子节点。
func (k *KpiService) NotifyChildUpdate(Computable, Visitor) bool { return true }

func (k *KpiService) PropagateUpdate(v Visitor) { k.propagate(k, v) }

type serviceSnapshot struct {
	hard, soft   domain.State
	downtimed    bool
	acknowledged bool
}

func (k *KpiService) snapshot() serviceSnapshot {
	return serviceSnapshot{
		hard:         k.stateHard,
		soft:         k.stateSoft,
		downtimed:    k.InDowntime(),
		acknowledged: k.acknowledged,
	}
}

func (k *KpiService) matches(hostID, serviceID uint32, what string) bool {
	if hostID == k.hostID && serviceID == k.serviceID {
		return true
	}
	log.Warnf("BAM: kpi %d 收到不匹配的%s (%d, %d)，期望 (%d, %d)",
		k.KpiID(), what, hostID, serviceID, k.hostID, k.serviceID)
	return false
}

// commit 状态无变化且已有打开事件时不产生任何输出。
func (k *KpiService) commit(before serviceSnapshot, v Visitor) {
	if k.event != nil && before == k.snapshot() {
		return
	}
	k.Visit(v)
	k.PropagateUpdate(v)
}

func (k *KpiService) ServiceStatusUpdate(st *domain.ServiceStatusUpdate, v Visitor) {
	if st == nil || !k.matches(st.HostID, st.ServiceID, "服务状态") {
		return
	}
	log.Debugf("BAM: kpi %d 收到服务 (%d, %d) 状态更新", k.KpiID(), k.hostID, k.serviceID)

	before := k.snapshot()
	if !st.LastCheck.IsZero() {
		k.lastCheck = st.LastCheck
	} else if k.lastCheck.IsZero() {
		k.lastCheck = nowFunc()
	}
	k.output = st.Output
	k.perfdata = st.Perfdata
	k.stateHard = st.LastHardState
	k.stateSoft = st.CurrentState
	k.stateType = st.StateType
	k.commit(before, v)
}

func (k *KpiService) AcknowledgementUpdate(ack *domain.AcknowledgementUpdate, v Visitor) {
	if ack == nil || !k.matches(ack.HostID, ack.ServiceID, "确认") {
		return
	}
	before := k.snapshot()
	k.acknowledged = ack.Active()
	if k.acknowledged {
		k.lastCheck = timeOrNow(ack.EntryTime)
	} else {
		k.lastCheck = timeOrNow(ack.DeletionTime)
	}
	k.commit(before, v)
}

// DowntimeUpdate 服务可同时有多个停机，按 internal_id 跟踪仍生效的停机。
func (k *KpiService) DowntimeUpdate(dt *domain.DowntimeUpdate, v Visitor) {
	if dt == nil || !k.matches(dt.HostID, dt.ServiceID, "停机") {
		return
	}
	before := k.snapshot()
	if dt.Active() {
		k.downtimes[dt.InternalID] = struct{}{}
		k.lastCheck = timeOrNow(dt.ActualStartTime)
	} else {
		delete(k.downtimes, dt.InternalID)
		k.lastCheck = timeOrNow(dt.ActualEndTime)
	}
	k.commit(before, v)
}

func (k *KpiService) Visit(v Visitor) {
	k.commitInitialEvents(v)

	hard, soft := k.ImpactHard(), k.ImpactSoft()
	downtimed := k.InDowntime()
	impact := hard.Nominal
	if downtimed {
		impact = hard.Downtime
	}

	at := k.lastCheck
	switch {
	case at.IsZero():
		// 尚未收到检查结果：不开区间，恢复的初始事件保持不变
	case k.event == nil:
		k.openEvent(v, at, k.stateHard, downtimed, impact, k.output, k.perfdata)
	case !at.Before(k.event.StartTime) && k.eventChanged(k.stateHard, downtimed):
		k.closeEvent(v, at)
		k.openEvent(v, at, k.stateHard, downtimed, impact, k.output, k.perfdata)
	}

	emit(v, k.status(hard, soft, downtimed, impact, k.LastStateChange()))
}

// leafState 导出最近一次输入，未收到过检查结果时返回 false。
func (k *KpiService) leafState() (domain.ServiceState, bool) {
	if k.lastCheck.IsZero() {
		return domain.ServiceState{}, false
	}
	st := domain.ServiceState{
		HostID:        k.hostID,
		ServiceID:     k.serviceID,
		LastHardState: k.stateHard,
		CurrentState:  k.stateSoft,
		StateType:     k.stateType,
		Acknowledged:  k.acknowledged,
		LastCheck:     k.lastCheck,
		Output:        k.output,
		Perfdata:      k.perfdata,
	}
	for id := range k.downtimes {
		st.Downtimes = append(st.Downtimes, id)
	}
	sort.Slice(st.Downtimes, func(i, j int) bool { return st.Downtimes[i] < st.Downtimes[j] })
	return st, true
}

// restoreLeafState 只写入字段，不访问也不通知父节点。
func (k *KpiService) restoreLeafState(st domain.ServiceState) {
	k.stateHard = st.LastHardState
	k.stateSoft = st.CurrentState
	k.stateType = st.StateType
	k.acknowledged = st.Acknowledged
	k.downtimes = make(map[uint64]struct{}, len(st.Downtimes))
	for _, id := range st.Downtimes {
		k.downtimes[id] = struct{}{}
	}
	k.lastCheck = st.LastCheck
	k.output = st.Output
	k.perfdata = st.Perfdata
}
