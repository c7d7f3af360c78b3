package bam

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// KpiBA 以另一个 BA 为输入的 KPI。
type KpiBA struct {
	kpi
	ba      *BA
	impacts ImpactTable
}

var _ Kpi = (*KpiBA)(nil)

func NewKpiBA(id, baID uint32) *KpiBA {
	return &KpiBA{kpi: newKpi(id, baID)}
}

func (k *KpiBA) SetImpacts(t ImpactTable) { k.impacts = t }

// LinkBA 绑定被包装的 BA，并把自己登记为它的父节点。
func (k *KpiBA) LinkBA(ba *BA) {
	k.UnlinkBA()
	k.ba = ba
	if ba != nil {
		ba.AddParent(k)
	}
}

func (k *KpiBA) UnlinkBA() {
	if k.ba != nil {
		k.ba.RemoveParent(k)
		k.ba = nil
	}
}

func (k *KpiBA) LinkedBA() *BA { return k.ba }

func (k *KpiBA) stateHard() domain.State {
	if k.ba == nil {
		return domain.StateUnknown
	}
	return k.ba.StateHard()
}

func (k *KpiBA) stateSoft() domain.State {
	if k.ba == nil {
		return domain.StateUnknown
	}
	return k.ba.StateSoft()
}

func (k *KpiBA) InDowntime() bool {
	return k.ba != nil && k.ba.InDowntime()
}

func (k *KpiBA) OkState() bool { return k.stateHard() == domain.StateOk }

func (k *KpiBA) ImpactHard() domain.ImpactValue {
	var ack, dt float64
	if k.ba != nil {
		ack, dt = k.ba.AckImpactHard(), k.ba.DowntimeImpactHard()
	}
	return k.fillImpact(k.stateHard(), ack, dt)
}

func (k *KpiBA) ImpactSoft() domain.ImpactValue {
	var ack, dt float64
	if k.ba != nil {
		ack, dt = k.ba.AckImpactSoft(), k.ba.DowntimeImpactSoft()
	}
	return k.fillImpact(k.stateSoft(), ack, dt)
}

// fillImpact 确认和停机影响按子 BA 的百分比折算到名义影响上。
func (k *KpiBA) fillImpact(state domain.State, ackPct, downtimePct float64) domain.ImpactValue {
	var nominal float64
	if k.valid {
		nominal = k.impacts.nominal(state)
	}
	return domain.ImpactValue{
		Nominal:         nominal,
		Acknowledgement: clampLevel(ackPct) / 100 * nominal,
		Downtime:        clampLevel(downtimePct) / 100 * nominal,
		State:           state,
	}
}

func (k *KpiBA) NotifyChildUpdate(child Computable, v Visitor) bool {
	if k.ba != nil && child != nil && child.NodeID() == k.ba.NodeID() {
		log.Debugf("BAM: kpi %d 收到 ba %d 变更通知", k.KpiID(), k.ba.ID())
		k.Visit(v)
	}
	return true
}

func (k *KpiBA) PropagateUpdate(v Visitor) { k.propagate(k, v) }

func (k *KpiBA) Visit(v Visitor) {
	k.commitInitialEvents(v)

	hard, soft := k.ImpactHard(), k.ImpactSoft()
	downtimed := k.InDowntime()
	impact := hard.Nominal
	if downtimed {
		impact = hard.Downtime
	}

	var output, perfdata string
	at := nowFunc()
	if k.ba != nil {
		output, perfdata = k.ba.Output(), k.ba.Perfdata()
		at = timeOrNow(k.ba.LastKpiUpdate())
	}

	if k.event == nil {
		k.openEvent(v, at, hard.State, downtimed, impact, output, perfdata)
	} else if k.eventChanged(hard.State, downtimed) {
		if at.Before(k.event.StartTime) {
			at = k.event.StartTime
		}
		k.closeEvent(v, at)
		k.openEvent(v, at, hard.State, downtimed, impact, output, perfdata)
	}

	emit(v, k.status(hard, soft, downtimed, impact, k.LastStateChange()))
}
