package bam

import (
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// KpiMeta 以元服务为输入的 KPI，没有停机和确认。
type KpiMeta struct {
	kpi
	meta    *MetaService
	impacts ImpactTable
}

var _ Kpi = (*KpiMeta)(nil)

func NewKpiMeta(id, baID uint32) *KpiMeta {
	return &KpiMeta{kpi: newKpi(id, baID)}
}

func (k *KpiMeta) SetImpacts(t ImpactTable) { k.impacts = t }

func (k *KpiMeta) LinkMetaService(m *MetaService) {
	k.UnlinkMetaService()
	k.meta = m
	if m != nil {
		m.AddParent(k)
	}
}

func (k *KpiMeta) UnlinkMetaService() {
	if k.meta != nil {
		k.meta.RemoveParent(k)
		k.meta = nil
	}
}

func (k *KpiMeta) state() domain.State {
	if k.meta == nil {
		return domain.StateUnknown
	}
	return k.meta.State()
}

func (k *KpiMeta) InDowntime() bool { return false }

func (k *KpiMeta) OkState() bool { return k.state() == domain.StateOk }

func (k *KpiMeta) ImpactHard() domain.ImpactValue { return k.fillImpact() }

func (k *KpiMeta) ImpactSoft() domain.ImpactValue { return k.fillImpact() }

func (k *KpiMeta) fillImpact() domain.ImpactValue {
	state := k.state()
	var nominal float64
	if k.valid {
		nominal = k.impacts.nominal(state)
	}
	return domain.ImpactValue{Nominal: nominal, State: state}
}

func (k *KpiMeta) NotifyChildUpdate(child Computable, v Visitor) bool {
	if k.meta != nil && child != nil && child.NodeID() == k.meta.NodeID() {
		log.Debugf("BAM: kpi %d 收到元服务 %d 变更通知", k.KpiID(), k.meta.ID())
		k.Visit(v)
	}
	return true
}

func (k *KpiMeta) PropagateUpdate(v Visitor) { k.propagate(k, v) }

func (k *KpiMeta) Visit(v Visitor) {
	k.commitInitialEvents(v)

	values := k.ImpactHard()
	var output, perfdata string
	if k.meta != nil {
		output = fmt.Sprintf("Meta-service %d value is %g", k.meta.ID(), k.meta.Value())
		perfdata = fmt.Sprintf("value=%g;%g;%g", k.meta.Value(), k.meta.LevelWarning(), k.meta.LevelCritical())
	}

	now := nowFunc()
	if k.event == nil {
		k.openEvent(v, now, values.State, false, values.Nominal, output, perfdata)
	} else if k.eventChanged(values.State, false) {
		k.closeEvent(v, now)
		k.openEvent(v, now, values.State, false, values.Nominal, output, perfdata)
	}

	emit(v, k.status(values, values, false, values.Nominal, k.LastStateChange()))
}
