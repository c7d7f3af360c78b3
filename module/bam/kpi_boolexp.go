package bam

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

const boolexpOutput = "BAM boolean expression computed by itops-bam-engine"

// KpiBoolexp 以布尔表达式为输入的 KPI，表达式命中时施加固定影响。
type KpiBoolexp struct {
	kpi
	boolexp *BooleanExpression
	impact  float64
}

var _ Kpi = (*KpiBoolexp)(nil)

func NewKpiBoolexp(id, baID uint32) *KpiBoolexp {
	return &KpiBoolexp{kpi: newKpi(id, baID)}
}

func (k *KpiBoolexp) SetImpact(impact float64) { k.impact = impact }

func (k *KpiBoolexp) Impact() float64 { return k.impact }

func (k *KpiBoolexp) LinkBoolexp(b *BooleanExpression) {
	k.UnlinkBoolexp()
	k.boolexp = b
	if b != nil {
		b.AddParent(k)
	}
}

func (k *KpiBoolexp) UnlinkBoolexp() {
	if k.boolexp != nil {
		k.boolexp.RemoveParent(k)
		k.boolexp = nil
	}
}

// state 表达式尚无输入时沿用打开事件的状态，避免在数据到达前输出默认值。
func (k *KpiBoolexp) state(soft bool) domain.State {
	if k.boolexp == nil {
		return domain.StateUnknown
	}
	if !k.boolexp.StateKnown() && k.event != nil {
		return k.event.Status
	}
	if soft {
		return k.boolexp.StateSoft()
	}
	return k.boolexp.State()
}

func (k *KpiBoolexp) InDowntime() bool { return false }

func (k *KpiBoolexp) OkState() bool { return k.state(false) == domain.StateOk }

func (k *KpiBoolexp) ImpactHard() domain.ImpactValue { return k.fillImpact(k.state(false)) }

func (k *KpiBoolexp) ImpactSoft() domain.ImpactValue { return k.fillImpact(k.state(true)) }

func (k *KpiBoolexp) fillImpact(state domain.State) domain.ImpactValue {
	var nominal float64
	if k.valid && state != domain.StateOk {
		nominal = k.impact
	}
	return domain.ImpactValue{Nominal: nominal, State: state}
}

func (k *KpiBoolexp) NotifyChildUpdate(child Computable, v Visitor) bool {
	if k.boolexp != nil && child != nil && child.NodeID() == k.boolexp.NodeID() {
		log.Debugf("BAM: kpi %d 收到布尔表达式 %d 变更通知", k.KpiID(), k.boolexp.ID())
		k.Visit(v)
	}
	return true
}

func (k *KpiBoolexp) PropagateUpdate(v Visitor) { k.propagate(k, v) }

func (k *KpiBoolexp) Visit(v Visitor) {
	k.commitInitialEvents(v)

	values, soft := k.ImpactHard(), k.ImpactSoft()
	now := nowFunc()
	if k.event == nil {
		k.openEvent(v, now, values.State, false, values.Nominal, boolexpOutput, "")
	} else if k.event.Status != values.State {
		k.closeEvent(v, now)
		k.openEvent(v, now, values.State, false, values.Nominal, boolexpOutput, "")
	}

	emit(v, k.status(values, soft, false, values.Nominal, k.LastStateChange()))
}
