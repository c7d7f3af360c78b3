package bam

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// BooleanExpression 一棵布尔表达式树，取值等于 impactIf 时视为异常。
type BooleanExpression struct {
	computable
	name     string
	root     BoolValue
	services []*BoolService
	impactIf bool
}

func NewBooleanExpression(id uint32, impactIf bool) *BooleanExpression {
	return &BooleanExpression{
		computable: newComputable(NodeID{Kind: KindBoolExp, ID: id}),
		impactIf:   impactIf,
	}
}

func (b *BooleanExpression) ID() uint32 { return b.id.ID }

func (b *BooleanExpression) Name() string { return b.name }

func (b *BooleanExpression) SetName(name string) { b.name = name }

func (b *BooleanExpression) ImpactIf() bool { return b.impactIf }

// SetExpression 设置表达式树，叶子节点的变更会通知到本表达式。
func (b *BooleanExpression) SetExpression(root BoolValue, services []*BoolService) {
	for _, s := range b.services {
		s.owner = nil
	}
	b.root = root
	b.services = services
	for _, s := range services {
		s.owner = b
	}
}

func (b *BooleanExpression) Services() []*BoolService { return b.services }

func (b *BooleanExpression) ValueHard() bool { return b.root != nil && b.root.ValueHard() }

func (b *BooleanExpression) ValueSoft() bool { return b.root != nil && b.root.ValueSoft() }

func (b *BooleanExpression) StateKnown() bool { return b.root != nil && b.root.StateKnown() }

// State 硬取值命中 impactIf 为 CRITICAL，否则 OK。
func (b *BooleanExpression) State() domain.State { return b.stateOf(b.ValueHard()) }

func (b *BooleanExpression) StateSoft() domain.State { return b.stateOf(b.ValueSoft()) }

func (b *BooleanExpression) stateOf(value bool) domain.State {
	if b.root == nil {
		return domain.StateUnknown
	}
	if value == b.impactIf {
		return domain.StateCritical
	}
	return domain.StateOk
}

func (b *BooleanExpression) childChanged(v Visitor) {
	log.Debugf("BAM: 布尔表达式 %d 输入变更, value=%v known=%v", b.ID(), b.ValueHard(), b.StateKnown())
	emit(v, &domain.BoolStatus{BoolID: b.ID(), State: b.ValueHard()})
	b.PropagateUpdate(v)
}

func (b *BooleanExpression) NotifyChildUpdate(Computable, Visitor) bool { return true }

func (b *BooleanExpression) PropagateUpdate(v Visitor) { b.propagate(b, v) }
