package bam

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// BoolValue 布尔表达式树的节点，运算节点按需从子节点取值。
type BoolValue interface {
	ValueHard() bool
	ValueSoft() bool
	// StateKnown 子树中所有输入都已收到过真实数据。
	StateKnown() bool
}

// BoolService 叶子节点：服务状态是否等于期望状态。
type BoolService struct {
	hostID            uint32
	serviceID         uint32
	expectedState     domain.State
	valueIfStateMatch bool
	stateHard         domain.State
	stateSoft         domain.State
	known             bool
	owner             *BooleanExpression
}

var (
	_ BoolValue       = (*BoolService)(nil)
	_ ServiceListener = (*BoolService)(nil)
)

func NewBoolService(hostID, serviceID uint32, expected domain.State, valueIfStateMatch bool) *BoolService {
	return &BoolService{
		hostID:            hostID,
		serviceID:         serviceID,
		expectedState:     expected,
		valueIfStateMatch: valueIfStateMatch,
	}
}

func (s *BoolService) HostID() uint32 { return s.hostID }

func (s *BoolService) ServiceID() uint32 { return s.serviceID }

func (s *BoolService) ValueHard() bool {
	return (s.stateHard == s.expectedState) == s.valueIfStateMatch
}

func (s *BoolService) ValueSoft() bool {
	return (s.stateSoft == s.expectedState) == s.valueIfStateMatch
}

func (s *BoolService) StateKnown() bool { return s.known }

func (s *BoolService) ServiceStatusUpdate(st *domain.ServiceStatusUpdate, v Visitor) {
	if st == nil {
		return
	}
	if st.HostID != s.hostID || st.ServiceID != s.serviceID {
		log.Warnf("BAM: 布尔服务 (%d, %d) 收到不匹配的状态 (%d, %d)，忽略",
			s.hostID, s.serviceID, st.HostID, st.ServiceID)
		return
	}
	changed := !s.known || s.stateHard != st.LastHardState || s.stateSoft != st.CurrentState
	s.stateHard, s.stateSoft, s.known = st.LastHardState, st.CurrentState, true
	if changed && s.owner != nil {
		s.owner.childChanged(v)
	}
}

func (s *BoolService) leafState() (domain.ServiceState, bool) {
	if !s.known {
		return domain.ServiceState{}, false
	}
	return domain.ServiceState{
		HostID:        s.hostID,
		ServiceID:     s.serviceID,
		LastHardState: s.stateHard,
		CurrentState:  s.stateSoft,
	}, true
}

func (s *BoolService) restoreLeafState(st domain.ServiceState) {
	s.stateHard, s.stateSoft, s.known = st.LastHardState, st.CurrentState, true
}

func (s *BoolService) AcknowledgementUpdate(*domain.AcknowledgementUpdate, Visitor) {}

func (s *BoolService) DowntimeUpdate(*domain.DowntimeUpdate, Visitor) {}

// BoolConstant 常量节点。
type BoolConstant struct {
	value bool
}

func NewBoolConstant(value bool) *BoolConstant { return &BoolConstant{value: value} }

func (c *BoolConstant) ValueHard() bool { return c.value }

func (c *BoolConstant) ValueSoft() bool { return c.value }

func (c *BoolConstant) StateKnown() bool { return true }

// BoolNot 取反。
type BoolNot struct {
	value BoolValue
}

func NewBoolNot(value BoolValue) *BoolNot { return &BoolNot{value: value} }

func (n *BoolNot) ValueHard() bool { return n.value != nil && !n.value.ValueHard() }

func (n *BoolNot) ValueSoft() bool { return n.value != nil && !n.value.ValueSoft() }

func (n *BoolNot) StateKnown() bool { return n.value != nil && n.value.StateKnown() }

// BoolOperator 二元运算类型。
type BoolOperator string

const (
	BoolOpAnd BoolOperator = "AND"
	BoolOpOr  BoolOperator = "OR"
	BoolOpXor BoolOperator = "XOR"
)

// BoolBinary 二元运算节点。
type BoolBinary struct {
	op    BoolOperator
	left  BoolValue
	right BoolValue
}

func NewBoolBinary(op BoolOperator, left, right BoolValue) *BoolBinary {
	return &BoolBinary{op: op, left: left, right: right}
}

func (b *BoolBinary) Operator() BoolOperator { return b.op }

func (b *BoolBinary) ValueHard() bool {
	if b.left == nil || b.right == nil {
		return false
	}
	return b.apply(b.left.ValueHard(), b.right.ValueHard())
}

func (b *BoolBinary) ValueSoft() bool {
	if b.left == nil || b.right == nil {
		return false
	}
	return b.apply(b.left.ValueSoft(), b.right.ValueSoft())
}

func (b *BoolBinary) StateKnown() bool {
	return b.left != nil && b.right != nil && b.left.StateKnown() && b.right.StateKnown()
}

func (b *BoolBinary) apply(l, r bool) bool {
	switch b.op {
	case BoolOpAnd:
		return l && r
	case BoolOpOr:
		return l || r
	case BoolOpXor:
		return l != r
	}
	return false
}
