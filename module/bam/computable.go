package bam

import (
	"fmt"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils/timex"
)

// NodeKind 计算图中节点的类别，不同类别的 ID 互不冲突。
type NodeKind uint8

const (
	KindBA NodeKind = iota + 1
	KindKpi
	KindMetaService
	KindBoolExp
)

func (k NodeKind) String() string {
	switch k {
	case KindBA:
		return "ba"
	case KindKpi:
		return "kpi"
	case KindMetaService:
		return "meta_service"
	case KindBoolExp:
		return "bool_exp"
	}
	return "unknown"
}

// NodeID 节点在 Graph 中的句柄。
type NodeID struct {
	Kind NodeKind
	ID   uint32
}

func (n NodeID) String() string {
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}

// Visitor 接收节点产生的事件，nil 表示丢弃。
type Visitor interface {
	Write(ev domain.Event)
}

// Computable 计算图节点：接收子节点变更通知并向父节点扇出。
type Computable interface {
	NodeID() NodeID
	// NotifyChildUpdate 子节点变更时调用，返回自身是否随之变化。
	NotifyChildUpdate(child Computable, v Visitor) bool
	AddParent(p Computable)
	RemoveParent(p Computable)
	PropagateUpdate(v Visitor)
}

// nowFunc 事件时间来源，测试中可替换。
var nowFunc = timex.NowLocalTime

func emit(v Visitor, ev domain.Event) {
	if v != nil {
		v.Write(ev)
	}
}

// computable 父节点集合与扇出逻辑，由各节点类型嵌入。
// 父节点只保存句柄，通过 graph 解析，不持有所有权。
type computable struct {
	id      NodeID
	graph   *Graph
	parents map[NodeID]struct{}
}

func newComputable(id NodeID) computable {
	return computable{id: id, parents: make(map[NodeID]struct{})}
}

func (c *computable) NodeID() NodeID { return c.id }

func (c *computable) AddParent(p Computable) {
	if p == nil {
		return
	}
	c.parents[p.NodeID()] = struct{}{}
}

func (c *computable) RemoveParent(p Computable) {
	if p == nil {
		return
	}
	delete(c.parents, p.NodeID())
}

func (c *computable) attach(g *Graph) { c.graph = g }

// parentIDs 返回父节点句柄。
func (c *computable) parentIDs() []NodeID {
	ids := make([]NodeID, 0, len(c.parents))
	for id := range c.parents {
		ids = append(ids, id)
	}
	return ids
}

// propagate 通知每个父节点一次，父节点发生变化时继续向上传播。
func (c *computable) propagate(self Computable, v Visitor) {
	if c.graph == nil {
		return
	}
	for id := range c.parents {
		p := c.graph.Node(id)
		if p == nil {
			continue
		}
		if p.NotifyChildUpdate(self, v) {
			p.PropagateUpdate(v)
		}
	}
}

// clampLevel 将 level 限制到 [0,100]。
func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return nowFunc()
	}
	return t
}
