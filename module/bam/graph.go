package bam

import (
	"sort"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// ServiceListener 订阅某个 (host_id, service_id) 原始更新的节点。
type ServiceListener interface {
	ServiceStatusUpdate(st *domain.ServiceStatusUpdate, v Visitor)
	AcknowledgementUpdate(ack *domain.AcknowledgementUpdate, v Visitor)
	DowntimeUpdate(dt *domain.DowntimeUpdate, v Visitor)
}

// MetricListener 订阅原始指标的节点。
type MetricListener interface {
	MetricUpdate(m *domain.MetricUpdate, v Visitor)
}

type serviceKey struct {
	hostID    uint32
	serviceID uint32
}

type attachable interface {
	attach(g *Graph)
}

// Graph 持有全部节点，节点之间只通过 NodeID 互相引用父节点。
type Graph struct {
	nodes    map[NodeID]Computable
	services map[serviceKey][]ServiceListener
	metrics  map[uint32][]MetricListener
}

func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]Computable),
		services: make(map[serviceKey][]ServiceListener),
		metrics:  make(map[uint32][]MetricListener),
	}
}

// Add 将节点放入图中，相同 NodeID 的旧节点被替换。
func (g *Graph) Add(nodes ...Computable) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if a, ok := n.(attachable); ok {
			a.attach(g)
		}
		g.nodes[n.NodeID()] = n
	}
}

func (g *Graph) Node(id NodeID) Computable {
	return g.nodes[id]
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) BA(id uint32) *BA {
	ba, _ := g.nodes[NodeID{Kind: KindBA, ID: id}].(*BA)
	return ba
}

func (g *Graph) Kpi(id uint32) Kpi {
	k, _ := g.nodes[NodeID{Kind: KindKpi, ID: id}].(Kpi)
	return k
}

func (g *Graph) MetaService(id uint32) *MetaService {
	m, _ := g.nodes[NodeID{Kind: KindMetaService, ID: id}].(*MetaService)
	return m
}

func (g *Graph) BoolExpression(id uint32) *BooleanExpression {
	b, _ := g.nodes[NodeID{Kind: KindBoolExp, ID: id}].(*BooleanExpression)
	return b
}

// BAs 按 ID 升序返回全部 BA。
func (g *Graph) BAs() []*BA {
	var out []*BA
	for _, n := range g.nodes {
		if ba, ok := n.(*BA); ok {
			out = append(out, ba)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Kpis 按 ID 升序返回全部 KPI。
func (g *Graph) Kpis() []Kpi {
	var out []Kpi
	for _, n := range g.nodes {
		if k, ok := n.(Kpi); ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KpiID() < out[j].KpiID() })
	return out
}

// MetaServices 按 ID 升序返回全部元服务。
func (g *Graph) MetaServices() []*MetaService {
	var out []*MetaService
	for _, n := range g.nodes {
		if m, ok := n.(*MetaService); ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ListenService 注册服务更新订阅。
func (g *Graph) ListenService(hostID, serviceID uint32, l ServiceListener) {
	key := serviceKey{hostID: hostID, serviceID: serviceID}
	g.services[key] = append(g.services[key], l)
}

func (g *Graph) ServiceListeners(hostID, serviceID uint32) []ServiceListener {
	return g.services[serviceKey{hostID: hostID, serviceID: serviceID}]
}

// ListenMetric 注册指标更新订阅。
func (g *Graph) ListenMetric(metricID uint32, l MetricListener) {
	g.metrics[metricID] = append(g.metrics[metricID], l)
}

func (g *Graph) MetricListeners(metricID uint32) []MetricListener {
	return g.metrics[metricID]
}
