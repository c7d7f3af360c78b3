package bam

import (
	"sort"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// leaf 可导出和静默恢复服务输入的叶子节点。
type leaf interface {
	leafState() (domain.ServiceState, bool)
	restoreLeafState(st domain.ServiceState)
}

var (
	_ leaf = (*KpiService)(nil)
	_ leaf = (*BoolService)(nil)
)

// restore 只恢复在新图中仍然存在的节点。
func restore(g *Graph, state domain.EngineState) {
	for _, dt := range state.InheritedDowntimes {
		if ba := g.BA(dt.BaID); ba != nil {
			ba.SetInheritedDowntime(dt)
		}
	}
	for _, ev := range state.BaEvents {
		if ba := g.BA(ev.BaID); ba != nil && ev.Open() {
			_ = ba.SetInitialEvent(ev)
		}
	}
	for _, ev := range state.KpiEvents {
		k := g.Kpi(ev.KpiID)
		if k == nil || k.BaID() != ev.BaID || ev.EndTime != nil {
			continue
		}
		_ = k.SetInitialEvent(ev)
	}
}

// restoreLeaves 把快照中的服务与指标输入写回新图的叶子节点。
func restoreLeaves(g *Graph, state domain.EngineState) {
	for _, st := range state.Services {
		for _, l := range g.ServiceListeners(st.HostID, st.ServiceID) {
			if lf, ok := l.(leaf); ok {
				lf.restoreLeafState(st)
			}
		}
	}
	for _, mv := range state.Metrics {
		for _, l := range g.MetricListeners(mv.MetricID) {
			if m, ok := l.(*MetaService); ok {
				m.restoreMetric(mv.MetricID, mv.Value)
			}
		}
	}
}

// settle 叶子恢复后重算各 BA 的汇总。嵌套 BA 逐轮向上收敛，环已在装配时断开。
func settle(g *Graph) {
	bas := g.BAs()
	for range len(bas) + 1 {
		changed := false
		for _, ba := range bas {
			if ba.settle() {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// snapshotLeaves 同一服务有多个订阅者时优先取 KPI 的完整输入。
func snapshotLeaves(g *Graph) ([]domain.ServiceState, []domain.MetricValue) {
	var services []domain.ServiceState
	for key, listeners := range g.services {
		var (
			best  domain.ServiceState
			found bool
		)
		for _, l := range listeners {
			lf, ok := l.(leaf)
			if !ok {
				continue
			}
			st, ok := lf.leafState()
			if !ok {
				continue
			}
			_, isKpi := l.(*KpiService)
			if isKpi || !found {
				best, found = st, true
			}
			if isKpi {
				break
			}
		}
		if found {
			best.HostID, best.ServiceID = key.hostID, key.serviceID
			services = append(services, best)
		}
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].HostID != services[j].HostID {
			return services[i].HostID < services[j].HostID
		}
		return services[i].ServiceID < services[j].ServiceID
	})

	var metrics []domain.MetricValue
	for id, listeners := range g.metrics {
		for _, l := range listeners {
			m, ok := l.(*MetaService)
			if !ok {
				continue
			}
			if value, ok := m.metrics[id]; ok {
				metrics = append(metrics, domain.MetricValue{MetricID: id, Value: value})
				break
			}
		}
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].MetricID < metrics[j].MetricID })
	return services, metrics
}
