package bam

import (
	"fmt"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// ConfigError 定义中的引用无法建立，受影响的 BA 被标记为无效。
type ConfigError struct {
	Kind   NodeKind
	ID     uint32
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("BAM 配置错误: %s#%d: %s", e.Kind, e.ID, e.Reason)
}

// ApplierOptions 构建计算图时的默认参数
type ApplierOptions struct {
	GenerateVirtualStatus bool
	MetaStatusInterval    time.Duration
}

// Applier 将 BAM 定义构建为计算图。
type Applier struct {
	opts ApplierOptions
}

func NewApplier(opts ApplierOptions) *Applier {
	return &Applier{opts: opts}
}

// serviceIndex 主机名/服务名到 ID 的映射
type serviceIndex map[[2]string][2]uint32

func (s serviceIndex) ResolveService(host, service string) (uint32, uint32, bool) {
	ids, ok := s[[2]string{host, service}]
	return ids[0], ids[1], ok
}

// Apply 依次创建元服务、布尔表达式、BA、KPI 并建立关联。
// 返回的图总是可用的，引用错误通过 ConfigError 列表返回。
func (a *Applier) Apply(cfg *config.BAMConfig) (*Graph, []error) {
	g := NewGraph()
	if cfg == nil {
		return g, nil
	}
	var errs []error
	fail := func(kind NodeKind, id uint32, format string, args ...interface{}) {
		err := &ConfigError{Kind: kind, ID: id, Reason: fmt.Sprintf(format, args...)}
		log.Warnf("%v", err)
		errs = append(errs, err)
	}

	services := make(serviceIndex, len(cfg.Services))
	for _, s := range cfg.Services {
		services[[2]string{s.HostName, s.ServiceName}] = [2]uint32{s.HostID, s.ServiceID}
	}

	for _, def := range cfg.MetaServices {
		m := NewMetaService(def.ID, def.HostID, def.ServiceID, domain.Computation(def.Computation))
		m.SetLevelWarning(def.LevelWarning)
		m.SetLevelCritical(def.LevelCritical)
		m.SetStatusInterval(a.opts.MetaStatusInterval)
		for _, metricID := range def.MetricIDs {
			m.AddMetric(metricID)
			g.ListenMetric(metricID, m)
		}
		g.Add(m)
	}

	for _, def := range cfg.BoolExps {
		b := NewBooleanExpression(def.ID, def.ImpactIf)
		b.SetName(def.Name)
		root, leaves, err := ParseBoolExpression(def.Expression, services)
		if err != nil {
			fail(KindBoolExp, def.ID, "%v", err)
		} else {
			b.SetExpression(root, leaves)
			for _, leaf := range leaves {
				g.ListenService(leaf.HostID(), leaf.ServiceID(), leaf)
			}
		}
		g.Add(b)
	}

	for _, def := range cfg.BAs {
		virtual := a.opts.GenerateVirtualStatus
		if def.GenerateVirtualStatus != nil {
			virtual = *def.GenerateVirtualStatus
		}
		ba := NewBA(def.ID, def.HostID, def.ServiceID, domain.StateSource(def.StateSource), virtual)
		ba.SetName(def.Name)
		ba.SetLevelWarning(def.LevelWarning)
		ba.SetLevelCritical(def.LevelCritical)
		if def.DowntimeBehaviour != "" {
			ba.SetDowntimeBehaviour(domain.DowntimeBehaviour(def.DowntimeBehaviour))
		}
		if def.HostID != 0 && def.ServiceID != 0 {
			g.ListenService(def.HostID, def.ServiceID, ba)
		}
		g.Add(ba)
	}

	cyclic := cyclicKpis(cfg.KPIs)

	for _, def := range cfg.KPIs {
		owner := g.BA(def.BaID)
		if owner == nil {
			fail(KindKpi, def.ID, "所属 BA %d 不存在", def.BaID)
			continue
		}
		impacts := ImpactTable{Warning: def.ImpactWarning, Critical: def.ImpactCritical, Unknown: def.ImpactUnknown}

		var k Kpi
		switch def.Type {
		case config.KPITypeService:
			ks := NewKpiService(def.ID, def.BaID, def.HostID, def.ServiceID)
			ks.SetImpacts(impacts)
			g.ListenService(def.HostID, def.ServiceID, ks)
			k = ks
		case config.KPITypeBA:
			kb := NewKpiBA(def.ID, def.BaID)
			kb.SetImpacts(impacts)
			target := g.BA(def.IndicatorBaID)
			switch {
			case target == nil:
				fail(KindKpi, def.ID, "指标 BA %d 不存在", def.IndicatorBaID)
				kb.SetValid(false)
			case cyclic[def.ID]:
				fail(KindKpi, def.ID, "BA %d 与指标 BA %d 形成环", def.BaID, def.IndicatorBaID)
				kb.SetValid(false)
			default:
				kb.LinkBA(target)
			}
			k = kb
		case config.KPITypeMeta:
			km := NewKpiMeta(def.ID, def.BaID)
			km.SetImpacts(impacts)
			if m := g.MetaService(def.MetaID); m != nil {
				km.LinkMetaService(m)
			} else {
				fail(KindKpi, def.ID, "元服务 %d 不存在", def.MetaID)
				km.SetValid(false)
			}
			k = km
		case config.KPITypeBoolExp:
			kx := NewKpiBoolexp(def.ID, def.BaID)
			kx.SetImpact(def.ImpactCritical)
			if b := g.BoolExpression(def.BoolExpID); b != nil {
				kx.LinkBoolexp(b)
			} else {
				fail(KindKpi, def.ID, "布尔表达式 %d 不存在", def.BoolExpID)
				kx.SetValid(false)
			}
			k = kx
		default:
			fail(KindKpi, def.ID, "未知 KPI 类型 %q", def.Type)
			owner.SetValid(false)
			continue
		}

		g.Add(k)
		k.AddParent(owner)
		owner.AddImpact(k)
		if !k.Valid() {
			owner.SetValid(false)
		}
	}

	log.Infof("BAM: 计算图构建完成, 节点数=%d, 配置错误数=%d", g.Len(), len(errs))
	return g, errs
}

// cyclicKpis 找出 BA 之间形成环的 KPI，每个环断开一条边。
func cyclicKpis(defs []config.KPIDef) map[uint32]bool {
	type edge struct {
		kpiID uint32
		to    uint32
	}
	adj := make(map[uint32][]edge)
	for _, def := range defs {
		if def.Type == config.KPITypeBA {
			adj[def.BaID] = append(adj[def.BaID], edge{kpiID: def.ID, to: def.IndicatorBaID})
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[uint32]int)
	cut := make(map[uint32]bool)
	var visit func(ba uint32)
	visit = func(ba uint32) {
		color[ba] = grey
		for _, e := range adj[ba] {
			switch color[e.to] {
			case grey:
				cut[e.kpiID] = true
			case white:
				visit(e.to)
			}
		}
		color[ba] = black
	}
	for _, def := range defs {
		if def.Type == config.KPITypeBA && color[def.BaID] == white {
			visit(def.BaID)
		}
	}
	return cut
}
