package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ========== 远程配置服务 ==========

// BamConfigServiceConfig 远程 BAM 定义服务配置
type BamConfigServiceConfig struct {
	Endpoint        string        `yaml:"endpoint"`         // 远程定义接口地址
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 刷新间隔
	Enabled         bool          `yaml:"enabled"`          // 是否启用远程定义
}

// ========== 引擎配置 ==========

// EngineConfig BAM 引擎运行参数
type EngineConfig struct {
	Ingest                IngestConfig       `yaml:"ingest"`
	GenerateVirtualStatus bool               `yaml:"generate_virtual_status"` // BA 未单独配置时是否输出虚拟服务状态
	MetaStatusInterval    time.Duration      `yaml:"meta_status_interval"`    // 元服务状态无变化时的最小输出间隔
	Availability          AvailabilityConfig `yaml:"availability"`
	StateCache            StateCacheConfig   `yaml:"state_cache"`
}

// IngestConfig 数据摄取配置
type IngestConfig struct {
	Source Source `yaml:"source"`
}

// Source 数据源配置
type Source struct {
	Type string `yaml:"type"`
}

// AvailabilityConfig 可用率统计配置
type AvailabilityConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron 表达式，默认每天 00:05
}

// StateCacheConfig 崩溃恢复缓存配置
type StateCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"` // 0 表示不过期
}

// ========== BAM 定义 ==========

// BAMConfig BA 计算图定义，对应 data/bam_config.yaml。
type BAMConfig struct {
	Services     []ServiceDef     `yaml:"services" json:"services" validate:"dive"`
	MetaServices []MetaServiceDef `yaml:"meta_services" json:"meta_services" validate:"dive"`
	BoolExps     []BoolExpDef     `yaml:"boolexps" json:"boolexps" validate:"dive"`
	BAs          []BADef          `yaml:"bas" json:"bas" validate:"dive"`
	KPIs         []KPIDef         `yaml:"kpis" json:"kpis" validate:"dive"`
}

// ServiceDef 主机名/服务名到 ID 的映射，供布尔表达式解析使用。
type ServiceDef struct {
	HostName    string `yaml:"host_name" json:"host_name" validate:"required"`
	ServiceName string `yaml:"service_name" json:"service_name" validate:"required"`
	HostID      uint32 `yaml:"host_id" json:"host_id" validate:"required"`
	ServiceID   uint32 `yaml:"service_id" json:"service_id" validate:"required"`
}

// MetaServiceDef 元服务定义
type MetaServiceDef struct {
	ID            uint32   `yaml:"id" json:"id" validate:"required"`
	Name          string   `yaml:"name" json:"name"`
	HostID        uint32   `yaml:"host_id" json:"host_id"`
	ServiceID     uint32   `yaml:"service_id" json:"service_id"`
	Computation   string   `yaml:"computation" json:"computation" validate:"required,oneof=min max sum average"`
	LevelWarning  float64  `yaml:"level_warning" json:"level_warning"`
	LevelCritical float64  `yaml:"level_critical" json:"level_critical"`
	MetricIDs     []uint32 `yaml:"metric_ids" json:"metric_ids"`
}

// BoolExpDef 布尔表达式定义
type BoolExpDef struct {
	ID         uint32 `yaml:"id" json:"id" validate:"required"`
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression" validate:"required"`
	ImpactIf   bool   `yaml:"impact_if" json:"impact_if"` // 表达式取该值时视为异常
}

// BADef BA 定义
type BADef struct {
	ID                    uint32  `yaml:"id" json:"id" validate:"required"`
	Name                  string  `yaml:"name" json:"name"`
	HostID                uint32  `yaml:"host_id" json:"host_id"`
	ServiceID             uint32  `yaml:"service_id" json:"service_id"`
	StateSource           string  `yaml:"state_source" json:"state_source" validate:"required,oneof=impact best worst ratio_number ratio_percent"`
	LevelWarning          float64 `yaml:"level_warning" json:"level_warning" validate:"gte=0"`
	LevelCritical         float64 `yaml:"level_critical" json:"level_critical" validate:"gte=0"`
	DowntimeBehaviour     string  `yaml:"downtime_behaviour" json:"downtime_behaviour" validate:"omitempty,oneof=ignore ignore_kpi inherit"`
	GenerateVirtualStatus *bool   `yaml:"generate_virtual_status,omitempty" json:"generate_virtual_status,omitempty"`
}

// KPI 类型
const (
	KPITypeService = "service"
	KPITypeBA      = "ba"
	KPITypeMeta    = "meta"
	KPITypeBoolExp = "boolexp"
)

// KPIDef KPI 定义，按 Type 使用对应的输入字段。
type KPIDef struct {
	ID             uint32  `yaml:"id" json:"id" validate:"required"`
	BaID           uint32  `yaml:"ba_id" json:"ba_id" validate:"required"`
	Type           string  `yaml:"type" json:"type" validate:"required,oneof=service ba meta boolexp"`
	HostID         uint32  `yaml:"host_id,omitempty" json:"host_id,omitempty" validate:"required_if=Type service"`
	ServiceID      uint32  `yaml:"service_id,omitempty" json:"service_id,omitempty" validate:"required_if=Type service"`
	IndicatorBaID  uint32  `yaml:"indicator_ba_id,omitempty" json:"indicator_ba_id,omitempty" validate:"required_if=Type ba"`
	MetaID         uint32  `yaml:"meta_id,omitempty" json:"meta_id,omitempty" validate:"required_if=Type meta"`
	BoolExpID      uint32  `yaml:"boolexp_id,omitempty" json:"boolexp_id,omitempty" validate:"required_if=Type boolexp"`
	ImpactWarning  float64 `yaml:"impact_warning" json:"impact_warning" validate:"gte=0"`
	ImpactCritical float64 `yaml:"impact_critical" json:"impact_critical" validate:"gte=0"`
	ImpactUnknown  float64 `yaml:"impact_unknown" json:"impact_unknown" validate:"gte=0"`
}

var validate = validator.New()

// Validate 校验字段约束及 ID 唯一性，引用关系由 Applier 检查。
func (c *BAMConfig) Validate() error {
	if c == nil {
		return errors.New("BAM 定义为空")
	}
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "BAM 定义字段校验失败")
	}

	if err := checkUnique("meta_service", len(c.MetaServices), func(i int) uint32 { return c.MetaServices[i].ID }); err != nil {
		return err
	}
	if err := checkUnique("boolexp", len(c.BoolExps), func(i int) uint32 { return c.BoolExps[i].ID }); err != nil {
		return err
	}
	if err := checkUnique("ba", len(c.BAs), func(i int) uint32 { return c.BAs[i].ID }); err != nil {
		return err
	}
	return checkUnique("kpi", len(c.KPIs), func(i int) uint32 { return c.KPIs[i].ID })
}

func checkUnique(kind string, n int, id func(i int) uint32) error {
	seen := make(map[uint32]struct{}, n)
	for i := 0; i < n; i++ {
		if _, ok := seen[id(i)]; ok {
			return errors.Errorf("%s id %d 重复", kind, id(i))
		}
		seen[id(i)] = struct{}{}
	}
	return nil
}

// ========== 远程 API 响应结构 ==========

// RemoteBAMConfig 远程定义接口返回格式
type RemoteBAMConfig struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    BAMConfig `json:"data"`
}

// ToBAMConfig 取出定义，未指定停机策略的 BA 补默认值。
func (r *RemoteBAMConfig) ToBAMConfig() *BAMConfig {
	cfg := r.Data
	cfg.BAs = append([]BADef(nil), r.Data.BAs...)
	for i := range cfg.BAs {
		if cfg.BAs[i].DowntimeBehaviour == "" {
			cfg.BAs[i].DowntimeBehaviour = "ignore"
		}
	}
	return &cfg
}

// ResolveService 按主机名和服务名查找服务 ID。
func (c *BAMConfig) ResolveService(host, service string) (uint32, uint32, bool) {
	for _, s := range c.Services {
		if s.HostName == host && s.ServiceName == service && s.HostID != 0 {
			return s.HostID, s.ServiceID, true
		}
	}
	return 0, 0, false
}
