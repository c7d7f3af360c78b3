package domain

import "time"

// BaAvailability BA 在一个统计窗口内的可用性汇总，时长单位为秒。
type BaAvailability struct {
	BaID                   uint32    `json:"ba_id"`
	TimeID                 time.Time `json:"time_id"` // 窗口起点
	WindowEnd              time.Time `json:"window_end"`
	Available              int64     `json:"available"`
	Degraded               int64     `json:"degraded"`
	Unavailable            int64     `json:"unavailable"`
	Unknown                int64     `json:"unknown"`
	Downtime               int64     `json:"downtime"`
	AlertUnavailableOpened int       `json:"alert_unavailable_opened"`
	AlertDegradedOpened    int       `json:"alert_degraded_opened"`
	AlertUnknownOpened     int       `json:"alert_unknown_opened"`
	NbDowntime             int       `json:"nb_downtime"`
	TimeperiodIsDefault    bool      `json:"timeperiod_is_default"`
}

// EngineState 进程重启需要恢复的引擎状态。
type EngineState struct {
	InheritedDowntimes []InheritedDowntime `json:"inherited_downtimes"`
	BaEvents           []BaEvent           `json:"ba_events"`
	KpiEvents          []KpiEvent          `json:"kpi_events"`
	Services           []ServiceState      `json:"services,omitempty"`
	Metrics            []MetricValue       `json:"metrics,omitempty"`
}

// ServiceState 服务叶子最近一次收到的输入，重建计算图后原样恢复。
type ServiceState struct {
	HostID        uint32    `json:"host_id"`
	ServiceID     uint32    `json:"service_id"`
	LastHardState State     `json:"last_hard_state"`
	CurrentState  State     `json:"current_state"`
	StateType     int       `json:"state_type"`
	Acknowledged  bool      `json:"acknowledged"`
	Downtimes     []uint64  `json:"downtimes,omitempty"` // 仍生效的停机 internal_id
	LastCheck     time.Time `json:"last_check"`
	Output        string    `json:"output,omitempty"`
	Perfdata      string    `json:"perfdata,omitempty"`
}

type MetricValue struct {
	MetricID uint32  `json:"metric_id"`
	Value    float64 `json:"value"`
}
