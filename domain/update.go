package domain

import "time"

// UpdateType 原始监控更新的类型。
type UpdateType string

const (
	UpdateTypeServiceStatus   UpdateType = "service_status"
	UpdateTypeAcknowledgement UpdateType = "acknowledgement"
	UpdateTypeDowntime        UpdateType = "downtime"
	UpdateTypeMetric          UpdateType = "metric"
)

// ServiceStatusUpdate 服务检查结果。
type ServiceStatusUpdate struct {
	HostID        uint32    `json:"host_id" mapstructure:"host_id"`
	ServiceID     uint32    `json:"service_id" mapstructure:"service_id"`
	LastCheck     time.Time `json:"last_check" mapstructure:"last_check"`
	LastHardState State     `json:"last_hard_state" mapstructure:"last_hard_state"`
	CurrentState  State     `json:"current_state" mapstructure:"current_state"`
	StateType     int       `json:"state_type" mapstructure:"state_type"` // 0 soft, 1 hard
	Output        string    `json:"output" mapstructure:"output"`
	Perfdata      string    `json:"perfdata" mapstructure:"perfdata"`
}

// AcknowledgementUpdate 问题确认，DeletionTime 为空表示确认仍有效。
type AcknowledgementUpdate struct {
	HostID       uint32    `json:"host_id" mapstructure:"host_id"`
	ServiceID    uint32    `json:"service_id" mapstructure:"service_id"`
	EntryTime    time.Time `json:"entry_time" mapstructure:"entry_time"`
	DeletionTime time.Time `json:"deletion_time" mapstructure:"deletion_time"`
}

// Active 确认是否生效。
func (a AcknowledgementUpdate) Active() bool {
	return a.DeletionTime.IsZero()
}

// DowntimeUpdate 停机记录，同一服务可同时存在多个停机（InternalID 区分）。
type DowntimeUpdate struct {
	InternalID      uint64    `json:"internal_id" mapstructure:"internal_id"`
	HostID          uint32    `json:"host_id" mapstructure:"host_id"`
	ServiceID       uint32    `json:"service_id" mapstructure:"service_id"`
	WasStarted      bool      `json:"was_started" mapstructure:"was_started"`
	ActualStartTime time.Time `json:"actual_start_time" mapstructure:"actual_start_time"`
	ActualEndTime   time.Time `json:"actual_end_time" mapstructure:"actual_end_time"`
	WasCancelled    bool      `json:"was_cancelled" mapstructure:"was_cancelled"`
}

// Active 停机已开始且尚未结束。
func (d DowntimeUpdate) Active() bool {
	return d.WasStarted && d.ActualEndTime.IsZero()
}

// MetricUpdate 原始指标值。
type MetricUpdate struct {
	MetricID uint32    `json:"metric_id" mapstructure:"metric_id"`
	Value    float64   `json:"value" mapstructure:"value"`
	Ctime    time.Time `json:"ctime" mapstructure:"ctime"`
}

// Update 标准化后的原始更新，仅一个字段非空。
type Update struct {
	Type            UpdateType             `json:"type"`
	ServiceStatus   *ServiceStatusUpdate   `json:"service_status,omitempty"`
	Acknowledgement *AcknowledgementUpdate `json:"acknowledgement,omitempty"`
	Downtime        *DowntimeUpdate        `json:"downtime,omitempty"`
	Metric          *MetricUpdate          `json:"metric,omitempty"`
}
