package domain

import (
	"encoding/json"
	"math"
	"time"
)

// EventType 引擎输出的记录类型。
type EventType string

const (
	EventTypeBaEvent           EventType = "ba_event"
	EventTypeKpiEvent          EventType = "kpi_event"
	EventTypeBaStatus          EventType = "ba_status"
	EventTypeKpiStatus         EventType = "kpi_status"
	EventTypeMetaServiceStatus EventType = "meta_service_status"
	EventTypeBoolStatus        EventType = "bool_status"
	EventTypeInheritedDowntime EventType = "inherited_downtime"
	EventTypeServiceStatus     EventType = "service_status"
	EventTypeBaDurationEvent   EventType = "ba_duration_event"
)

// Event 引擎写入 visitor 的所有记录的公共接口。
type Event interface {
	EventType() EventType
}

// BaEvent BA 状态区间 [StartTime, EndTime)，EndTime 为空表示区间仍打开。
type BaEvent struct {
	BaID       uint32     `json:"ba_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Status     State      `json:"status"`
	InDowntime bool       `json:"in_downtime"`
	FirstLevel float64    `json:"first_level"`
}

func (e *BaEvent) EventType() EventType { return EventTypeBaEvent }

// Open 区间是否仍打开。
func (e *BaEvent) Open() bool { return e.EndTime == nil }

// KpiEvent KPI 状态区间。
type KpiEvent struct {
	KpiID       uint32     `json:"kpi_id"`
	BaID        uint32     `json:"ba_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      State      `json:"status"`
	InDowntime  bool       `json:"in_downtime"`
	ImpactLevel float64    `json:"impact_level"`
	Output      string     `json:"output"`
	Perfdata    string     `json:"perfdata"`
}

func (e *KpiEvent) EventType() EventType { return EventTypeKpiEvent }

func (e *KpiEvent) Open() bool { return e.EndTime == nil }

// BaStatus BA 当前状态快照，level 均已归一到 [0,100]。
type BaStatus struct {
	BaID                 uint32    `json:"ba_id"`
	InDowntime           bool      `json:"in_downtime"`
	LastStateChange      time.Time `json:"last_state_change"`
	LevelAcknowledgement float64   `json:"level_acknowledgement"`
	LevelDowntime        float64   `json:"level_downtime"`
	LevelNominal         float64   `json:"level_nominal"`
	State                State     `json:"state"`
	StateChanged         bool      `json:"state_changed"`
}

func (e *BaStatus) EventType() EventType { return EventTypeBaStatus }

// KpiStatus KPI 当前状态快照。
type KpiStatus struct {
	KpiID                    uint32    `json:"kpi_id"`
	InDowntime               bool      `json:"in_downtime"`
	LevelAcknowledgementHard float64   `json:"level_acknowledgement_hard"`
	LevelAcknowledgementSoft float64   `json:"level_acknowledgement_soft"`
	LevelDowntimeHard        float64   `json:"level_downtime_hard"`
	LevelDowntimeSoft        float64   `json:"level_downtime_soft"`
	LevelNominalHard         float64   `json:"level_nominal_hard"`
	LevelNominalSoft         float64   `json:"level_nominal_soft"`
	StateHard                State     `json:"state_hard"`
	StateSoft                State     `json:"state_soft"`
	LastStateChange          time.Time `json:"last_state_change"`
	LastImpact               float64   `json:"last_impact"`
	Valid                    bool      `json:"valid"`
}

func (e *KpiStatus) EventType() EventType { return EventTypeKpiStatus }

// MetaServiceStatus 元服务取值。
type MetaServiceStatus struct {
	MetaServiceID uint32  `json:"meta_service_id"`
	Value         float64 `json:"value"`
	State         State   `json:"state"`
	StateChanged  bool    `json:"state_changed"`
}

func (e *MetaServiceStatus) EventType() EventType { return EventTypeMetaServiceStatus }

// MarshalJSON 取值为 NaN 时输出 null。
func (e MetaServiceStatus) MarshalJSON() ([]byte, error) {
	type plain MetaServiceStatus
	out := struct {
		plain
		Value *float64 `json:"value"`
	}{plain: plain(e)}
	if !math.IsNaN(e.Value) {
		v := e.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// BoolStatus 布尔表达式取值。
type BoolStatus struct {
	BoolID uint32 `json:"bool_id"`
	State  bool   `json:"state"`
}

func (e *BoolStatus) EventType() EventType { return EventTypeBoolStatus }

// InheritedDowntime BA 因全部子 KPI 停机而继承的停机。
type InheritedDowntime struct {
	BaID       uint32 `json:"ba_id"`
	InDowntime bool   `json:"in_downtime"`
}

func (e *InheritedDowntime) EventType() EventType { return EventTypeInheritedDowntime }

// ServiceStatus BA 虚拟服务的被动检查结果，供下游按普通服务处理。
type ServiceStatus struct {
	HostID        uint32    `json:"host_id"`
	ServiceID     uint32    `json:"service_id"`
	CurrentState  State     `json:"current_state"`
	LastHardState State     `json:"last_hard_state"`
	StateType     int       `json:"state_type"`
	Output        string    `json:"output"`
	Perfdata      string    `json:"perfdata"`
	LastCheck     time.Time `json:"last_check"`
	LastUpdate    time.Time `json:"last_update"`
	ActiveChecks  bool      `json:"active_checks_enabled"`
	PassiveChecks bool      `json:"passive_checks_enabled"`
}

func (e *ServiceStatus) EventType() EventType { return EventTypeServiceStatus }

// BaDurationEvent 由已关闭的 BaEvent 推导出的时长记录，以 (ba_id, start_time) 为键。
type BaDurationEvent struct {
	BaID                uint32    `json:"ba_id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	Duration            int64     `json:"duration"`
	SlaDuration         int64     `json:"sla_duration"`
	TimeperiodIsDefault bool      `json:"timeperiod_is_default"`
}

func (e *BaDurationEvent) EventType() EventType { return EventTypeBaDurationEvent }

// NewBaDurationEvent 根据已关闭的 BA 事件生成时长记录，未关闭时返回 nil。
func NewBaDurationEvent(ev *BaEvent) *BaDurationEvent {
	if ev == nil || ev.EndTime == nil {
		return nil
	}
	d := int64(ev.EndTime.Sub(ev.StartTime).Seconds())
	if d < 0 {
		d = 0
	}
	return &BaDurationEvent{
		BaID:                ev.BaID,
		StartTime:           ev.StartTime,
		EndTime:             *ev.EndTime,
		Duration:            d,
		SlaDuration:         d,
		TimeperiodIsDefault: true,
	}
}
