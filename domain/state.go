package domain

import "strings"

// State 监控状态，取值与监控引擎的服务状态一致。
type State int16

const (
	StateOk       State = 0
	StateWarning  State = 1
	StateCritical State = 2
	StateUnknown  State = 3
)

var stateNames = [...]string{"OK", "WARNING", "CRITICAL", "UNKNOWN"}

func (s State) String() string {
	if s < StateOk || s > StateUnknown {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Valid 是否为合法状态值。
func (s State) Valid() bool {
	return s >= StateOk && s <= StateUnknown
}

// ParseState 解析状态名称（大小写不敏感），无法识别时返回 false。
func ParseState(s string) (State, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK", "UP":
		return StateOk, true
	case "WARNING":
		return StateWarning, true
	case "CRITICAL", "DOWN":
		return StateCritical, true
	case "UNKNOWN", "UNREACHABLE":
		return StateUnknown, true
	}
	return StateUnknown, false
}

// StateSource BA 状态计算方式。
type StateSource string

const (
	StateSourceImpact       StateSource = "impact"
	StateSourceBest         StateSource = "best"
	StateSourceWorst        StateSource = "worst"
	StateSourceRatioNumber  StateSource = "ratio_number"
	StateSourceRatioPercent StateSource = "ratio_percent"
)

// DowntimeBehaviour BA 对子 KPI 停机的处理方式。
type DowntimeBehaviour string

const (
	DowntimeIgnore    DowntimeBehaviour = "ignore"     // 忽略停机
	DowntimeIgnoreKpi DowntimeBehaviour = "ignore_kpi" // 停机中的 KPI 不参与计算
	DowntimeInherit   DowntimeBehaviour = "inherit"    // 全部子 KPI 停机时 BA 继承停机
)

// Computation 元服务聚合方式。
type Computation string

const (
	ComputationMin     Computation = "min"
	ComputationMax     Computation = "max"
	ComputationSum     Computation = "sum"
	ComputationAverage Computation = "average"
)
