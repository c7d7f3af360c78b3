package domain

// ImpactValue 一个子节点对父 BA 的影响，按原因拆分为名义影响、确认影响和停机影响。
// 每次查询都新建，比较时使用精确浮点相等。
type ImpactValue struct {
	Nominal         float64 `json:"nominal"`
	Acknowledgement float64 `json:"acknowledgement"`
	Downtime        float64 `json:"downtime"`
	State           State   `json:"state"`
}

func NewImpactValue(nominal, acknowledgement, downtime float64, state State) ImpactValue {
	return ImpactValue{
		Nominal:         nominal,
		Acknowledgement: acknowledgement,
		Downtime:        downtime,
		State:           state,
	}
}

// Equal 精确比较，用于识别无变化的更新。
func (v ImpactValue) Equal(o ImpactValue) bool {
	return v.Nominal == o.Nominal &&
		v.Acknowledgement == o.Acknowledgement &&
		v.Downtime == o.Downtime &&
		v.State == o.State
}
