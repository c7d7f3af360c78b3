package bam

import (
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"github.com/pkg/errors"
)

// Kpi BA 的一个加权输入，包装服务、子 BA、元服务或布尔表达式。
type Kpi interface {
	Computable
	KpiID() uint32
	BaID() uint32
	ImpactHard() domain.ImpactValue
	ImpactSoft() domain.ImpactValue
	InDowntime() bool
	OkState() bool
	LastStateChange() time.Time
	Valid() bool
	SetValid(valid bool)
	Visit(v Visitor)
	SetInitialEvent(ev domain.KpiEvent) error
	OpenEvent() *domain.KpiEvent
}

// ImpactTable 各状态对应的影响权重，OK 固定为 0。
type ImpactTable struct {
	Warning  float64
	Critical float64
	Unknown  float64
}

func (t ImpactTable) nominal(s domain.State) float64 {
	switch s {
	case domain.StateWarning:
		return t.Warning
	case domain.StateCritical:
		return t.Critical
	case domain.StateUnknown:
		return t.Unknown
	}
	return 0
}

// kpi 各 KPI 变体共享的事件生命周期。
type kpi struct {
	computable
	baID          uint32
	valid         bool
	event         *domain.KpiEvent
	initialEvents []domain.KpiEvent
}

func newKpi(id, baID uint32) kpi {
	return kpi{
		computable: newComputable(NodeID{Kind: KindKpi, ID: id}),
		baID:       baID,
		valid:      true,
	}
}

func (k *kpi) KpiID() uint32 { return k.id.ID }

func (k *kpi) BaID() uint32 { return k.baID }

func (k *kpi) Valid() bool { return k.valid }

func (k *kpi) SetValid(valid bool) { k.valid = valid }

// OpenEvent 返回当前打开事件的副本。
func (k *kpi) OpenEvent() *domain.KpiEvent {
	if k.event == nil {
		return nil
	}
	ev := *k.event
	return &ev
}

// LastStateChange 当前事件的开始时间，没有事件时为当前时间。
func (k *kpi) LastStateChange() time.Time {
	if k.event != nil {
		return k.event.StartTime
	}
	return nowFunc()
}

// SetInitialEvent 用持久化的打开事件初始化 KPI，只允许一次。
func (k *kpi) SetInitialEvent(ev domain.KpiEvent) error {
	if k.event != nil {
		log.Warnf("BAM: kpi %d 已有初始事件，忽略重复设置", k.KpiID())
		return errors.Errorf("kpi %d initial event already set", k.KpiID())
	}
	seed := ev
	k.event = &seed
	k.initialEvents = append(k.initialEvents, ev)
	return nil
}

func (k *kpi) commitInitialEvents(v Visitor) {
	if v == nil || len(k.initialEvents) == 0 {
		return
	}
	for i := range k.initialEvents {
		ev := k.initialEvents[i]
		v.Write(&ev)
	}
	k.initialEvents = nil
}

func (k *kpi) openEvent(v Visitor, start time.Time, status domain.State, inDowntime bool, impact float64, output, perfdata string) {
	k.event = &domain.KpiEvent{
		KpiID:       k.KpiID(),
		BaID:        k.baID,
		StartTime:   start,
		Status:      status,
		InDowntime:  inDowntime,
		ImpactLevel: impact,
		Output:      output,
		Perfdata:    perfdata,
	}
	ev := *k.event
	emit(v, &ev)
}

func (k *kpi) closeEvent(v Visitor, end time.Time) {
	if k.event == nil {
		return
	}
	closed := *k.event
	closed.EndTime = &end
	k.event = nil
	emit(v, &closed)
}

// eventChanged 打开事件的状态或停机标志是否与当前不同。
func (k *kpi) eventChanged(status domain.State, inDowntime bool) bool {
	return k.event != nil && (k.event.Status != status || k.event.InDowntime != inDowntime)
}

func (k *kpi) status(hard, soft domain.ImpactValue, inDowntime bool, lastImpact float64, lastStateChange time.Time) *domain.KpiStatus {
	return &domain.KpiStatus{
		KpiID:                    k.KpiID(),
		InDowntime:               inDowntime,
		LevelAcknowledgementHard: hard.Acknowledgement,
		LevelAcknowledgementSoft: soft.Acknowledgement,
		LevelDowntimeHard:        hard.Downtime,
		LevelDowntimeSoft:        soft.Downtime,
		LevelNominalHard:         hard.Nominal,
		LevelNominalSoft:         soft.Nominal,
		StateHard:                hard.State,
		StateSoft:                soft.State,
		LastStateChange:          lastStateChange,
		LastImpact:               lastImpact,
		Valid:                    k.valid,
	}
}
