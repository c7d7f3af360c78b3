package availability

import (
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// Builder 累计一个 BA 在 [start, end) 窗口内各状态的秒数。
// 时间段固定为 7x24，结果的 TimeperiodIsDefault 恒为 true。
type Builder struct {
	res domain.BaAvailability
}

func NewBuilder(baID uint32, start, end time.Time) *Builder {
	return &Builder{res: domain.BaAvailability{
		BaID:                baID,
		TimeID:              start,
		WindowEnd:           end,
		TimeperiodIsDefault: true,
	}}
}

// AddEvent 截取事件落在窗口内的部分，打开的事件按窗口结束处理。
// 只有在窗口内开始的事件才计入告警次数。
func (b *Builder) AddEvent(ev domain.BaEvent) {
	start, end := ev.StartTime, b.res.WindowEnd
	if ev.EndTime != nil {
		end = *ev.EndTime
	}
	if end.Before(b.res.TimeID) {
		return
	}
	openedInWindow := !start.Before(b.res.TimeID) && start.Before(b.res.WindowEnd)
	if start.Before(b.res.TimeID) {
		start = b.res.TimeID
	}
	if end.After(b.res.WindowEnd) {
		end = b.res.WindowEnd
	}
	if end.Before(start) {
		return
	}
	d := int64(end.Sub(start).Seconds())

	r := &b.res
	if ev.InDowntime {
		r.Downtime += d
		if openedInWindow {
			r.NbDowntime++
		}
		return
	}
	switch ev.Status {
	case domain.StateOk:
		r.Available += d
	case domain.StateWarning:
		r.Degraded += d
		if openedInWindow {
			r.AlertDegradedOpened++
		}
	case domain.StateCritical:
		r.Unavailable += d
		if openedInWindow {
			r.AlertUnavailableOpened++
		}
	default:
		r.Unknown += d
		if openedInWindow {
			r.AlertUnknownOpened++
		}
	}
}

func (b *Builder) Result() domain.BaAvailability {
	return b.res
}
