package standardizer

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils/timex"
)

// ZabbixWebhook Zabbix 告警媒介推送的字段，主机名与监控项名对应 BAM 服务定义。
type ZabbixWebhook struct {
	Description      string `json:"description"`
	EventId          string `json:"event_id"`
	EventName        string `json:"event_name"`
	OccurTime        string `json:"occur_time"`
	RecoveryTime     string `json:"recovery_time"`
	EventSeverity    string `json:"event_severity"`
	EventStatus      string `json:"event_status"`
	EntityObjectName string `json:"entity_object_name"`
	ItemName         string `json:"item_name"`
	ItemValue        string `json:"item_value"`
}

type zabbixStandardizer struct {
	resolver ServiceResolver
}

// NewZabbixWebhookStandardizer 把 Zabbix 告警转换为服务状态更新。
func NewZabbixWebhookStandardizer(resolver ServiceResolver) Standardizer {
	return &zabbixStandardizer{resolver: resolver}
}

func (s *zabbixStandardizer) Standardize(_ context.Context, payload []byte) (domain.Update, error) {
	var hook ZabbixWebhook
	if err := sonic.Unmarshal(payload, &hook); err != nil {
		return domain.Update{}, errors.Wrap(err, "解析ZabbixWebhook数据失败")
	}

	hostID, serviceID, ok := s.resolver.ResolveService(hook.EntityObjectName, hook.ItemName)
	if !ok {
		return domain.Update{}, errors.Errorf("未定义的服务: host=%s item=%s", hook.EntityObjectName, hook.ItemName)
	}

	recovered := hook.EventStatus == "恢复"
	state := mapSeverity(hook.EventSeverity)
	checkTime := hook.OccurTime
	if recovered {
		state = domain.StateOk
		checkTime = hook.RecoveryTime
	}

	lastCheck := timex.NowLocalTime()
	if checkTime != "" {
		t, err := timex.ParseTime(checkTime, time.DateTime)
		if err != nil {
			log.Warnf("解析事件时间失败: event_id=%s, time=%s, err=%v", hook.EventId, checkTime, err)
		} else {
			lastCheck = t
		}
	}

	return domain.Update{
		Type: domain.UpdateTypeServiceStatus,
		ServiceStatus: &domain.ServiceStatusUpdate{
			HostID:        hostID,
			ServiceID:     serviceID,
			LastCheck:     lastCheck,
			CurrentState:  state,
			LastHardState: state,
			StateType:     1, // Zabbix 告警只在确认后推送
			Output:        strings.TrimSpace(hook.EventName + " " + hook.Description),
			Perfdata:      perfdata(hook.ItemValue),
		},
	}, nil
}

func mapSeverity(zabbixSeverity string) domain.State {
	switch zabbixSeverity {
	case "Disaster", "High":
		return domain.StateCritical
	case "Average", "Warning":
		return domain.StateWarning
	case "Information", "Not classified":
		return domain.StateOk
	}
	return domain.StateUnknown
}

func perfdata(value string) string {
	if value == "" {
		return ""
	}
	return "value=" + value
}
