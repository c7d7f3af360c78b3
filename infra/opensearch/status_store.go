package opensearch

import (
	"context"
	"fmt"
	"time"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// StatusStore 负责 itops_bam_status 索引，每个节点只保留最新一条状态。
type StatusStore struct {
	client *opensearchsdk.Client
}

// statusDocument 状态放在 status 字段下，不同节点类型的字段互不冲突。
type statusDocument struct {
	document
	EventType domain.EventType `json:"event_type"`
	Status    domain.Event     `json:"status"`
}

func NewStatusStore(client *opensearchsdk.Client) *StatusStore {
	return &StatusStore{client: client}
}

// statusID 按节点类型和节点 ID 生成文档 ID。
func statusID(ev domain.Event) (string, error) {
	switch e := ev.(type) {
	case *domain.BaStatus:
		return fmt.Sprintf("%s_%d", e.EventType(), e.BaID), nil
	case *domain.KpiStatus:
		return fmt.Sprintf("%s_%d", e.EventType(), e.KpiID), nil
	case *domain.MetaServiceStatus:
		return fmt.Sprintf("%s_%d", e.EventType(), e.MetaServiceID), nil
	case *domain.BoolStatus:
		return fmt.Sprintf("%s_%d", e.EventType(), e.BoolID), nil
	case *domain.InheritedDowntime:
		return fmt.Sprintf("%s_%d", e.EventType(), e.BaID), nil
	case *domain.ServiceStatus:
		return fmt.Sprintf("%s_%d_%d", e.EventType(), e.HostID, e.ServiceID), nil
	case nil:
		return "", errors.New("状态为空")
	default:
		return "", errors.Errorf("不支持的状态类型 %s", ev.EventType())
	}
}

func (s *StatusStore) Upsert(ctx context.Context, ev domain.Event) error {
	id, err := statusID(ev)
	if err != nil {
		return err
	}
	doc := statusDocument{
		document:  newDocument(StatusIndexBase, id, time.Now()),
		EventType: ev.EventType(),
		Status:    ev,
	}
	return indexDocument(ctx, s.client, "StatusStore.Upsert", StatusIndex, id, doc)
}
