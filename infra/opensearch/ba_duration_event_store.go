package opensearch

import (
	"context"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// BaDurationEventStore 负责 itops_bam_ba_duration_event 索引。
type BaDurationEventStore struct {
	client *opensearchsdk.Client
}

type baDurationEventDocument struct {
	domain.BaDurationEvent
	document
}

func NewBaDurationEventStore(client *opensearchsdk.Client) *BaDurationEventStore {
	return &BaDurationEventStore{client: client}
}

// Upsert 与 BA 事件共用 (ba_id, start_time) 键，重复写入幂等。
func (s *BaDurationEventStore) Upsert(ctx context.Context, ev domain.BaDurationEvent) error {
	id := baEventID(ev.BaID, ev.StartTime)
	doc := baDurationEventDocument{
		BaDurationEvent: ev,
		document:        newDocument(BaDurationEventIndexBase, id, ev.EndTime),
	}
	return indexDocument(ctx, s.client, "BaDurationEventStore.Upsert", BaDurationEventIndex, id, doc)
}
