package opensearch

import (
	"context"
	"fmt"
	"time"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// BaEventStore 负责 itops_bam_ba_event 索引，文档以 (ba_id, start_time) 为键。
type BaEventStore struct {
	client *opensearchsdk.Client
}

type baEventDocument struct {
	domain.BaEvent
	document
}

func NewBaEventStore(client *opensearchsdk.Client) *BaEventStore {
	return &BaEventStore{client: client}
}

func baEventID(baID uint32, start time.Time) string {
	return fmt.Sprintf("%d_%d", baID, start.UnixNano())
}

// Upsert 写入 BA 事件；区间关闭后以相同键再次写入覆盖 end_time。
func (s *BaEventStore) Upsert(ctx context.Context, ev domain.BaEvent) error {
	id := baEventID(ev.BaID, ev.StartTime)
	doc := baEventDocument{
		BaEvent:  ev,
		document: newDocument(BaEventIndexBase, id, ev.StartTime),
	}
	return indexDocument(ctx, s.client, "BaEventStore.Upsert", BaEventIndex, id, doc)
}

// QueryByBaID 查询某个 BA 与 [start, end) 相交的事件，按开始时间升序。
func (s *BaEventStore) QueryByBaID(ctx context.Context, baID uint32, start, end time.Time) ([]domain.BaEvent, error) {
	query := overlapQuery(map[string]any{"ba_id": baID}, start, end)
	return searchDocuments[domain.BaEvent](ctx, s.client, "BaEventStore.QueryByBaID", BaEventIndex, query)
}

// QueryInWindow 查询全部 BA 与 [start, end) 相交的事件。
func (s *BaEventStore) QueryInWindow(ctx context.Context, start, end time.Time) ([]domain.BaEvent, error) {
	query := overlapQuery(nil, start, end)
	return searchDocuments[domain.BaEvent](ctx, s.client, "BaEventStore.QueryInWindow", BaEventIndex, query)
}
