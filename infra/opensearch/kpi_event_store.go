package opensearch

import (
	"context"
	"fmt"
	"time"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// KpiEventStore 负责 itops_bam_kpi_event 索引，文档以 (kpi_id, start_time) 为键。
type KpiEventStore struct {
	client *opensearchsdk.Client
}

type kpiEventDocument struct {
	domain.KpiEvent
	document
}

func NewKpiEventStore(client *opensearchsdk.Client) *KpiEventStore {
	return &KpiEventStore{client: client}
}

func (s *KpiEventStore) Upsert(ctx context.Context, ev domain.KpiEvent) error {
	id := fmt.Sprintf("%d_%d", ev.KpiID, ev.StartTime.UnixNano())
	doc := kpiEventDocument{
		KpiEvent: ev,
		document: newDocument(KpiEventIndexBase, id, ev.StartTime),
	}
	return indexDocument(ctx, s.client, "KpiEventStore.Upsert", KpiEventIndex, id, doc)
}

func (s *KpiEventStore) QueryByKpiID(ctx context.Context, kpiID uint32, start, end time.Time) ([]domain.KpiEvent, error) {
	query := overlapQuery(map[string]any{"kpi_id": kpiID}, start, end)
	return searchDocuments[domain.KpiEvent](ctx, s.client, "KpiEventStore.QueryByKpiID", KpiEventIndex, query)
}
