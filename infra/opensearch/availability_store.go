package opensearch

import (
	"context"
	"fmt"
	"time"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

// AvailabilityStore 负责 itops_bam_ba_availability 索引，文档以 (ba_id, time_id) 为键。
type AvailabilityStore struct {
	client *opensearchsdk.Client
}

type availabilityDocument struct {
	domain.BaAvailability
	document
}

func NewAvailabilityStore(client *opensearchsdk.Client) *AvailabilityStore {
	return &AvailabilityStore{client: client}
}

// Upsert 同一窗口重复计算时覆盖旧结果。
func (s *AvailabilityStore) Upsert(ctx context.Context, av domain.BaAvailability) error {
	id := fmt.Sprintf("%d_%d", av.BaID, av.TimeID.Unix())
	doc := availabilityDocument{
		BaAvailability: av,
		document:       newDocument(AvailabilityIndexBase, id, av.TimeID),
	}
	return indexDocument(ctx, s.client, "AvailabilityStore.Upsert", AvailabilityIndex, id, doc)
}

// QueryByBaID 查询窗口起点落在 [start, end) 内的汇总，按时间升序。
func (s *AvailabilityStore) QueryByBaID(ctx context.Context, baID uint32, start, end time.Time) ([]domain.BaAvailability, error) {
	query := map[string]any{
		"size": maxQuerySize,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"ba_id": baID}},
					map[string]any{"range": map[string]any{"time_id": map[string]any{"gte": start, "lt": end}}},
				},
			},
		},
		"sort": []any{
			map[string]any{"time_id": map[string]any{"order": "asc"}},
		},
	}
	return searchDocuments[domain.BaAvailability](ctx, s.client, "AvailabilityStore.QueryByBaID", AvailabilityIndex, query)
}
