package opensearch

import (
	"github.com/opensearch-project/opensearch-go/v2"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
)

type RepositoryFactory struct {
	client *opensearch.Client

	baEventStore         core.BaEventRepository
	kpiEventStore        core.KpiEventRepository
	baDurationEventStore core.BaDurationEventRepository
	statusStore          core.StatusRepository
	availabilityStore    core.AvailabilityRepository
}

var _ core.RepositoryFactory = (*RepositoryFactory)(nil)

func NewRepositoryFactory(client *opensearch.Client) *RepositoryFactory {
	return &RepositoryFactory{client: client}
}

func (r *RepositoryFactory) BaEvent() core.BaEventRepository {
	if r.baEventStore == nil {
		r.baEventStore = NewBaEventStore(r.client)
	}
	return r.baEventStore
}

func (r *RepositoryFactory) KpiEvent() core.KpiEventRepository {
	if r.kpiEventStore == nil {
		r.kpiEventStore = NewKpiEventStore(r.client)
	}
	return r.kpiEventStore
}

func (r *RepositoryFactory) BaDurationEvent() core.BaDurationEventRepository {
	if r.baDurationEventStore == nil {
		r.baDurationEventStore = NewBaDurationEventStore(r.client)
	}
	return r.baDurationEventStore
}

func (r *RepositoryFactory) Status() core.StatusRepository {
	if r.statusStore == nil {
		r.statusStore = NewStatusStore(r.client)
	}
	return r.statusStore
}

func (r *RepositoryFactory) Availability() core.AvailabilityRepository {
	if r.availabilityStore == nil {
		r.availabilityStore = NewAvailabilityStore(r.client)
	}
	return r.availabilityStore
}
