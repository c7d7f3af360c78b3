package opensearch

// 基础索引名称
const (
	BaEventIndexBase         = "itops_bam_ba_event"
	KpiEventIndexBase        = "itops_bam_kpi_event"
	BaDurationEventIndexBase = "itops_bam_ba_duration_event"
	StatusIndexBase          = "itops_bam_status"
	AvailabilityIndexBase    = "itops_bam_ba_availability"

	maxQuerySize = 5000
	indexPrefix  = "mdl-"
)

// 实际索引名称
var (
	BaEventIndex         = indexPrefix + BaEventIndexBase
	KpiEventIndex        = indexPrefix + KpiEventIndexBase
	BaDurationEventIndex = indexPrefix + BaDurationEventIndexBase
	StatusIndex          = indexPrefix + StatusIndexBase
	AvailabilityIndex    = indexPrefix + AvailabilityIndexBase
)
