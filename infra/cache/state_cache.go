package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

const defaultStateKey = "itops-bam-engine:state"

// StateCache 把引擎状态快照整体序列化成一个键。
type StateCache struct {
	cache Cache
	key   string
	ttl   time.Duration
}

// NewStateCache ttl 为 0 时快照不过期。
func NewStateCache(c Cache, key string, ttl time.Duration) *StateCache {
	if key == "" {
		key = defaultStateKey
	}
	return &StateCache{cache: c, key: key, ttl: ttl}
}

// Save 覆盖保存快照。
func (s *StateCache) Save(ctx context.Context, st domain.EngineState) error {
	defer func(start time.Time) {
		log.Debugw("Redis",
			"operation", "StateCache.Save",
			"key", s.key,
			"ba_events", len(st.BaEvents),
			"kpi_events", len(st.KpiEvents),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	data, err := sonic.MarshalString(st)
	if err != nil {
		return errors.Wrap(err, "序列化引擎状态失败")
	}
	return s.cache.Set(ctx, s.key, data, s.ttl)
}

// Load 读取快照，首次启动没有快照时返回空状态。
func (s *StateCache) Load(ctx context.Context) (domain.EngineState, error) {
	var st domain.EngineState
	data, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		log.Infof("未找到引擎状态快照 %s，从空状态启动", s.key)
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := sonic.UnmarshalString(data, &st); err != nil {
		return domain.EngineState{}, errors.Wrap(err, "解析引擎状态失败")
	}
	return st, nil
}
