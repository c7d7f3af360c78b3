package standardizer

import (
	"context"
	"reflect"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
)

const (
	SourceNative        = "native"
	SourceZabbixWebhook = "zabbix_webhook"
)

// envelope 原生格式：{"type": "...", "data": {...}}
type envelope struct {
	Type domain.UpdateType `json:"type"`
	Data map[string]any    `json:"data"`
}

// jsonAPI 整数保留为 int64，避免 internal_id 等大整数丢精度。
var jsonAPI = sonic.Config{UseInt64: true}.Froze()

type nativeStandardizer struct{}

// NewNativeStandardizer 解析引擎自有的更新信封，data 字段弱类型解码。
func NewNativeStandardizer() Standardizer {
	return nativeStandardizer{}
}

func (nativeStandardizer) Standardize(_ context.Context, payload []byte) (domain.Update, error) {
	var env envelope
	if err := jsonAPI.Unmarshal(payload, &env); err != nil {
		return domain.Update{}, errors.Wrap(err, "解析更新信封失败")
	}
	if env.Data == nil {
		return domain.Update{}, errors.Errorf("更新 %s 缺少 data", env.Type)
	}
	return DecodeUpdate(env.Type, env.Data)
}

// DecodeUpdate 按类型把松散的字段表解码为 Update。
func DecodeUpdate(typ domain.UpdateType, data map[string]any) (domain.Update, error) {
	u := domain.Update{Type: typ}
	var target any
	switch typ {
	case domain.UpdateTypeServiceStatus:
		u.ServiceStatus = &domain.ServiceStatusUpdate{}
		target = u.ServiceStatus
	case domain.UpdateTypeAcknowledgement:
		u.Acknowledgement = &domain.AcknowledgementUpdate{}
		target = u.Acknowledgement
	case domain.UpdateTypeDowntime:
		u.Downtime = &domain.DowntimeUpdate{}
		target = u.Downtime
	case domain.UpdateTypeMetric:
		u.Metric = &domain.MetricUpdate{}
		target = u.Metric
	default:
		return domain.Update{}, errors.Errorf("未知的更新类型: %q", typ)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stateHook,
			timeHook,
		),
	})
	if err != nil {
		return domain.Update{}, errors.Wrap(err, "创建解码器失败")
	}
	if err := dec.Decode(data); err != nil {
		return domain.Update{}, errors.Wrapf(err, "解码 %s 失败", typ)
	}
	return u, nil
}

var (
	stateType = reflect.TypeOf(domain.State(0))
	timeType  = reflect.TypeOf(time.Time{})
)

// stateHook 状态既可以是数字也可以是 OK/WARNING/CRITICAL/UNKNOWN。
func stateHook(from, to reflect.Type, data any) (any, error) {
	if to != stateType || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	if st, ok := domain.ParseState(s); ok {
		return st, nil
	}
	n, err := cast.ToInt16E(s)
	if err != nil {
		return nil, errors.Errorf("非法状态 %q", s)
	}
	return domain.State(n), nil
}

// timeHook 时间支持 RFC3339 字符串和 Unix 秒，0 与空串表示未设置。
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		s := data.(string)
		if s == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		sec, err := cast.ToInt64E(s)
		if err != nil {
			return nil, errors.Errorf("非法时间 %q", s)
		}
		return unixOrZero(sec), nil
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		return unixOrZero(cast.ToInt64(data)), nil
	}
	return data, nil
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
