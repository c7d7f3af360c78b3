package slice

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// SplitToStrings 将逗号分隔的字符串解析为字符串切片，忽略空白项。
func SplitToStrings(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			result = append(result, part)
		}
	}
	return result
}

// SplitToUint32s 将逗号分隔的 ID 列表解析为 uint32 切片，重复的 ID 只保留一个。
func SplitToUint32s(value string) ([]uint32, error) {
	parts := SplitToStrings(value)
	result := make([]uint32, 0, len(parts))
	seen := make(map[uint32]struct{}, len(parts))
	for _, part := range parts {
		id, err := cast.ToUint32E(part)
		if err != nil || id == 0 {
			return nil, errors.Errorf("非法 ID: %q", part)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}
