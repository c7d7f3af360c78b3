package utils

import (
	"github.com/bytedance/sonic"
)

// JsonEncode 用于日志输出，编码失败时返回空串。
func JsonEncode(s interface{}) string {
	str, _ := sonic.MarshalString(s)
	return str
}
