package utils

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJsonEncode(t *testing.T) {
	Convey("TestJsonEncode", t, func() {
		Convey("编码 struct 类型", func() {
			type update struct {
				HostID    uint32 `json:"host_id"`
				ServiceID uint32 `json:"service_id"`
				Output    string `json:"output,omitempty"`
			}
			So(JsonEncode(update{HostID: 1, ServiceID: 11}), ShouldEqual, `{"host_id":1,"service_id":11}`)
		})

		Convey("编码 map 类型", func() {
			result := JsonEncode(map[string]interface{}{"type": "metric", "value": 2.5})
			So(result, ShouldContainSubstring, `"type":"metric"`)
			So(result, ShouldContainSubstring, `"value":2.5`)
		})

		Convey("编码 nil 与空集合", func() {
			So(JsonEncode(nil), ShouldEqual, "null")
			So(JsonEncode([]int{}), ShouldEqual, "[]")
		})
	})
}
