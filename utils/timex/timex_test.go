package timex

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNowLocalTime(t *testing.T) {
	Convey("TestNowLocalTime", t, func() {
		before := time.Now()
		result := NowLocalTime()
		So(result.Location(), ShouldEqual, time.Local)
		So(result.Before(before), ShouldBeFalse)
	})
}

func TestParseTime(t *testing.T) {
	Convey("TestParseTime", t, func() {
		Convey("按本地时区解析", func() {
			result, err := ParseTime("2026-03-01 12:30:00", time.DateTime)
			So(err, ShouldBeNil)
			So(result.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)), ShouldBeTrue)
		})

		Convey("格式不匹配返回零值", func() {
			result, err := ParseTime("2026/03/01", time.DateTime)
			So(err, ShouldNotBeNil)
			So(result.IsZero(), ShouldBeTrue)
		})
	})
}

func TestStartOfDay(t *testing.T) {
	Convey("TestStartOfDay", t, func() {
		loc := time.FixedZone("CST", 8*3600)
		day := StartOfDay(time.Date(2026, 3, 1, 23, 59, 59, 999, loc))
		So(day.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, loc)), ShouldBeTrue)
		So(day.Location(), ShouldEqual, loc)
		So(StartOfDay(day).Equal(day), ShouldBeTrue)
	})
}
