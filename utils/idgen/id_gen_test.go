package idgen

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator_NextID(t *testing.T) {
	Convey("TestGenerator_NextID", t, func() {
		Convey("连续生成递增且唯一", func() {
			gen := New()
			var last uint64
			for i := 0; i < 3000; i++ {
				id := gen.NextID()
				So(id, ShouldBeGreaterThan, last)
				last = id
			}
		})

		Convey("并发生成不重复", func() {
			gen := New()
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = make(map[uint64]bool)
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 200; j++ {
						id := gen.NextID()
						mu.Lock()
						ids[id] = true
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			So(len(ids), ShouldEqual, 2000)
		})

		Convey("时钟回拨时仍然递增", func() {
			now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			gen := &Generator{now: func() time.Time { return now }}
			first := gen.NextID()
			now = now.Add(-time.Second)
			So(gen.NextID(), ShouldBeGreaterThan, first)
		})

		Convey("编号高位是毫秒时间戳", func() {
			now := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
			gen := &Generator{now: func() time.Time { return now }}
			So(gen.NextID()>>seqBits, ShouldEqual, 1000)
		})
	})
}

func BenchmarkGenerator_NextID(b *testing.B) {
	gen := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.NextID()
	}
}
