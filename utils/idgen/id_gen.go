package idgen

import (
	"sync"
	"time"
)

const (
	// 2026-01-01 00:00:00 UTC，毫秒
	customEpoch = 1767225600000

	// 每毫秒最多 1024 个 ID
	seqBits = 10
	seqMask = (1 << seqBits) - 1
)

// Generator 生成单调递增的接收编号：毫秒时间戳左移 seqBits 位加序列号。
type Generator struct {
	mu     sync.Mutex
	now    func() time.Time
	lastTs int64
	seq    int64
}

func New() *Generator {
	return &Generator{now: time.Now}
}

func (g *Generator) millis() int64 {
	return g.now().UnixMilli() - customEpoch
}

func (g *Generator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.millis()
	if ts < g.lastTs {
		// 时钟回拨时沿用上一个时间戳
		ts = g.lastTs
	}

	if ts == g.lastTs {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for ts <= g.lastTs {
				time.Sleep(100 * time.Microsecond)
				ts = g.millis()
			}
		}
	} else {
		g.seq = 0
	}

	g.lastTs = ts
	return uint64(ts)<<seqBits | uint64(g.seq)
}
