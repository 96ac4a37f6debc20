package implementations

import "sync/atomic"

// Counters holds the process-wide lifetime totals from spec.md §3: a
// handful of independently-atomic int64s, no shared lock. Readers may
// observe totalMessagesProcessed lagging slightly behind the sum of
// per-analyzer message counts during concurrent updates; spec.md §5
// treats that staleness as acceptable.
type Counters struct {
	packetsReceived  int64
	packetsQueued    int64
	packetsProcessed int64
	packetsDropped   int64
	totalMessages    int64
}

func (c *Counters) IncReceived()        { atomic.AddInt64(&c.packetsReceived, 1) }
func (c *Counters) IncQueued()          { atomic.AddInt64(&c.packetsQueued, 1) }
func (c *Counters) IncProcessed()       { atomic.AddInt64(&c.packetsProcessed, 1) }
func (c *Counters) IncDropped()         { atomic.AddInt64(&c.packetsDropped, 1) }
func (c *Counters) AddMessages(n int64) { atomic.AddInt64(&c.totalMessages, n) }

func (c *Counters) Received() int64      { return atomic.LoadInt64(&c.packetsReceived) }
func (c *Counters) Queued() int64        { return atomic.LoadInt64(&c.packetsQueued) }
func (c *Counters) Processed() int64     { return atomic.LoadInt64(&c.packetsProcessed) }
func (c *Counters) Dropped() int64       { return atomic.LoadInt64(&c.packetsDropped) }
func (c *Counters) TotalMessages() int64 { return atomic.LoadInt64(&c.totalMessages) }
