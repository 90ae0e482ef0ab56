package scheduler

import "sync/atomic"

// Counters tracks one target's scheduling and hand-off accounting.
// All fields are updated atomically; the struct itself is allocated once
// at startup and never replaced.
type Counters struct {
	ticks        atomic.Int64
	skips        atomic.Int64
	channelDrops atomic.Int64
	persistDrops atomic.Int64
}

// Snapshot is a point-in-time copy of a target's counters.
type Snapshot struct {
	Ticks        int64 `json:"ticks"`
	Skips        int64 `json:"skips"`
	ChannelDrops int64 `json:"channel_drops"`
	PersistDrops int64 `json:"persist_drops"`
}

func (c *Counters) snapshot() Snapshot {
	return Snapshot{
		Ticks:        c.ticks.Load(),
		Skips:        c.skips.Load(),
		ChannelDrops: c.channelDrops.Load(),
		PersistDrops: c.persistDrops.Load(),
	}
}

// Add accumulates another snapshot (for aggregate totals).
func (s Snapshot) Add(o Snapshot) Snapshot {
	s.Ticks += o.Ticks
	s.Skips += o.Skips
	s.ChannelDrops += o.ChannelDrops
	s.PersistDrops += o.PersistDrops
	return s
}
