package live

import "sync/atomic"

// generations is the session's logical write clock. Every registry write
// takes the next value, so entries can be ordered by recency without
// consulting wall time.
type generations struct {
	seq atomic.Int64
}

// Next returns the next generation.
func (g *generations) Next() int64 {
	return g.seq.Add(1)
}
