package medium

// WearSummary condenses the per-block erase counters.
type WearSummary struct {
	Blocks     int     `json:"blocks" yaml:"blocks"`
	MinErases  uint32  `json:"min_erases" yaml:"min_erases"`
	MaxErases  uint32  `json:"max_erases" yaml:"max_erases"`
	MeanErases float64 `json:"mean_erases" yaml:"mean_erases"`
	Untouched  int     `json:"untouched" yaml:"untouched"`
}

// Wear summarizes how evenly erases have been spread over the card.
func (c *CardImage) Wear() WearSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := WearSummary{Blocks: len(c.eraseCounts)}
	if s.Blocks == 0 {
		return s
	}
	s.MinErases = c.eraseCounts[0]
	var total uint64
	for _, n := range c.eraseCounts {
		if n < s.MinErases {
			s.MinErases = n
		}
		if n > s.MaxErases {
			s.MaxErases = n
		}
		if n == 0 {
			s.Untouched++
		}
		total += uint64(n)
	}
	s.MeanErases = float64(total) / float64(s.Blocks)
	return s
}
