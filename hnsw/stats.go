package hnsw

// LevelStats summarizes one layer of the graph.
type LevelStats struct {
	Level       int
	Nodes       int
	Connections int
}

// Stats summarizes graph shape and parameters.
type Stats struct {
	M        int
	EF       int
	MaxLevel int
	Nodes    int // Stored records, excluding the entry sentinel
	Levels   []LevelStats
}

// Stats returns statistics about the graph.
func (h *HNSW) Stats() Stats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := Stats{
		M:        h.opts.M,
		EF:       h.opts.EF,
		MaxLevel: h.maxLevel,
		Nodes:    len(h.nodes) - 1,
		Levels:   make([]LevelStats, h.maxLevel+1),
	}

	for level := range stats.Levels {
		stats.Levels[level].Level = level
	}

	for _, node := range h.nodes[1:] {
		top := min(node.Layer, h.maxLevel)
		for level := 0; level <= top; level++ {
			stats.Levels[level].Nodes++
			if level < len(node.Connections) {
				stats.Levels[level].Connections += len(node.Connections[level])
			}
		}
	}

	return stats
}
