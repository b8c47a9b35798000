package taskweave

import (
	"sync"
	"time"
)

// RunMetrics summarizes the tool runs of one orchestrator.
type RunMetrics struct {
	Runs             int
	ToolsExecuted    int
	RemoteWarnings   int
	TotalDuration    time.Duration
	LongestToolTime  time.Duration
	ShortestToolTime time.Duration
	LongestTool      string
}

// metrics accumulates RunMetrics under a mutex.
type metrics struct {
	mu sync.Mutex
	m  RunMetrics
}

func (m *metrics) recordTool(name string, d time.Duration, warned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m.ToolsExecuted++
	if warned {
		m.m.RemoteWarnings++
	}
	m.m.TotalDuration += d
	if d > m.m.LongestToolTime {
		m.m.LongestToolTime = d
		m.m.LongestTool = name
	}
	if m.m.ShortestToolTime == 0 || d < m.m.ShortestToolTime {
		m.m.ShortestToolTime = d
	}
}

func (m *metrics) recordRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m.Runs++
}

// snapshot returns a copy without the mutex.
func (m *metrics) snapshot() RunMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m
}
