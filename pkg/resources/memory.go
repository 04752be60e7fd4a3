package resources

import (
	"fmt"
	"runtime"
)

// MemoryLeakWarning describes memory growth beyond the configured
// threshold since the scope's baseline. It is informational, never fatal.
type MemoryLeakWarning struct {
	GrowthMB    float64
	CurrentMB   float64
	BaselineMB  float64
	ThresholdMB float64
	Message     string
}

// Severity classifies the warning by how far growth exceeds the threshold
func (w MemoryLeakWarning) Severity() string {
	switch {
	case w.GrowthMB > w.ThresholdMB*3:
		return "severe"
	case w.GrowthMB > w.ThresholdMB*1.5:
		return "high"
	default:
		return "moderate"
	}
}

// Recommendations returns remediation hints for the warning
func (w MemoryLeakWarning) Recommendations() []string {
	recommendations := []string{
		"Review resource cleanup on all exit paths",
		"Check for unclosed file handles and connections",
		"Verify background tasks are properly cancelled",
	}
	if w.Severity() == "severe" {
		recommendations = append(recommendations,
			"Consider restarting affected services",
			"Review memory-intensive operations for optimization",
		)
	}
	return recommendations
}

func (w MemoryLeakWarning) String() string {
	return fmt.Sprintf("MemoryLeak [%s]: memory grew by %.1fMB (current: %.1fMB, baseline: %.1fMB, threshold: %.1fMB) - %s",
		w.Severity(), w.GrowthMB, w.CurrentMB, w.BaselineMB, w.ThresholdMB, w.Message)
}

// MemoryMonitor samples heap usage to detect growth across an operation
type MemoryMonitor struct {
	thresholdMB float64
	baselineMB  float64
}

// NewMemoryMonitor captures the current heap usage as baseline
func NewMemoryMonitor(thresholdMB float64) *MemoryMonitor {
	return &MemoryMonitor{
		thresholdMB: thresholdMB,
		baselineMB:  currentHeapMB(),
	}
}

func currentHeapMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / (1024 * 1024)
}

// CurrentMB returns the current heap usage in MB
func (m *MemoryMonitor) CurrentMB() float64 {
	return currentHeapMB()
}

// GrowthMB returns heap growth since the baseline in MB
func (m *MemoryMonitor) GrowthMB() float64 {
	return m.CurrentMB() - m.baselineMB
}

// CheckForLeaks returns a warning when growth exceeds the threshold
func (m *MemoryMonitor) CheckForLeaks() []MemoryLeakWarning {
	growth := m.GrowthMB()
	if growth <= m.thresholdMB {
		return nil
	}
	return []MemoryLeakWarning{{
		GrowthMB:    growth,
		CurrentMB:   m.CurrentMB(),
		BaselineMB:  m.baselineMB,
		ThresholdMB: m.thresholdMB,
		Message: fmt.Sprintf("memory usage increased by %.1fMB, exceeding threshold of %.1fMB",
			growth, m.thresholdMB),
	}}
}

// ForceGC runs a garbage collection pass
func (m *MemoryMonitor) ForceGC() {
	runtime.GC()
}

// ResetBaseline resets the baseline to the current heap usage
func (m *MemoryMonitor) ResetBaseline() {
	m.baselineMB = m.CurrentMB()
}
