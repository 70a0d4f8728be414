package scheduler

import (
	"context"
	"sync"
	"time"
)

// maxHistory 작업별 보관 결과 수
const maxHistory = 100

// Job is a unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	Run(ctx context.Context) error

	// Schedule is a cron spec with a seconds field ("0 */5 * * * *")
	// or a descriptor ("@every 1m", "@hourly")
	Schedule() string
}

// JobResult is the outcome of one scheduled or manual execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
	Note      string        `json:"note,omitempty"`
}

// HistorySummary aggregates the retained results of one job
type HistorySummary struct {
	Total       int
	Succeeded   int
	Last        *JobResult
	LastSuccess *time.Time
	LastFailure *time.Time
}

// SuccessRate returns Succeeded/Total (0 when empty)
func (s HistorySummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// JobHistory is a fixed-size ring of the most recent results
type JobHistory struct {
	mu   sync.RWMutex
	ring [maxHistory]JobResult
	next int // 다음 기록 위치
	size int
}

// AddResult records a result, evicting the oldest once full
func (h *JobHistory) AddResult(result JobResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = result
	h.next = (h.next + 1) % maxHistory
	if h.size < maxHistory {
		h.size++
	}
}

// Len returns the number of retained results
func (h *JobHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// at returns the i-th oldest retained result; caller holds the lock
func (h *JobHistory) at(i int) JobResult {
	start := (h.next - h.size + maxHistory) % maxHistory
	return h.ring[(start+i)%maxHistory]
}

// GetLatestResults returns up to n of the newest results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.size {
		n = h.size
	}
	out := make([]JobResult, 0, max(n, 0))
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.at(i))
	}
	return out
}

// Summary walks the ring once
func (h *JobHistory) Summary() HistorySummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var s HistorySummary
	s.Total = h.size
	for i := 0; i < h.size; i++ {
		r := h.at(i)
		started := r.StartTime
		if r.Success {
			s.Succeeded++
			s.LastSuccess = &started
		} else {
			s.LastFailure = &started
		}
	}
	if h.size > 0 {
		last := h.at(h.size - 1)
		s.Last = &last
	}
	return s
}
