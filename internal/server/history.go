package server

import (
	"sync"
	"time"

	"datahouse.com/internal/recorder"
)

// Run 一次运行的记录
type Run struct {
	Job     string           `json:"job"`
	Summary recorder.Summary `json:"summary"`
	Error   string           `json:"error,omitempty"`
	At      time.Time        `json:"at"`
}

// History 最近 N 次运行，环形覆盖
type History struct {
	mu   sync.RWMutex
	buf  []Run
	next int
	full bool
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = 100
	}
	return &History{buf: make([]Run, size)}
}

func (h *History) Add(job string, s recorder.Summary, err error) {
	r := Run{Job: job, Summary: s, At: time.Now()}
	if err != nil {
		r.Error = err.Error()
	}
	h.mu.Lock()
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

// List 新的在前；job 非空时只返回该 job 的记录
func (h *History) List(job string, limit int) []Run {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.next
	if h.full {
		n = len(h.buf)
	}
	out := make([]Run, 0, n)
	for i := 1; i <= n; i++ {
		r := h.buf[(h.next-i+len(h.buf))%len(h.buf)]
		if job != "" && r.Job != job {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Last job 最近一次运行
func (h *History) Last(job string) (Run, bool) {
	rs := h.List(job, 1)
	if len(rs) == 0 {
		return Run{}, false
	}
	return rs[0], true
}
