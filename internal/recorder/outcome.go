package recorder

import (
	"time"

	"datahouse.com/internal/domain"
)

type Status uint8

// 引擎产生的 Reason，适配器的 OnFinishEntity 可以据此判断
const (
	ReasonCaughtUp   = "caught up"
	ReasonNoData     = "no data"
	ReasonEmptyBatch = "empty batch"
)

const (
	StatusSkipped Status = iota + 1
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome 一个实体一次生命周期的结果
type Outcome struct {
	Entity   domain.Entity
	Status   Status
	Wrote    bool // 是否写入了新行
	Rows     int
	Reason   string
	Err      error
	Window   Window
	Attempts int
	Duration time.Duration
}

func skipped(e domain.Entity, reason string, err error) Outcome {
	return Outcome{Entity: e, Status: StatusSkipped, Reason: reason, Err: err}
}

func failed(e domain.Entity, reason string, err error) Outcome {
	return Outcome{Entity: e, Status: StatusFailed, Reason: reason, Err: err}
}

// Summary 一次运行的汇总
type Summary struct {
	RunID     string            `json:"run_id"`
	Recorder  string            `json:"recorder"`
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Completed int               `json:"completed"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Rows      int               `json:"rows"`
	Canceled  bool              `json:"canceled"`
	Failures  map[string]string `json:"failures,omitempty"` // entity_id -> error
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusCompleted:
		s.Completed++
		s.Rows += o.Rows
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		if s.Failures == nil {
			s.Failures = make(map[string]string)
		}
		msg := o.Reason
		if o.Err != nil {
			msg = o.Err.Error()
		}
		s.Failures[o.Entity.ID] = msg
	}
}
