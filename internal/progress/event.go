package progress

import (
	"github.com/segmentio/encoding/json"
)

// Event 看板的进度条；processed_count 在一次运行内单调不减
type Event struct {
	ProcessedCount int    `json:"processed_count"`
	TotalCount     int    `json:"total_count"`
	TopicKey       string `json:"topic_key"`
	RunID          string `json:"run_id,omitempty"`
	Recorder       string `json:"recorder,omitempty"`
}

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

func Decode(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}
