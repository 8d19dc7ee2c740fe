package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBroker struct{ calls int }

func (f *failingBroker) Publish(context.Context, string, []byte) error {
	f.calls++
	return errors.New("broker down")
}
func (f *failingBroker) Close() error { return nil }

func collect(t *testing.T, ch <-chan Message, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case m := <-ch:
			ev, err := Decode(m.Payload)
			require.NoError(t, err)
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("only got %d/%d events", len(out), n)
		}
	}
	return out
}

func TestTracker_MonotonicUnderConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewMemBroker()
	ch, err := b.Subscribe(ctx, []string{"progress"})
	require.NoError(t, err)

	const total = 50
	tr := NewReporter(b, "progress", "baostock_kdata").Track("run-1", "baostock_kdata", total)

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < total/5; i++ {
				tr.Done(ctx)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, tr.Close(ctx))

	events := collect(t, ch, total)
	reachedTotal := 0
	for i, ev := range events {
		if i > 0 {
			assert.GreaterOrEqual(t, ev.ProcessedCount, events[i-1].ProcessedCount)
		}
		if ev.ProcessedCount == total {
			reachedTotal++
		}
		assert.Equal(t, total, ev.TotalCount)
		assert.Equal(t, "baostock_kdata", ev.TopicKey)
		assert.Equal(t, "run-1", ev.RunID)
	}
	assert.Equal(t, 1, reachedTotal)
	assert.Equal(t, total, tr.Processed())
}

type slowBroker struct {
	delay time.Duration
	mu    sync.Mutex
	got   []int
}

func (s *slowBroker) Publish(_ context.Context, _ string, payload []byte) error {
	time.Sleep(s.delay)
	ev, err := Decode(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.got = append(s.got, ev.ProcessedCount)
	s.mu.Unlock()
	return nil
}
func (s *slowBroker) Close() error { return nil }

func TestTracker_DoneDoesNotWaitForBroker(t *testing.T) {
	sb := &slowBroker{delay: 20 * time.Millisecond}
	const total = 16
	tr := NewReporter(sb, "progress", "k").Track("run", "r", total)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Done(context.Background())
			tr.Done(context.Background())
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, total, tr.Processed())

	require.NoError(t, tr.Close(context.Background()))
	sb.mu.Lock()
	defer sb.mu.Unlock()
	require.Len(t, sb.got, total)
	for i, n := range sb.got {
		assert.Equal(t, i+1, n)
	}
}

func TestTracker_CloseHonorsDeadline(t *testing.T) {
	sb := &slowBroker{delay: 200 * time.Millisecond}
	tr := NewReporter(sb, "progress", "k").Track("run", "r", 3)
	for i := 0; i < 3; i++ {
		tr.Done(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Close(ctx), context.DeadlineExceeded)
	// 第二次 Close 不会 panic，等到发完
	assert.NoError(t, tr.Close(context.Background()))
}

func TestReporter_SwallowsPublishErrors(t *testing.T) {
	fb := &failingBroker{}
	tr := NewReporter(fb, "progress", "k").Track("run", "r", 2)
	assert.Equal(t, 1, tr.Done(context.Background()))
	assert.Equal(t, 2, tr.Done(context.Background()))
	require.NoError(t, tr.Close(context.Background()))
	assert.Equal(t, 2, fb.calls)
}

func TestReporter_NilBrokerStillCounts(t *testing.T) {
	tr := NewReporter(nil, "", "").Track("run", "r", 3)
	tr.Done(context.Background())
	assert.Equal(t, 1, tr.Processed())
	assert.NoError(t, tr.Close(context.Background()))

	var nilReporter *Reporter
	assert.NotPanics(t, func() { nilReporter.Publish(context.Background(), Event{}) })
}

func TestEvent_WireFormat(t *testing.T) {
	b, err := Event{ProcessedCount: 3, TotalCount: 5, TopicKey: "k"}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed_count":3,"total_count":5,"topic_key":"k"}`, string(b))
}

func TestMemBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewMemBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, []string{"t"})
	require.NoError(t, err)
	cancel()

	_, open := <-ch
	for open {
		_, open = <-ch
	}
	assert.NoError(t, b.Publish(context.Background(), "t", []byte("x")))
	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Empty(t, b.subs["t"])
}

func TestNewBroker(t *testing.T) {
	b, err := NewBroker(Config{Driver: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewBroker(Config{Driver: "mem"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemBroker{}, b)

	b, err = NewBroker(Config{Driver: "kafka", Brokers: []string{"localhost:9092"}, Key: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &KafkaBroker{}, b)
	assert.NoError(t, b.Close())

	_, err = NewBroker(Config{Driver: "redis"}, nil)
	assert.Error(t, err)
	_, err = NewBroker(Config{Driver: "zmq"}, nil)
	assert.Error(t, err)
}

func TestTopicSubjectMapping(t *testing.T) {
	assert.Equal(t, "recorder.progress", topicToSubject("recorder:progress"))
	assert.Equal(t, "recorder:progress", subjectToTopic("recorder.progress"))
}
