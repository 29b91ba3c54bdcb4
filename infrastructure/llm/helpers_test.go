package llm

import (
	"context"
	"sync"
	"time"
)

// fakeCore is a scripted CoreLLM. Each call pops the next error from errs;
// once errs is exhausted calls succeed.
type fakeCore struct {
	mu    sync.Mutex
	errs  []error
	calls int
	delay time.Duration
	opts  []map[string]any
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	f.opts = append(f.opts, opts)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", 0, 0, err
	}
	return "echo: " + prompt, 3, 2, nil
}

func (f *fakeCore) GetModel() string { return "fake-model" }

func (f *fakeCore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingMetrics captures MetricsCollector calls.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	labels   []map[string]string
	latency  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: make(map[string]float64)}
}

func (r *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency++
}

func (r *recordingMetrics) RecordCounter(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metric
	if d, ok := labels["direction"]; ok {
		key += "/" + d
	}
	if s, ok := labels["status"]; ok {
		key += "/" + s
	}
	r.counters[key] += v
	r.labels = append(r.labels, labels)
}

func (r *recordingMetrics) RecordGauge(string, float64, map[string]string)     {}
func (r *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}
