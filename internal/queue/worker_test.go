package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		WorkerCount:        3,
		PollInterval:       1 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
	}
}

func TestWorkerPollInterval(t *testing.T) {
	w := NewWorker("test-worker", nil, nil, nil, testConfig())

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestWorkerPollIntervalNoJitter(t *testing.T) {
	cfg := testConfig()
	cfg.PollIntervalJitter = 0
	w := NewWorker("test-worker", nil, nil, nil, cfg)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1*time.Second, w.pollInterval())
	}
}

func TestWorkerHealth(t *testing.T) {
	w := NewWorker("worker-1", nil, nil, nil, testConfig())

	h := w.Health()
	assert.Equal(t, "worker-1", h.ID)
	assert.Equal(t, WorkerStatusIdle, h.Status)
	assert.Equal(t, "", h.CurrentJobID)
	assert.Equal(t, 0, h.JobsProcessed)

	w.setStatus(WorkerStatusWorking, "job-123")
	h = w.Health()
	assert.Equal(t, WorkerStatusWorking, h.Status)
	assert.Equal(t, "job-123", h.CurrentJobID)
}

func TestWorkerPoolHealth_EmptyBeforeStart(t *testing.T) {
	p := NewWorkerPool(nil, nil, testConfig())

	h := p.Health()
	assert.False(t, h.IsHealthy)
	assert.Equal(t, 0, h.TotalWorkers)
	assert.Equal(t, 0, h.ActiveWorkers)
}
