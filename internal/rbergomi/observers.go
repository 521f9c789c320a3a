// This file contains the progress observers fed by the reduction driver.
package rbergomi

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ProgressObserver receives the number of completed samples. Workers call
// Update concurrently, so implementations must be safe for concurrent use.
type ProgressObserver interface {
	Update(done, total int64)
}

// ─────────────────────────────────────────────────────────────────────────────
// Channel Observer
// ─────────────────────────────────────────────────────────────────────────────

// ChannelObserver forwards normalized progress to a channel, typically read
// by the CLI spinner.
type ChannelObserver struct {
	channel chan<- float64
}

// NewChannelObserver creates an observer that sends progress in [0, 1] to
// ch. A nil channel discards updates.
func NewChannelObserver(ch chan<- float64) *ChannelObserver {
	return &ChannelObserver{channel: ch}
}

// Update implements ProgressObserver with a non-blocking send; when the
// reader lags, intermediate values are dropped.
func (o *ChannelObserver) Update(done, total int64) {
	if o.channel == nil || total <= 0 {
		return
	}
	select {
	case o.channel <- min(float64(done)/float64(total), 1):
	default:
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging Observer
// ─────────────────────────────────────────────────────────────────────────────

// LoggingObserver logs progress at debug level each time it advances by at
// least threshold.
type LoggingObserver struct {
	logger    zerolog.Logger
	threshold float64
	last      float64
	mu        sync.Mutex
}

// NewLoggingObserver creates a throttled logging observer. A non-positive
// threshold defaults to 10%.
func NewLoggingObserver(logger zerolog.Logger, threshold float64) *LoggingObserver {
	if threshold <= 0 {
		threshold = 0.1
	}
	return &LoggingObserver{logger: logger, threshold: threshold}
}

// Update implements ProgressObserver.
func (o *LoggingObserver) Update(done, total int64) {
	if total <= 0 {
		return
	}
	progress := float64(done) / float64(total)

	o.mu.Lock()
	defer o.mu.Unlock()
	if progress < 1 && progress-o.last < o.threshold {
		return
	}
	if progress <= o.last && o.last > 0 {
		return
	}
	o.last = progress
	o.logger.Debug().
		Int64("samples", done).
		Int64("total", total).
		Str("percent", fmt.Sprintf("%.1f%%", progress*100)).
		Msg("monte-carlo progress")
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics Observer
// ─────────────────────────────────────────────────────────────────────────────

// MetricsObserver exports progress to the rbergomi_run_progress gauge.
type MetricsObserver struct{}

// NewMetricsObserver creates a Prometheus-backed observer.
func NewMetricsObserver() *MetricsObserver { return &MetricsObserver{} }

// Update implements ProgressObserver.
func (MetricsObserver) Update(done, total int64) {
	if total > 0 {
		runProgress.Set(float64(done) / float64(total))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Composite & No-Op
// ─────────────────────────────────────────────────────────────────────────────

// Observers fans updates out to several observers.
type Observers []ProgressObserver

// Update implements ProgressObserver.
func (os Observers) Update(done, total int64) {
	for _, o := range os {
		o.Update(done, total)
	}
}

// NoOpObserver discards updates.
type NoOpObserver struct{}

// Update implements ProgressObserver.
func (NoOpObserver) Update(int64, int64) {}
