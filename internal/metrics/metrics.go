package metrics

import (
	"time"
)

// Collector defines the interface for recording pipeline metrics.
// Implementations can export metrics to various backends; a no-op
// collector is the default so library code never checks for nil.
type Collector interface {
	// Adapter chain
	RecordFetch(source string, success bool, duration time.Duration)
	RecordFallback(from, to string)

	// Normalizer
	RecordRowDropped(source string)

	// Exporter
	RecordExport(success bool, duration time.Duration)

	// Output validation
	RecordValidationFailure(operation string)

	// Retention sweeper
	RecordRetentionSweep(filesDeleted int, bytesFreed int64)
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordFetch does nothing.
func (NoOpCollector) RecordFetch(source string, success bool, duration time.Duration) {}

// RecordFallback does nothing.
func (NoOpCollector) RecordFallback(from, to string) {}

// RecordRowDropped does nothing.
func (NoOpCollector) RecordRowDropped(source string) {}

// RecordExport does nothing.
func (NoOpCollector) RecordExport(success bool, duration time.Duration) {}

// RecordValidationFailure does nothing.
func (NoOpCollector) RecordValidationFailure(operation string) {}

// RecordRetentionSweep does nothing.
func (NoOpCollector) RecordRetentionSweep(filesDeleted int, bytesFreed int64) {}

var _ Collector = NoOpCollector{}
