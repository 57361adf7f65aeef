package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Metrics collects counters for archive operations
type Metrics struct {
	mu sync.RWMutex

	// Codec metrics
	EncodeBytesTotal   int64
	EncodeEntriesTotal int64
	DecodeBytesTotal   int64
	DecodeEntriesTotal int64

	// Mutation metrics
	AddedEntriesTotal   int64
	AddedBytesTotal     int64
	RemovedEntriesTotal int64

	// Extraction metrics
	ExtractedEntriesTotal int64
	ExtractedBytesTotal   int64

	// Operation timings
	OperationCountTotal map[string]int64 // by operation name
	OperationDurationNs map[string]int64 // by operation name
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		OperationCountTotal: make(map[string]int64),
		OperationDurationNs: make(map[string]int64),
	}
}

// RecordEncode records an archive being written
func (m *Metrics) RecordEncode(entries int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EncodeEntriesTotal += int64(entries)
	m.EncodeBytesTotal += bytes

	log.Debug().
		Int("entries", entries).
		Int64("bytes", bytes).
		Msg("archive encoded")
}

// RecordDecode records an archive being read
func (m *Metrics) RecordDecode(entries int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DecodeEntriesTotal += int64(entries)
	m.DecodeBytesTotal += bytes

	log.Debug().
		Int("entries", entries).
		Int64("bytes", bytes).
		Msg("archive decoded")
}

// RecordAdd records entries appended from the filesystem
func (m *Metrics) RecordAdd(entries int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddedEntriesTotal += int64(entries)
	m.AddedBytesTotal += bytes
}

// RecordRemove records entries dropped from an archive
func (m *Metrics) RecordRemove(entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemovedEntriesTotal += int64(entries)
}

// RecordExtract records a single entry materialized on disk
func (m *Metrics) RecordExtract(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExtractedEntriesTotal++
	m.ExtractedBytesTotal += bytes
}

// RecordOperation records the duration of a top level operation (list, add, ...)
func (m *Metrics) RecordOperation(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OperationCountTotal[name]++
	m.OperationDurationNs[name] += duration.Nanoseconds()

	log.Debug().
		Str("operation", name).
		Dur("duration", duration).
		Msg("operation completed")
}

// Snapshot returns the current counters keyed by metric name
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})

	metrics["savn_encode_bytes_total"] = m.EncodeBytesTotal
	metrics["savn_encode_entries_total"] = m.EncodeEntriesTotal
	metrics["savn_decode_bytes_total"] = m.DecodeBytesTotal
	metrics["savn_decode_entries_total"] = m.DecodeEntriesTotal
	metrics["savn_added_entries_total"] = m.AddedEntriesTotal
	metrics["savn_added_bytes_total"] = m.AddedBytesTotal
	metrics["savn_removed_entries_total"] = m.RemovedEntriesTotal
	metrics["savn_extracted_entries_total"] = m.ExtractedEntriesTotal
	metrics["savn_extracted_bytes_total"] = m.ExtractedBytesTotal

	for name, count := range m.OperationCountTotal {
		metrics["savn_operation_count_total{operation=\""+name+"\"}"] = count
		metrics["savn_operation_seconds_total{operation=\""+name+"\"}"] = float64(m.OperationDurationNs[name]) / 1e9
	}

	return metrics
}

// LogSummary logs a summary of current metrics at debug level
func (m *Metrics) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log.Debug().
		Int64("encoded_bytes", m.EncodeBytesTotal).
		Int64("decoded_bytes", m.DecodeBytesTotal).
		Int64("added_entries", m.AddedEntriesTotal).
		Int64("removed_entries", m.RemovedEntriesTotal).
		Int64("extracted_entries", m.ExtractedEntriesTotal).
		Int64("extracted_bytes", m.ExtractedBytesTotal).
		Msg("metrics summary")
}

// Global metrics instance
var GlobalMetrics = NewMetrics()

// Convenience functions for global metrics
func RecordEncode(entries int, bytes int64) {
	GlobalMetrics.RecordEncode(entries, bytes)
}

func RecordDecode(entries int, bytes int64) {
	GlobalMetrics.RecordDecode(entries, bytes)
}

func RecordAdd(entries int, bytes int64) {
	GlobalMetrics.RecordAdd(entries, bytes)
}

func RecordRemove(entries int) {
	GlobalMetrics.RecordRemove(entries)
}

func RecordExtract(bytes int64) {
	GlobalMetrics.RecordExtract(bytes)
}

func RecordOperation(name string, duration time.Duration) {
	GlobalMetrics.RecordOperation(name, duration)
}

func LogMetricsSummary() {
	GlobalMetrics.LogSummary()
}
