package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordEncode(3, 120)
	m.RecordDecode(3, 120)
	m.RecordAdd(2, 80)
	m.RecordRemove(1)
	m.RecordExtract(10)
	m.RecordExtract(20)
	m.RecordOperation("add", 2*time.Second)
	m.RecordOperation("add", time.Second)

	snapshot := m.Snapshot()
	require.Equal(t, int64(120), snapshot["savn_encode_bytes_total"])
	require.Equal(t, int64(3), snapshot["savn_decode_entries_total"])
	require.Equal(t, int64(2), snapshot["savn_added_entries_total"])
	require.Equal(t, int64(1), snapshot["savn_removed_entries_total"])
	require.Equal(t, int64(2), snapshot["savn_extracted_entries_total"])
	require.Equal(t, int64(30), snapshot["savn_extracted_bytes_total"])
	require.Equal(t, int64(2), snapshot[`savn_operation_count_total{operation="add"}`])
	require.Equal(t, float64(3), snapshot[`savn_operation_seconds_total{operation="add"}`])
}

func TestLogSummary(t *testing.T) {
	previousLogger, previousLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = previousLogger
		zerolog.SetGlobalLevel(previousLevel)
	})

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	m := NewMetrics()
	m.RecordAdd(4, 64)
	m.RecordExtract(16)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	m.LogSummary()
	require.Empty(t, buf.String())

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	m.LogSummary()
	require.Contains(t, buf.String(), `"added_entries":4`)
	require.Contains(t, buf.String(), `"extracted_bytes":16`)
	require.Contains(t, buf.String(), `"message":"metrics summary"`)
}
