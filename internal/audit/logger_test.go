package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu       sync.Mutex
	batches  [][]Event
	failNext int
}

func (s *captureSink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("sink unavailable")
	}
	batch := make([]Event, len(events))
	copy(batch, events)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestRecordAssignsIdentityAndBuffers(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(nil, []Sink{sink}, WithFlushInterval(time.Hour), WithMaxBatch(1000))
	defer logger.Close(context.Background())

	logger.Record(Event{Type: EventPermissionCheck, UserID: "u1", Success: true})
	assert.Equal(t, 1, logger.Pending())
	assert.Equal(t, 0, sink.total(), "no flush before threshold or interval")
}

func TestForceFlushDrainsBuffer(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(nil, []Sink{sink}, WithFlushInterval(time.Hour))
	defer logger.Close(context.Background())

	for i := 0; i < 5; i++ {
		logger.Record(Event{Type: EventPermissionCheck, Success: true})
	}
	require.NoError(t, logger.ForceFlush(context.Background()))
	assert.Equal(t, 0, logger.Pending())
	assert.Equal(t, 5, sink.total())
}

func TestFlushByCountThreshold(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(nil, []Sink{sink}, WithMaxBatch(3), WithFlushInterval(time.Hour))
	defer logger.Close(context.Background())

	for i := 0; i < 3; i++ {
		logger.Record(Event{Type: EventSandboxViolation, ModuleName: "rogue"})
	}
	require.Eventually(t, func() bool { return sink.total() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestFailedFlushRequeuesBatch(t *testing.T) {
	sink := &captureSink{failNext: 1}
	logger := NewLogger(nil, []Sink{sink}, WithFlushInterval(time.Hour))
	defer logger.Close(context.Background())

	logger.Record(Event{Type: EventModuleDenied, ModuleName: "rogue"})
	require.Error(t, logger.ForceFlush(context.Background()))
	assert.Equal(t, 1, logger.Pending(), "failed batch must stay buffered")

	require.NoError(t, logger.ForceFlush(context.Background()))
	assert.Equal(t, 1, sink.total())
	assert.Equal(t, 0, logger.Pending())
}

func TestCloseDrainsAndStops(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(nil, []Sink{sink}, WithFlushInterval(time.Hour))
	logger.Record(Event{Type: EventConfigChanged})
	require.NoError(t, logger.Close(context.Background()))
	assert.Equal(t, 1, sink.total())

	// Recording after close is dropped, not buffered.
	logger.Record(Event{Type: EventConfigChanged})
	assert.Equal(t, 0, logger.Pending())
}

func TestFileSinkWritesDailyJSONL(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sink.clock = func() time.Time { return day }

	logger := NewLogger(nil, []Sink{sink}, WithFlushInterval(time.Hour))
	logger.Record(Event{
		Type:       EventModuleAdmitted,
		ModuleName: "weather",
		UserID:     "u1",
		Severity:   SeverityInfo,
		Success:    true,
		Details:    map[string]any{"reason": "all gates passed"},
	})
	require.NoError(t, logger.Close(context.Background()))

	path := filepath.Join(dir, "audit-2026-03-10.jsonl")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected one JSONL line")
	var record map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))

	// Wire-contract field names.
	assert.Equal(t, "module_admitted", record["type"])
	assert.Equal(t, "weather", record["module_name"])
	assert.Equal(t, "u1", record["user_id"])
	assert.Equal(t, "info", record["severity"])
	assert.Equal(t, true, record["success"])
	assert.NotEmpty(t, record["id"])
	assert.NotEmpty(t, record["timestamp"])
	assert.False(t, scanner.Scan(), "expected exactly one line")
}
