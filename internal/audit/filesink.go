package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink writes events as JSONL, one file per UTC day. Field names follow
// the Event JSON tags; this is the interface external log tooling parses.
type FileSink struct {
	dir   string
	clock func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// NewFileSink constructs a FileSink writing under dir.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit: create sink dir: %w", err)
	}
	return &FileSink{
		dir:   dir,
		clock: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Write appends the batch to the current day's file.
func (s *FileSink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.clock().Format("2006-01-02")
	if s.file == nil || day != s.day {
		if s.file != nil {
			_ = s.file.Close()
		}
		path := filepath.Join(s.dir, "audit-"+day+".jsonl")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("audit: open %s: %w", path, err)
		}
		s.file = file
		s.day = day
	}

	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("audit: encode event %s: %w", event.ID, err)
		}
		if _, err := s.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("audit: write event: %w", err)
		}
	}
	return s.file.Sync()
}

// Close closes the current day file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
