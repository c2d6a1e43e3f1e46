package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubTimelineRepo struct {
	windowEvents []Event
	allEvents    []Event
	lastOffset   int
	lastLimit    int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	return s.windowEvents, nil
}

func (s *stubTimelineRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	return s.allEvents, nil
}

func mockEvent(at string, typ EventType, module string) Event {
	ts, _ := time.Parse(time.RFC3339, at)
	return Event{ID: uuid.New(), Type: typ, ModuleName: module, Timestamp: ts, Severity: SeverityInfo, Success: true}
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		windowEvents: []Event{
			mockEvent("2026-03-10T10:00:00Z", EventModuleAdmitted, "weather"),
			mockEvent("2026-03-09T09:00:00Z", EventPermissionDenied, "weather"),
			mockEvent("2026-03-08T08:00:00Z", EventSandboxCreated, "weather"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("expected clamped limit 51, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 50 {
		t.Fatalf("expected offset 50, got %d", repo.lastOffset)
	}
}

func TestWriteCSVHeaderAndRows(t *testing.T) {
	events := []Event{mockEvent("2026-03-10T10:00:00Z", EventModuleDenied, "rogue")}
	events[0].ErrorMessage = "risk too high"
	data, err := WriteCSV(events)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	got := string(data)
	wantHeader := "id,type,module_name,user_id,timestamp,severity,details,success,error_message\n"
	if len(got) < len(wantHeader) || got[:len(wantHeader)] != wantHeader {
		t.Fatalf("unexpected header in %q", got)
	}
}
