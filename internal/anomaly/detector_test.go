package anomaly

import (
	"sync"
	"testing"
	"time"
)

// fixedClock is settable test time; defaults to a mid-day hour so the
// suspicious-hours check stays quiet unless a test wants it.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDetector(clock *fixedClock) *Detector {
	d := NewDetector(DefaultThresholds(), nil)
	d.clock = clock.Now
	return d
}

func TestFrequencyBurstFiresExactlyOnce(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	var fired []Detection
	for i := 0; i < 35; i++ {
		clock.Advance(time.Second)
		fired = append(fired, d.Analyze("weather", ActivityCommand, "user-1", nil)...)
	}

	var frequent []Detection
	for _, det := range fired {
		if det.Type == TypeFrequentCommands {
			frequent = append(frequent, det)
		}
	}
	if len(frequent) != 1 {
		t.Fatalf("expected exactly one frequent_commands detection, got %d", len(frequent))
	}
	det := frequent[0]
	if det.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", det.Severity)
	}
	if det.Confidence != 1.0 {
		t.Fatalf("expected confidence capped at 1.0, got %.3f", det.Confidence)
	}
	if det.Evidence["count"] != 31 {
		t.Fatalf("expected evidence count 31, got %v", det.Evidence["count"])
	}
}

func TestOldBurstDoesNotCountTowardFrequency(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	// A burst just below the threshold.
	for i := 0; i < 30; i++ {
		d.Analyze("weather", ActivityCommand, "user-1", nil)
	}
	// Let the window slide past it.
	clock.Advance(2 * time.Minute)
	if dets := d.Analyze("weather", ActivityCommand, "user-1", nil); len(dets) != 0 {
		t.Fatalf("expired burst must not trigger detections, got %+v", dets)
	}
}

func TestSuspiciousHoursFlagged(t *testing.T) {
	clock := newFixedClock()
	clock.now = time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)
	d := newTestDetector(clock)

	dets := d.Analyze("weather", ActivityCallback, "user-1", nil)
	if len(dets) != 1 || dets[0].Type != TypeSuspiciousHours {
		t.Fatalf("expected one suspicious_hours detection, got %+v", dets)
	}
	if dets[0].Severity != SeverityMedium {
		t.Fatalf("expected medium severity, got %s", dets[0].Severity)
	}
}

func TestUnusualPatternDetected(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	// Build a mix of 39 db ops, then one rare file op: share 1/40 = 2.5%.
	for i := 0; i < 39; i++ {
		clock.Advance(10 * time.Second)
		d.Analyze("reports", ActivityDBOp, "user-1", nil)
	}
	clock.Advance(10 * time.Second)
	dets := d.Analyze("reports", ActivityFileOp, "user-1", nil)
	found := false
	for _, det := range dets {
		if det.Type == TypeUnusualPattern {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unusual_pattern detection, got %+v", dets)
	}
}

func TestResourceAbuseDetected(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	var fired []Detection
	for i := 0; i < 22; i++ {
		clock.Advance(time.Second)
		fired = append(fired, d.Analyze("files", ActivityFileOp, "user-1", nil)...)
	}
	abuse := 0
	for _, det := range fired {
		if det.Type == TypeResourceAbuse {
			abuse++
			if det.Severity != SeverityHigh {
				t.Fatalf("expected high severity, got %s", det.Severity)
			}
		}
	}
	if abuse != 1 {
		t.Fatalf("expected one resource_abuse detection, got %d", abuse)
	}
}

func TestShouldBlockAfterThreeHighs(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	// Three separate bursts, each re-crossing the threshold after the window
	// slides, produce three high-severity detections inside one hour.
	for burst := 0; burst < 3; burst++ {
		for i := 0; i < 31; i++ {
			clock.Advance(time.Second)
			d.Analyze("spam", ActivityCommand, "user-1", nil)
		}
		clock.Advance(90 * time.Second)
	}

	blocked, reason := d.ShouldBlock("spam", "user-1")
	if !blocked {
		t.Fatalf("expected block after three high detections")
	}
	if reason == "" {
		t.Fatalf("expected a reason")
	}

	// A different module is unaffected.
	if blocked, _ := d.ShouldBlock("weather", "user-1"); blocked {
		t.Fatalf("unrelated module must not be blocked")
	}
}

func TestAutoBlockIsSticky(t *testing.T) {
	clock := newFixedClock()
	thresholds := DefaultThresholds()
	thresholds.CommandsPerWindow = 2
	thresholds.EscalateFactor = 1.0 // every crossing is critical
	d := NewDetector(thresholds, nil)
	d.clock = clock.Now

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		d.Analyze("rogue", ActivityCommand, "user-1", nil)
	}
	blocked, _ := d.ShouldBlock("rogue", "user-1")
	if !blocked {
		t.Fatalf("expected auto-block after critical detection")
	}

	// Still blocked after the hour window passes, until explicitly unblocked.
	clock.Advance(3 * time.Hour)
	blocked, reason := d.ShouldBlock("rogue", "user-1")
	if !blocked {
		t.Fatalf("auto-block must be sticky")
	}
	if reason != "module was auto-blocked and has not been unblocked" {
		t.Fatalf("unexpected reason %q", reason)
	}

	d.Unblock("rogue", "user-1")
	if blocked, _ := d.ShouldBlock("rogue", "user-1"); blocked {
		t.Fatalf("expected unblocked module to pass")
	}
}

func TestClearOldPrunesHistory(t *testing.T) {
	clock := newFixedClock()
	thresholds := DefaultThresholds()
	thresholds.CommandsPerWindow = 1
	d := NewDetector(thresholds, nil)
	d.clock = clock.Now

	d.Analyze("old", ActivityCommand, "user-1", nil)
	d.Analyze("old", ActivityCommand, "user-1", nil) // crossing fires
	if len(d.Detections()) == 0 {
		t.Fatalf("expected a detection to seed history")
	}

	clock.Advance(72 * time.Hour)
	removed := d.ClearOld(2)
	if removed == 0 {
		t.Fatalf("expected pruned detections")
	}
	if len(d.Detections()) != 0 {
		t.Fatalf("expected empty history after retention sweep")
	}
}

func TestConcurrentAnalyzeDistinctKeys(t *testing.T) {
	clock := newFixedClock()
	d := newTestDetector(clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			module := []string{"alpha", "beta", "gamma", "delta"}[n%4]
			for j := 0; j < 100; j++ {
				d.Analyze(module, ActivityDBOp, "user-1", nil)
			}
		}(i)
	}
	wg.Wait()
}
