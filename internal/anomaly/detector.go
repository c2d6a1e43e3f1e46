// Package anomaly keeps per-(module,user) sliding activity windows and flags
// frequency, timing, pattern, and resource anomalies. Analysis for the same
// key is linearised; distinct keys live on separate shards and do not block
// each other.
package anomaly

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modgate/modgate/internal/shared"
)

const shardCount = 16

// SystemUser keys activity that is not attributable to a user.
const SystemUser = "system"

type record struct {
	at       time.Time
	activity ActivityType
}

type window struct {
	mu      sync.Mutex
	records []record
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Detector is the behavioural anomaly detector.
type Detector struct {
	thresholds Thresholds
	shards     [shardCount]*shard
	logger     *slog.Logger
	clock      func() time.Time

	historyMu sync.RWMutex
	history   []Detection
	blocked   map[string]bool
}

// NewDetector constructs a Detector with the given thresholds.
func NewDetector(thresholds Thresholds, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Detector{
		thresholds: thresholds,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
		blocked:    make(map[string]bool),
	}
	for i := range d.shards {
		d.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return d
}

func key(moduleName, userID string) string {
	if userID == "" {
		userID = SystemUser
	}
	return shared.NormalizeName(moduleName) + "\x00" + userID
}

func (d *Detector) window(k string) *window {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k))
	s := d.shards[h.Sum32()%shardCount]
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[k]
	if !ok {
		w = &window{}
		s.windows[k] = w
	}
	return w
}

// Analyze records one activity and returns any detections it triggers. Calls
// for the same (module,user) key are serialised on the key's window.
func (d *Detector) Analyze(moduleName string, activity ActivityType, userID string, details map[string]any) []Detection {
	now := d.clock()
	k := key(moduleName, userID)
	w := d.window(k)

	w.mu.Lock()
	w.records = append(w.records, record{at: now, activity: activity})
	w.prune(now, d.thresholds)

	var detections []Detection
	if det, ok := d.checkFrequency(moduleName, userID, activity, w.records, now); ok {
		detections = append(detections, det)
	}
	if det, ok := d.checkSuspiciousHours(moduleName, userID, activity, now); ok {
		detections = append(detections, det)
	}
	if det, ok := d.checkUnusualPattern(moduleName, userID, activity, w.records, now); ok {
		detections = append(detections, det)
	}
	if det, ok := d.checkResourceAbuse(moduleName, userID, activity, w.records, now); ok {
		detections = append(detections, det)
	}
	w.mu.Unlock()

	if len(detections) == 0 {
		return nil
	}
	d.historyMu.Lock()
	for i := range detections {
		if detections[i].Severity == SeverityCritical {
			detections[i].AutoBlocked = true
			d.blocked[k] = true
		}
		d.history = append(d.history, detections[i])
	}
	d.historyMu.Unlock()
	for _, det := range detections {
		d.logger.Warn("anomaly detected",
			slog.String("module", det.ModuleName),
			slog.String("user", det.UserID),
			slog.String("type", string(det.Type)),
			slog.String("severity", string(det.Severity)),
			slog.Float64("confidence", det.Confidence))
	}
	return detections
}

// prune drops records beyond the history span or count bound. Caller holds
// the window lock.
func (w *window) prune(now time.Time, t Thresholds) {
	horizon := now.Add(-t.HistorySpan)
	first := 0
	for first < len(w.records) && w.records[first].at.Before(horizon) {
		first++
	}
	if first > 0 {
		w.records = append(w.records[:0], w.records[first:]...)
	}
	if t.MaxRecords > 0 && len(w.records) > t.MaxRecords {
		w.records = append(w.records[:0], w.records[len(w.records)-t.MaxRecords:]...)
	}
}

func countSince(records []record, cutoff time.Time, activity ActivityType) int {
	n := 0
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].at.Before(cutoff) {
			break
		}
		if records[i].activity == activity {
			n++
		}
	}
	return n
}

// checkFrequency fires once when the command rate first crosses the
// threshold; a sustained burst does not re-fire on every call.
func (d *Detector) checkFrequency(moduleName, userID string, activity ActivityType, records []record, now time.Time) (Detection, bool) {
	if activity != ActivityCommand {
		return Detection{}, false
	}
	threshold := d.thresholds.CommandsPerWindow
	if threshold <= 0 {
		return Detection{}, false
	}
	count := countSince(records, now.Add(-d.thresholds.Window), ActivityCommand)
	if count != threshold+1 {
		return Detection{}, false
	}
	severity := SeverityHigh
	if float64(count) >= d.thresholds.EscalateFactor*float64(threshold) {
		severity = SeverityCritical
	}
	return Detection{
		ID:         uuid.New(),
		Type:       TypeFrequentCommands,
		Severity:   severity,
		ModuleName: shared.NormalizeName(moduleName),
		UserID:     userID,
		Timestamp:  now,
		Description: fmt.Sprintf("%d commands within %s exceeds threshold %d",
			count, d.thresholds.Window, threshold),
		Evidence:   map[string]any{"count": count, "threshold": threshold, "window": d.thresholds.Window.String()},
		Confidence: ratioConfidence(float64(count), float64(threshold)),
	}, true
}

func (d *Detector) checkSuspiciousHours(moduleName, userID string, activity ActivityType, now time.Time) (Detection, bool) {
	hour := now.Hour()
	for _, suspicious := range d.thresholds.SuspiciousHours {
		if hour == suspicious {
			return Detection{
				ID:          uuid.New(),
				Type:        TypeSuspiciousHours,
				Severity:    SeverityMedium,
				ModuleName:  shared.NormalizeName(moduleName),
				UserID:      userID,
				Timestamp:   now,
				Description: fmt.Sprintf("activity %q at suspicious hour %02d:00 UTC", activity, hour),
				Evidence:    map[string]any{"hour": hour, "activity": string(activity)},
				Confidence:  0.7,
			}, true
		}
	}
	return Detection{}, false
}

func (d *Detector) checkUnusualPattern(moduleName, userID string, activity ActivityType, records []record, now time.Time) (Detection, bool) {
	if len(records) < d.thresholds.MinSample {
		return Detection{}, false
	}
	matching := 0
	for _, r := range records {
		if r.activity == activity {
			matching++
		}
	}
	share := float64(matching) / float64(len(records))
	if share >= d.thresholds.RarityShare {
		return Detection{}, false
	}
	return Detection{
		ID:         uuid.New(),
		Type:       TypeUnusualPattern,
		Severity:   SeverityMedium,
		ModuleName: shared.NormalizeName(moduleName),
		UserID:     userID,
		Timestamp:  now,
		Description: fmt.Sprintf("activity %q makes up %.1f%% of recent mix, below %.1f%%",
			activity, share*100, d.thresholds.RarityShare*100),
		Evidence:   map[string]any{"share": share, "rarity_threshold": d.thresholds.RarityShare, "sample": len(records)},
		Confidence: ratioConfidence(d.thresholds.RarityShare, share),
	}, true
}

func (d *Detector) checkResourceAbuse(moduleName, userID string, activity ActivityType, records []record, now time.Time) (Detection, bool) {
	var threshold int
	switch activity {
	case ActivityFileOp:
		threshold = d.thresholds.FileOpsPerWindow
	case ActivityNetOp:
		threshold = d.thresholds.NetOpsPerWindow
	case ActivityDBOp:
		threshold = d.thresholds.DBOpsPerWindow
	default:
		return Detection{}, false
	}
	if threshold <= 0 {
		return Detection{}, false
	}
	count := countSince(records, now.Add(-d.thresholds.Window), activity)
	if count != threshold+1 {
		return Detection{}, false
	}
	severity := SeverityHigh
	if float64(count) >= d.thresholds.EscalateFactor*float64(threshold) {
		severity = SeverityCritical
	}
	return Detection{
		ID:         uuid.New(),
		Type:       TypeResourceAbuse,
		Severity:   severity,
		ModuleName: shared.NormalizeName(moduleName),
		UserID:     userID,
		Timestamp:  now,
		Description: fmt.Sprintf("%d %s operations within %s exceeds threshold %d",
			count, activity, d.thresholds.Window, threshold),
		Evidence:   map[string]any{"count": count, "threshold": threshold, "activity": string(activity)},
		Confidence: ratioConfidence(float64(count), float64(threshold)),
	}, true
}

// ratioConfidence grades how far the observed value exceeds its threshold,
// capped at 1.0.
func ratioConfidence(observed, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	r := observed / threshold
	if r > 1 {
		return 1
	}
	return r
}

// ShouldBlock reports whether a module+user key should be blocked: any
// critical detection in the last hour, three or more highs in the last hour,
// or a sticky auto-block that was never lifted.
func (d *Detector) ShouldBlock(moduleName, userID string) (bool, string) {
	k := key(moduleName, userID)
	module := shared.NormalizeName(moduleName)
	cutoff := d.clock().Add(-time.Hour)

	d.historyMu.RLock()
	defer d.historyMu.RUnlock()
	if d.blocked[k] {
		return true, "module was auto-blocked and has not been unblocked"
	}
	highs := 0
	for i := len(d.history) - 1; i >= 0; i-- {
		det := d.history[i]
		if det.Timestamp.Before(cutoff) {
			break
		}
		if det.ModuleName != module {
			continue
		}
		if userID != "" && det.UserID != userID {
			continue
		}
		switch det.Severity {
		case SeverityCritical:
			return true, fmt.Sprintf("critical %s detection in the last hour", det.Type)
		case SeverityHigh:
			highs++
		}
	}
	if highs >= 3 {
		return true, fmt.Sprintf("%d high-severity detections in the last hour", highs)
	}
	return false, ""
}

// Unblock lifts a sticky auto-block for a module+user key.
func (d *Detector) Unblock(moduleName, userID string) {
	d.historyMu.Lock()
	defer d.historyMu.Unlock()
	delete(d.blocked, key(moduleName, userID))
}

// Detections returns a copy of the detection log, newest last.
func (d *Detector) Detections() []Detection {
	d.historyMu.RLock()
	defer d.historyMu.RUnlock()
	out := make([]Detection, len(d.history))
	copy(out, d.history)
	return out
}

// ClearOld prunes detections and window records older than the retention
// horizon.
func (d *Detector) ClearOld(days int) int {
	if days <= 0 {
		return 0
	}
	horizon := d.clock().AddDate(0, 0, -days)

	d.historyMu.Lock()
	kept := d.history[:0]
	removed := 0
	for _, det := range d.history {
		if det.Timestamp.Before(horizon) {
			removed++
			continue
		}
		kept = append(kept, det)
	}
	d.history = kept
	d.historyMu.Unlock()

	for _, s := range d.shards {
		s.mu.Lock()
		for k, w := range s.windows {
			w.mu.Lock()
			first := 0
			for first < len(w.records) && w.records[first].at.Before(horizon) {
				first++
			}
			if first > 0 {
				w.records = append(w.records[:0], w.records[first:]...)
			}
			empty := len(w.records) == 0
			w.mu.Unlock()
			if empty {
				delete(s.windows, k)
			}
		}
		s.mu.Unlock()
	}
	return removed
}
