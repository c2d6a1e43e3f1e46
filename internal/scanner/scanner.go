// Package scanner performs static, line-oriented threat analysis of module
// source trees. Findings are advisory: every threat carries the matched
// pattern and line so admission decisions remain reviewable.
package scanner

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSafeThreshold is the risk score below which a module is considered
// safe. Policy may apply a stricter bound; this is a default, not part of the
// scanner contract.
const DefaultSafeThreshold = 30.0

// source file extensions the scanner inspects.
var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true,
	".rb": true, ".sh": true, ".php": true, ".pl": true,
}

const (
	maxFileBytes   = 4 << 20
	scanWorkers    = 4
	maxSnippetRune = 160
)

// Scanner walks a module directory and matches every source line against the
// built-in pattern catalogue.
type Scanner struct {
	logger        *slog.Logger
	safeThreshold float64
}

// New constructs a Scanner. A nil logger disables logging.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{logger: logger, safeThreshold: DefaultSafeThreshold}
}

// Scan inspects every source file under modulePath. It returns an error only
// when the tree itself cannot be read; unreadable individual files abort the
// scan as well so a partially scanned module is never reported as safe.
func (s *Scanner) Scan(ctx context.Context, moduleName, modulePath string) (Result, error) {
	var files []string
	err := filepath.WalkDir(modulePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("scanner: walk %s: %w", modulePath, err)
	}

	var (
		mu      sync.Mutex
		threats []Threat
		lines   int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, fileLines, err := s.scanFile(modulePath, file)
			if err != nil {
				return err
			}
			mu.Lock()
			threats = append(threats, found...)
			lines += fileLines
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("scanner: %w", err)
	}

	// Deterministic order for reporting and tests.
	sort.Slice(threats, func(i, j int) bool {
		if threats[i].File != threats[j].File {
			return threats[i].File < threats[j].File
		}
		return threats[i].Line < threats[j].Line
	})

	score := riskScore(threats)
	result := Result{
		ModuleName: moduleName,
		Threats:    threats,
		RiskScore:  score,
		IsSafe:     score < s.safeThreshold,
		Metrics:    Metrics{FilesScanned: len(files), LinesScanned: lines},
		ScannedAt:  time.Now().UTC(),
	}
	s.logger.Info("module scanned",
		slog.String("module", moduleName),
		slog.Int("files", len(files)),
		slog.Int("threats", len(threats)),
		slog.Float64("risk_score", score))
	return result, nil
}

func (s *Scanner) scanFile(root, path string) ([]Threat, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.Size() > maxFileBytes {
		rel := relPath(root, path)
		return []Threat{{
			Type:           ThreatBackdoor,
			Severity:       SeverityMedium,
			File:           rel,
			Line:           0,
			Pattern:        "oversized-file",
			Description:    fmt.Sprintf("file is %d bytes, too large to scan", info.Size()),
			Recommendation: "split or review the file manually",
		}}, 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	rel := relPath(root, path)
	var threats []Threat
	lineNo := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		for _, p := range threatPatterns {
			if p.re.MatchString(line) {
				threats = append(threats, Threat{
					Type:           p.typ,
					Severity:       p.severity,
					File:           rel,
					Line:           lineNo,
					Snippet:        snippet(line),
					Pattern:        p.re.String(),
					Description:    p.description,
					Recommendation: p.recommendation,
				})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, lineNo, err
	}
	return threats, lineNo, nil
}

// riskScore is the weighted average of severity weights scaled to 0-100. An
// empty threat list scores zero.
func riskScore(threats []Threat) float64 {
	if len(threats) == 0 {
		return 0
	}
	var sum float64
	for _, t := range threats {
		sum += t.Severity.weight()
	}
	return sum / float64(len(threats)) * 100
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func snippet(line string) string {
	trimmed := strings.TrimSpace(line)
	runes := []rune(trimmed)
	if len(runes) > maxSnippetRune {
		return string(runes[:maxSnippetRune])
	}
	return trimmed
}
