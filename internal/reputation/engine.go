// Package reputation scores modules from signature validity, scan results,
// user feedback, observed age, violation history, and release cadence.
package reputation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/modgate/modgate/internal/shared"
)

// Store persists computed scores.
type Store interface {
	GetScore(ctx context.Context, moduleName string) (Score, error)
	PutScore(ctx context.Context, score Score) error
}

// Engine computes and persists reputation scores. Concurrent recomputes of
// the same module are collapsed through singleflight.
type Engine struct {
	weights Weights
	store   Store
	group   singleflight.Group
	clock   func() time.Time
}

// NewEngine constructs an Engine. A nil store keeps scores compute-only.
func NewEngine(weights Weights, store Store) *Engine {
	return &Engine{
		weights: weights,
		store:   store,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Compute derives a Score from the input without touching the store.
func (e *Engine) Compute(input Input) Score {
	w := e.weights

	signature := 0.0
	if input.SignatureValid {
		signature = 100
	}
	quality := clamp(input.CodeQuality, 0, 100)
	scan := 100 - clamp(input.ScanRiskScore, 0, 100)
	feedback := clamp(input.UserFeedback, 0, 100)

	ageDays := input.AgeDays
	if ageDays > w.MaxAgeDays {
		ageDays = w.MaxAgeDays
	}
	age := float64(ageDays) / float64(w.MaxAgeDays) * 100

	updates := input.UpdatesLastYear
	if updates > w.MaxUpdatesPerYr {
		updates = w.MaxUpdatesPerYr
	}
	cadence := float64(updates) / float64(w.MaxUpdatesPerYr) * 100

	factors := FactorBreakdown{
		SignatureValid:   w.SignatureValid * signature,
		CodeQuality:      w.CodeQuality * quality,
		ScanResult:       w.ScanResult * scan,
		UserFeedback:     w.UserFeedback * feedback,
		TimeActive:       w.TimeActive * age,
		UpdateCadence:    w.UpdateCadence * cadence,
		ViolationPenalty: -w.ViolationPenalty * 100 * float64(input.Violations),
	}

	total := factors.SignatureValid + factors.CodeQuality + factors.ScanResult +
		factors.UserFeedback + factors.TimeActive + factors.UpdateCadence +
		factors.ViolationPenalty
	total = clamp(total, 0, 100)

	return Score{
		ModuleName:  input.ModuleName,
		DeveloperID: input.DeveloperID,
		TotalScore:  total,
		Level:       LevelForScore(total),
		Factors:     factors,
		Confidence:  confidence(input.AgeDays, w.MaxAgeDays),
		LastUpdated: e.clock(),
	}
}

// Recompute computes the score and persists it. Concurrent calls for the same
// module share one computation.
func (e *Engine) Recompute(ctx context.Context, input Input) (Score, error) {
	if input.ModuleName == "" {
		return Score{}, fmt.Errorf("reputation: %w: module name required", shared.ErrInvalidInput)
	}
	value, err, _ := e.group.Do(shared.NormalizeName(input.ModuleName), func() (any, error) {
		score := e.Compute(input)
		if e.store != nil {
			if err := e.store.PutScore(ctx, score); err != nil {
				return Score{}, fmt.Errorf("reputation: persist score: %w", err)
			}
		}
		return score, nil
	})
	if err != nil {
		return Score{}, err
	}
	return value.(Score), nil
}

// Lookup returns the last persisted score for a module.
func (e *Engine) Lookup(ctx context.Context, moduleName string) (Score, error) {
	if e.store == nil {
		return Score{}, shared.ErrNotFound
	}
	return e.store.GetScore(ctx, shared.NormalizeName(moduleName))
}

// confidence grows with observed history and is independent of the score. A
// module seen for a year or longer reaches full confidence.
func confidence(ageDays, maxAgeDays int) float64 {
	if ageDays <= 0 {
		return 0
	}
	c := float64(ageDays) / float64(maxAgeDays)
	if c > 1 {
		return 1
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
