package admission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modgate/modgate/internal/anomaly"
	"github.com/modgate/modgate/internal/audit"
	"github.com/modgate/modgate/internal/policy"
	"github.com/modgate/modgate/internal/reputation"
	"github.com/modgate/modgate/internal/sandbox"
	"github.com/modgate/modgate/internal/scanner"
	"github.com/modgate/modgate/internal/shared"
	"github.com/modgate/modgate/internal/trust"
)

// AuditRecorder receives admission audit events.
type AuditRecorder interface {
	Record(event audit.Event)
}

// DetectionStore persists anomaly detections produced while authorizing
// module actions.
type DetectionStore interface {
	SaveDetections(ctx context.Context, detections []anomaly.Detection) error
}

// MetricsRecorder counts admission decisions and anomaly detections.
type MetricsRecorder interface {
	ObserveAdmission(allowed bool)
	ObserveAnomaly(anomalyType, severity string)
}

// PermissionRegistrar declares module manifest permissions with the RBAC
// engine. Check mirrors the RBAC service so handles can authorize users.
type PermissionRegistrar interface {
	RegisterPermissions(ctx context.Context, names []string) error
	Check(ctx context.Context, userID, permName string) (shared.Decision, error)
}

// Pipeline runs the full admission sequence for a discovered module:
// signature verification, threat scan, reputation scoring, the policy gate,
// and sandbox creation, with an audit record at the end. Admission is
// all-or-nothing: a failure after sandbox creation tears the sandbox down
// again.
type Pipeline struct {
	trust      *trust.Registry
	scanner    *scanner.Scanner
	reputation *reputation.Engine
	policy     *policy.Engine
	sandboxes  *sandbox.Manager
	detector   *anomaly.Detector
	rbac       PermissionRegistrar
	facts      FactSource
	locker     *Locker
	audits     AuditRecorder
	detections DetectionStore
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// Config carries the pipeline's collaborators. Facts, RBAC, Locker,
// Audits, Detections, and Metrics are optional.
type Config struct {
	Trust      *trust.Registry
	Scanner    *scanner.Scanner
	Reputation *reputation.Engine
	Policy     *policy.Engine
	Sandboxes  *sandbox.Manager
	Detector   *anomaly.Detector
	RBAC       PermissionRegistrar
	Facts      FactSource
	Locker     *Locker
	Audits     AuditRecorder
	Detections DetectionStore
	Metrics    MetricsRecorder
	Logger     *slog.Logger
}

// NewPipeline wires the admission pipeline.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		trust:      cfg.Trust,
		scanner:    cfg.Scanner,
		reputation: cfg.Reputation,
		policy:     cfg.Policy,
		sandboxes:  cfg.Sandboxes,
		detector:   cfg.Detector,
		rbac:       cfg.RBAC,
		facts:      cfg.Facts,
		locker:     cfg.Locker,
		audits:     cfg.Audits,
		detections: cfg.Detections,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// VerifyAndAdmit decides whether the module at modulePath may run. Internal
// scanner failures degrade to maximal risk, never to an allow. Concurrent
// admissions of the same module serialize on the per-module lock.
func (p *Pipeline) VerifyAndAdmit(ctx context.Context, modulePath string, manifest Manifest) (Decision, error) {
	moduleName := shared.NormalizeName(manifest.Name)
	if moduleName == "" {
		return Decision{}, fmt.Errorf("admission: module name required: %w", shared.ErrInvalidInput)
	}
	release, err := p.locker.acquire(ctx, moduleName)
	if err != nil {
		return Decision{}, err
	}
	defer release()

	sigValid := p.verifySignature(ctx, modulePath, moduleName, manifest.Version)
	riskScore := p.scanRisk(ctx, moduleName, modulePath)
	repScore := p.scoreReputation(ctx, manifest, sigValid, riskScore)

	decision := Decision{
		SignatureValid:  sigValid,
		RiskScore:       riskScore,
		ReputationScore: repScore,
	}

	allowed, reason := p.policy.IsModuleAllowed(moduleName, sigValid, repScore, riskScore, manifest.DeveloperID)
	decision.Reason = reason
	if !allowed {
		p.recordOutcome(moduleName, manifest, decision, audit.EventModuleDenied)
		p.logger.Info("module denied",
			slog.String("module", moduleName), slog.String("reason", reason))
		return decision, nil
	}

	level := p.policy.Current().Level
	if !p.sandboxes.CreateSandbox(moduleName, level) {
		decision.Reason = "module already admitted"
		p.recordOutcome(moduleName, manifest, decision, audit.EventModuleDenied)
		return decision, nil
	}
	if p.rbac != nil && len(manifest.Permissions) > 0 {
		if err := p.rbac.RegisterPermissions(ctx, manifest.Permissions); err != nil {
			p.sandboxes.DestroySandbox(moduleName)
			decision.Reason = "manifest permission registration failed"
			p.recordOutcome(moduleName, manifest, decision, audit.EventModuleDenied)
			return decision, fmt.Errorf("admission: register manifest permissions: %w", err)
		}
	}

	profile, _ := p.sandboxes.Profile(moduleName)
	decision.Allowed = true
	decision.Profile = profile
	decision.Handle = &ModuleHandle{moduleName: moduleName, pipeline: p}
	p.recordOutcome(moduleName, manifest, decision, audit.EventModuleAdmitted)
	p.logger.Info("module admitted",
		slog.String("module", moduleName),
		slog.String("level", string(level)),
		slog.Float64("risk", riskScore),
		slog.Float64("reputation", repScore))
	return decision, nil
}

func (p *Pipeline) verifySignature(ctx context.Context, modulePath, moduleName, version string) bool {
	sig, err := p.trust.StoredSignature(ctx, moduleName, version)
	if err != nil {
		return false
	}
	return p.trust.Verify(ctx, modulePath, sig)
}

// scanRisk returns the scanner's risk score, or the maximum when the scan
// itself fails.
func (p *Pipeline) scanRisk(ctx context.Context, moduleName, modulePath string) float64 {
	result, err := p.scanner.Scan(ctx, moduleName, modulePath)
	if err != nil {
		p.logger.Warn("module scan failed, assuming maximal risk",
			slog.String("module", moduleName), slog.Any("error", err))
		return 100
	}
	return result.RiskScore
}

func (p *Pipeline) scoreReputation(ctx context.Context, manifest Manifest, sigValid bool, riskScore float64) float64 {
	var facts Facts
	if p.facts != nil {
		var err error
		facts, err = p.facts.ModuleFacts(ctx, manifest.Name, manifest.DeveloperID)
		if err != nil {
			facts = Facts{}
		}
	}
	input := reputation.Input{
		ModuleName:      manifest.Name,
		DeveloperID:     manifest.DeveloperID,
		SignatureValid:  sigValid,
		CodeQuality:     facts.CodeQuality,
		UserFeedback:    facts.UserFeedback,
		ScanRiskScore:   riskScore,
		AgeDays:         facts.AgeDays,
		Violations:      facts.Violations,
		UpdatesLastYear: facts.UpdatesLastYear,
	}
	score, err := p.reputation.Recompute(ctx, input)
	if err != nil {
		p.logger.Warn("reputation persist failed, using computed score",
			slog.String("module", manifest.Name), slog.Any("error", err))
		return p.reputation.Compute(input).TotalScore
	}
	return score.TotalScore
}

func (p *Pipeline) recordOutcome(moduleName string, manifest Manifest, decision Decision, eventType audit.EventType) {
	if p.metrics != nil {
		p.metrics.ObserveAdmission(decision.Allowed)
	}
	if p.audits == nil {
		return
	}
	severity := audit.SeverityInfo
	if eventType == audit.EventModuleDenied {
		severity = audit.SeverityWarning
	}
	p.audits.Record(audit.Event{
		Type:       eventType,
		ModuleName: moduleName,
		Severity:   severity,
		Success:    decision.Allowed,
		Details: map[string]any{
			"version":          manifest.Version,
			"developer_id":     manifest.DeveloperID,
			"reason":           decision.Reason,
			"signature_valid":  decision.SignatureValid,
			"risk_score":       decision.RiskScore,
			"reputation_score": decision.ReputationScore,
		},
	})
}

func (p *Pipeline) recordAnomalies(ctx context.Context, moduleName, userID string, detections []anomaly.Detection) {
	if p.detections != nil {
		if err := p.detections.SaveDetections(ctx, detections); err != nil {
			p.logger.Warn("anomaly detection persist failed",
				slog.String("module", moduleName), slog.Any("error", err))
		}
	}
	for _, det := range detections {
		p.recordAnomaly(moduleName, userID, det)
	}
}

func (p *Pipeline) recordAnomaly(moduleName, userID string, det anomaly.Detection) {
	if p.metrics != nil {
		p.metrics.ObserveAnomaly(string(det.Type), string(det.Severity))
	}
	if p.audits == nil {
		return
	}
	severity := audit.SeverityWarning
	if det.Severity == anomaly.SeverityCritical {
		severity = audit.SeverityCritical
	}
	p.audits.Record(audit.Event{
		Type:       audit.EventAnomalyDetected,
		ModuleName: moduleName,
		UserID:     userID,
		Severity:   severity,
		Success:    false,
		Details: map[string]any{
			"anomaly_type": string(det.Type),
			"description":  det.Description,
			"confidence":   det.Confidence,
			"auto_blocked": det.AutoBlocked,
		},
	})
}
