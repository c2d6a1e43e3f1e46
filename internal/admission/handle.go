package admission

import (
	"context"
	"sync/atomic"

	"github.com/modgate/modgate/internal/anomaly"
	"github.com/modgate/modgate/internal/sandbox"
	"github.com/modgate/modgate/internal/shared"
)

// ModuleHandle is the capability gate handed out for an admitted module.
// The host never dispatches a module action without threading it through a
// handle, which keeps enforcement out of ambient global state. A revoked
// handle denies everything.
type ModuleHandle struct {
	moduleName string
	pipeline   *Pipeline
	revoked    atomic.Bool
}

// ModuleName returns the admitted module's normalized name.
func (h *ModuleHandle) ModuleName() string {
	return h.moduleName
}

// Authorize checks a single module action on behalf of a user: the acting
// user's permission, the sandbox capability, and the module's anomaly state,
// in that order. Every call feeds the anomaly detector regardless of the
// outcome, so denied actions still count toward behavioral baselines.
func (h *ModuleHandle) Authorize(ctx context.Context, userID string, capability sandbox.Capability, permission string) shared.Decision {
	if h.revoked.Load() {
		return shared.Deny("module handle revoked")
	}
	p := h.pipeline

	detections := p.detector.Analyze(h.moduleName, activityFor(capability), userID, map[string]any{
		"capability": string(capability),
	})
	if len(detections) > 0 {
		p.recordAnomalies(ctx, h.moduleName, userID, detections)
	}

	if blocked, reason := p.detector.ShouldBlock(h.moduleName, userID); blocked {
		return shared.Deny("anomalous behavior: " + reason)
	}
	if permission != "" && p.rbac != nil {
		decision, err := p.rbac.Check(ctx, userID, permission)
		if err != nil {
			return shared.Deny("permission check failed")
		}
		if !decision.Allowed() {
			return decision
		}
	}
	if !p.sandboxes.CheckPermission(h.moduleName, capability) {
		return shared.Deny("sandbox denies capability " + string(capability))
	}
	return shared.Allow()
}

// Revoke permanently disables the handle and tears down the sandbox.
func (h *ModuleHandle) Revoke() {
	if h.revoked.Swap(true) {
		return
	}
	h.pipeline.sandboxes.DestroySandbox(h.moduleName)
}

func activityFor(capability sandbox.Capability) anomaly.ActivityType {
	switch capability {
	case sandbox.CapDatabase:
		return anomaly.ActivityDBOp
	case sandbox.CapCache:
		return anomaly.ActivityCacheOp
	case sandbox.CapFilesystem:
		return anomaly.ActivityFileOp
	case sandbox.CapNetwork:
		return anomaly.ActivityNetOp
	default:
		return anomaly.ActivityCommand
	}
}
