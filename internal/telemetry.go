package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Lightweight telemetry hook layer for the submission pipeline. Callers may
// register a real emitter (OpenTelemetry, a test stub) via
// RegisterTelemetryEmitter; the default is a no-op so the core carries no
// hard metrics dependency.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. Passing nil
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitStageLatency records a latency measure (milliseconds) for one pipeline
// stage: "validating", "uploading" or "persisting".
func EmitStageLatency(ctx context.Context, stage string, ms int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "submission_stage_latency_ms", map[string]string{"stage": stage}, ms)
}

// EmitSubmissionOutcome counts terminal pipeline outcomes by kind:
// "complete", "validation_failed", "upload_failed", "persist_failed",
// "no_active_schema".
func EmitSubmissionOutcome(ctx context.Context, outcome string) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "submission_outcome_total", map[string]string{"outcome": outcome}, int64(1))
}
