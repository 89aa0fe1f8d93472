package runner

import (
	"context"

	"github.com/infermesh/infermesh/core"
)

// Settings carries arbitrary per-runner key/value configuration. It is passed
// through unchanged to Load; the engine never interprets its contents.
type Settings map[string]any

// Runner is the capability-agnostic surface every backend must implement.
//
// Implementations must:
//   - Return an error result from Run (never panic) when not loaded, when
//     input validation fails, or when the underlying computation fails
//   - Keep IsLoaded / LoadedModelID consistent with the true post-load state
//   - Tolerate repeated Load calls with the same model id (no-op success)
//     and repeated Unload calls (idempotent)
//
// Runners are not required to be safe against concurrent Load or Run calls on
// the same instance; the engine serializes load+run per instance. Runners
// that are internally thread-safe may document that, but the engine does not
// assume it.
type Runner interface {
	// Capabilities returns the non-empty static capability declaration. It
	// must be a subset of what was registered; a mismatch is a configuration
	// error surfaced at registration time.
	Capabilities() []core.Capability

	// Load brings the runner into a ready state for the given model. A nil
	// return means the runner is loaded for modelID. Expected failure modes
	// (missing model, backend unavailable) are reported as errors, not panics.
	Load(ctx context.Context, modelID string, settings Settings) error

	// Run executes a single-shot request. Side effects must be fully resolved
	// before returning; Run is exactly one result.
	Run(ctx context.Context, req *core.Request) core.Result

	// Unload releases held resources. Idempotent.
	Unload(ctx context.Context) error

	// IsLoaded reports whether the runner currently holds a ready model.
	IsLoaded() bool

	// LoadedModelID returns the currently loaded model identifier, or ""
	// when unloaded.
	LoadedModelID() string

	// ValidateParameters checks request parameters without side effects so
	// callers can fail fast before dispatch. Returns a *core.ValidationError
	// describing the first offending parameter, or nil.
	ValidateParameters(params map[string]any) error
}

// StreamingRunner is implemented by runners that support incremental output.
//
// RunStream produces a lazy, finite sequence of results on the returned
// channel. The last element has Partial=false, unless the sequence terminates
// in error, in which case a single terminal error result is emitted and the
// channel is closed. Producers must honor ctx cancellation and release native
// resources promptly when the consumer stops early.
//
// Runners that only implement Run are dispatched as single-shot; requesting a
// stream from them fails with a not_streaming_capable error rather than
// silently degrading.
type StreamingRunner interface {
	Runner

	RunStream(ctx context.Context, req *core.Request) <-chan core.Result
}

// HasCapability reports whether the runner declares the given capability.
func HasCapability(r Runner, c core.Capability) bool {
	for _, rc := range r.Capabilities() {
		if rc == c {
			return true
		}
	}
	return false
}
