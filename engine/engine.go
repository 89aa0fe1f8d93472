package engine

import (
	"context"
	"sync"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/logging"
	"github.com/infermesh/infermesh/runner"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// StreamBufferSize sets the channel buffer size for streamed results.
	// Larger buffers reduce producer blocking but increase memory usage.
	StreamBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	StreamBufferSize: 64,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// DefaultRunners maps capability to the runner name used when a request
	// carries no explicit preference.
	DefaultRunners map[core.Capability]string

	// RunnerSettings maps runner name to the opaque settings passed through
	// unchanged to that runner's Load.
	RunnerSettings map[string]runner.Settings

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Engine resolves inference requests to runners and executes them.
//
// Resolution is fast and non-blocking: registry lookup plus default-table
// lookup, with every resolution failure reported before any runner method is
// invoked. Execution serializes load + run per instance through the Lifecycle
// manager. Public methods are safe for concurrent use.
type Engine struct {
	registry  *runner.Registry
	lifecycle *Lifecycle
	config    Config
	logger    logging.Logger

	// mu guards the default-runner table and per-runner settings. Both are
	// read on every dispatch and written only on host reconfiguration.
	mu       sync.RWMutex
	defaults map[core.Capability]string
	settings map[string]runner.Settings
}

// New constructs an Engine over the given registry with optional overrides.
func New(registry *runner.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		registry:  registry,
		lifecycle: NewLifecycle(opts.Logger),
		config:    opts.Config,
		logger:    opts.Logger,
		defaults:  make(map[core.Capability]string),
		settings:  make(map[string]runner.Settings),
	}

	for c, name := range opts.DefaultRunners {
		e.defaults[c] = name
	}
	for name, s := range opts.RunnerSettings {
		e.settings[name] = s
	}

	return e
}

// Lifecycle returns the engine's lifecycle manager for introspection.
func (e *Engine) Lifecycle() *Lifecycle { return e.lifecycle }

// SetDefaultRunners replaces the per-capability default runner table.
func (e *Engine) SetDefaultRunners(defaults map[core.Capability]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults = make(map[core.Capability]string, len(defaults))
	for c, name := range defaults {
		e.defaults[c] = name
	}
}

// SetRunnerSettings sets the settings object passed to the named runner's Load.
func (e *Engine) SetRunnerSettings(name string, settings runner.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings[name] = settings
}

// DefaultRunner returns the configured default runner name for a capability.
func (e *Engine) DefaultRunner(c core.Capability) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	name, ok := e.defaults[c]
	return name, ok
}

// Process executes a single-shot inference request.
//
// Resolution failures (unknown runner, capability mismatch, no candidate) are
// reported before any runner method is invoked. A load failure yields
// load_failed and Run is never attempted for that call. Any panic raised by
// the runner is recovered here and converted to processing_error; Process is
// the last line of defense against a misbehaving runner crashing the caller.
func (e *Engine) Process(ctx context.Context, req *core.Request, capability core.Capability, preferred string) core.Result {
	reg, rerr := e.resolve(capability, preferred)
	if rerr != nil {
		return core.NewErrorResultFrom(rerr)
	}

	ins := e.lifecycle.getOrCreate(reg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cancelID := ins.registerCancel(cancel)
	defer ins.unregisterCancel(cancelID)

	ins.mu.Lock()
	defer ins.mu.Unlock()

	if lerr := e.lifecycle.ensureLoadedLocked(ctx, ins, req.Model, e.settingsFor(reg.Name)); lerr != nil {
		return core.NewErrorResultFrom(lerr)
	}

	return e.safeRun(ctx, ins, req)
}

// ProcessStream executes a request as a cancellable stream of results.
//
// The returned channel always delivers at least one element and is closed
// after its terminal element (Partial=false or an error result). Fail-fast
// errors, including not_streaming_capable for runners that only implement
// Run, are produced before any blocking runner call. Cancelling ctx stops
// consumption and is propagated to the producing runner so native resources
// are released promptly.
func (e *Engine) ProcessStream(ctx context.Context, req *core.Request, capability core.Capability, preferred string) <-chan core.Result {
	reg, rerr := e.resolve(capability, preferred)
	if rerr != nil {
		return failedStream(core.NewErrorResultFrom(rerr))
	}

	ins := e.lifecycle.getOrCreate(reg)

	sr, ok := ins.r.(runner.StreamingRunner)
	if !ok {
		// The caller explicitly opted into streaming semantics; do not
		// silently degrade to a blocking Run.
		return failedStream(core.NewErrorResult(core.ErrNotStreamingCapable, "runner %s does not support streaming", reg.Name))
	}

	out := make(chan core.Result, e.config.StreamBufferSize)

	ctx, cancel := context.WithCancel(ctx)
	cancelID := ins.registerCancel(cancel)

	go func() {
		defer close(out)
		defer ins.unregisterCancel(cancelID)
		defer cancel()

		ins.mu.Lock()
		defer ins.mu.Unlock()

		if lerr := e.lifecycle.ensureLoadedLocked(ctx, ins, req.Model, e.settingsFor(reg.Name)); lerr != nil {
			emit(ctx, out, core.NewErrorResultFrom(lerr))
			return
		}

		e.forwardStream(ctx, ins, sr, req, out)
	}()

	return out
}

// Cleanup unloads every loaded runner instance and clears the cache.
// Best-effort: failures are collected per runner and reported in aggregate.
func (e *Engine) Cleanup(ctx context.Context) error {
	return e.lifecycle.cleanup(ctx)
}

// Unregister withdraws a registration, unloading its live instance first so
// the registry removal never strands a loaded model.
func (e *Engine) Unregister(ctx context.Context, name string) error {
	err := e.lifecycle.remove(ctx, name)
	e.registry.Unregister(name)
	return err
}

// resolve maps capability + optional preferred name to a registration.
// Selection is deterministic given the same registration set and request.
func (e *Engine) resolve(capability core.Capability, preferred string) (*runner.Registration, *core.Error) {
	if preferred != "" {
		reg, ok := e.registry.FindByName(preferred)
		if !ok {
			return nil, core.NewError(core.ErrRunnerNotFound, "runner %q is not registered", preferred)
		}
		if !reg.DeclaresCapability(capability) {
			return nil, core.NewError(core.ErrCapabilityMismatch, "runner %q does not declare capability %q", preferred, capability)
		}
		return reg, nil
	}

	if name, ok := e.DefaultRunner(capability); ok {
		reg, found := e.registry.FindByName(name)
		if !found {
			return nil, core.NewError(core.ErrNoRunnerForCapability, "default runner %q for capability %q is not registered", name, capability)
		}
		if !reg.DeclaresCapability(capability) {
			return nil, core.NewError(core.ErrNoRunnerForCapability, "default runner %q does not declare capability %q", name, capability)
		}
		return reg, nil
	}

	// No default configured: fall back to the highest-priority registration
	// declaring the capability, ties broken by registration order.
	candidates := e.registry.FindByCapability(capability)
	if len(candidates) == 0 {
		return nil, core.NewError(core.ErrNoRunnerForCapability, "no runner registered for capability %q", capability)
	}

	return candidates[0], nil
}

// safeRun invokes Run, converting a panicking runner into processing_error.
func (e *Engine) safeRun(ctx context.Context, ins *instance, req *core.Request) (res core.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("runner panicked", "runner", ins.name, "panic", r)
			res = core.NewErrorResult(core.ErrProcessingError, "runner %s: %v", ins.name, r)
		}
	}()

	return ins.r.Run(ctx, req)
}

// forwardStream drains the runner's stream into out, guaranteeing a terminal
// element and containing panics. Called with ins.mu held.
func (e *Engine) forwardStream(ctx context.Context, ins *instance, sr runner.StreamingRunner, req *core.Request, out chan<- core.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("runner stream panicked", "runner", ins.name, "panic", r)
			emit(ctx, out, core.NewErrorResult(core.ErrProcessingError, "runner %s: %v", ins.name, r))
		}
	}()

	src := sr.RunStream(ctx, req)

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-src:
			if !ok {
				// Reaching the close without a terminal result means the
				// producer broke off; synthesize the terminal for it.
				emit(ctx, out, core.NewErrorResult(core.ErrProcessingError, "runner %s ended stream without a terminal result", ins.name))
				return
			}
			if !emit(ctx, out, res) {
				return
			}
			if res.IsError() || !res.Partial {
				// The terminal result ends the sequence regardless of
				// whatever the producer emits afterwards.
				return
			}
		}
	}
}

// emit sends res on out unless ctx is done. Reports whether the send happened.
func emit(ctx context.Context, out chan<- core.Result, res core.Result) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- res:
		return true
	}
}

// failedStream returns a closed single-element channel carrying a fail-fast
// error, produced before any runner call so callers never wait on a blocking
// call they believed was cancellable.
func failedStream(res core.Result) <-chan core.Result {
	out := make(chan core.Result, 1)
	out <- res
	close(out)
	return out
}

func (e *Engine) settingsFor(name string) runner.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings[name]
}
