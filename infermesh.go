// Package infermesh provides a high-level façade over the runner registry and
// dispatch engine for routing heterogeneous AI inference requests (text
// generation, speech-to-text, text-to-speech, vision, content safety) to
// interchangeable backend runners. Most applications interact with this
// package by:
//  1. Creating a Mesh via New() (optionally overriding engine config & logger)
//  2. Registering one or more runner types (built-in or custom)
//  3. Configuring per-capability defaults via SetDefaultRunners
//  4. Dispatching requests synchronously (Process) or as a cancellable
//     stream of partial results (ProcessStream)
//
// The façade delegates dispatch to engine.Engine while keeping setup and
// usage ergonomics concise. Defaults are safe for local development and
// testing; production deployments typically supply a structured logger and
// per-runner settings.
package infermesh

import (
	"context"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/engine"
	"github.com/infermesh/infermesh/logging"
	"github.com/infermesh/infermesh/runner"
)

// Options configures the Mesh instance.
type Options struct {
	// EngineConfig tunes dispatch behavior (stream buffering).
	EngineConfig engine.Config

	// DefaultRunners maps capability to the runner name used when a request
	// carries no explicit preference.
	DefaultRunners map[core.Capability]string

	// RunnerSettings maps runner name to the settings passed through to Load.
	RunnerSettings map[string]runner.Settings

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the registry and dispatch engine.
type Mesh struct {
	registry *runner.Registry
	engine   *engine.Engine
}

// New creates a new Mesh instance with optional overrides.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := runner.NewRegistry()
	eng := engine.New(registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.DefaultRunners = opts.DefaultRunners
		o.RunnerSettings = opts.RunnerSettings
		o.Logger = opts.Logger
	})

	return &Mesh{registry: registry, engine: eng}
}

// RegisterRunner adds a runner registration to the underlying registry.
func (m *Mesh) RegisterRunner(reg *runner.Registration) error {
	return m.registry.Register(reg)
}

// Registry returns the underlying registry for advanced use.
func (m *Mesh) Registry() *runner.Registry { return m.registry }

// Engine returns the underlying dispatch engine for advanced use.
func (m *Mesh) Engine() *engine.Engine { return m.engine }

// SetDefaultRunners replaces the per-capability default runner table.
func (m *Mesh) SetDefaultRunners(defaults map[core.Capability]string) {
	m.engine.SetDefaultRunners(defaults)
}

// SetRunnerSettings sets the settings object passed to the named runner's Load.
func (m *Mesh) SetRunnerSettings(name string, settings runner.Settings) {
	m.engine.SetRunnerSettings(name, settings)
}

// Process dispatches a single-shot inference request. preferred may be empty
// to select via the default-runner table.
func (m *Mesh) Process(ctx context.Context, req *core.Request, capability core.Capability, preferred string) core.Result {
	return m.engine.Process(ctx, req, capability, preferred)
}

// ProcessStream dispatches a request as a cancellable stream of results.
func (m *Mesh) ProcessStream(ctx context.Context, req *core.Request, capability core.Capability, preferred string) <-chan core.Result {
	return m.engine.ProcessStream(ctx, req, capability, preferred)
}

// UnregisterRunner unloads any live instance of the named runner and removes
// its registration.
func (m *Mesh) UnregisterRunner(ctx context.Context, name string) error {
	return m.engine.Unregister(ctx, name)
}

// Cleanup unloads every loaded runner. Safe to call repeatedly; failures are
// reported in aggregate and never abort the remaining unloads.
func (m *Mesh) Cleanup(ctx context.Context) error {
	return m.engine.Cleanup(ctx)
}
