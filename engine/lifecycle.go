package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/logging"
	"github.com/infermesh/infermesh/runner"
)

// instance pairs a live runner with its load state. The instance is owned
// exclusively by the Lifecycle manager; the engine never hands out references
// that outlive a single dispatch call.
type instance struct {
	name string
	r    runner.Runner

	// mu serializes load + run on the runner. Held for the whole execution
	// region of a dispatch call.
	mu      sync.Mutex
	loaded  bool
	modelID string

	// cancels tracks in-flight dispatch contexts so cleanup can interrupt a
	// load or run that is still executing. Best-effort: a native call that
	// ignores its context cannot be preempted.
	cancelMu   sync.Mutex
	cancels    map[uint64]context.CancelFunc
	nextCancel uint64
}

func (ins *instance) registerCancel(cancel context.CancelFunc) uint64 {
	ins.cancelMu.Lock()
	defer ins.cancelMu.Unlock()
	id := ins.nextCancel
	ins.nextCancel++
	ins.cancels[id] = cancel
	return id
}

func (ins *instance) unregisterCancel(id uint64) {
	ins.cancelMu.Lock()
	defer ins.cancelMu.Unlock()
	delete(ins.cancels, id)
}

// interrupt cancels every in-flight dispatch on this instance so a stuck
// load cannot block a subsequent unload forever.
func (ins *instance) interrupt() {
	ins.cancelMu.Lock()
	defer ins.cancelMu.Unlock()
	for _, cancel := range ins.cancels {
		cancel()
	}
}

// Lifecycle ensures at most one live runner instance per registration name,
// performs lazy instantiation, tracks loaded-model identity and exposes
// best-effort unload of everything it holds.
type Lifecycle struct {
	logger logging.Logger

	mu        sync.RWMutex
	instances map[string]*instance
}

// NewLifecycle creates an empty lifecycle manager.
func NewLifecycle(logger logging.Logger) *Lifecycle {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Lifecycle{
		logger:    logger,
		instances: make(map[string]*instance),
	}
}

// getOrCreate returns the cached instance for the registration, invoking the
// factory exactly once per name even under concurrent first access.
func (l *Lifecycle) getOrCreate(reg *runner.Registration) *instance {
	l.mu.RLock()
	ins, ok := l.instances[reg.Name]
	l.mu.RUnlock()
	if ok {
		return ins
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ins, ok := l.instances[reg.Name]; ok {
		return ins
	}

	ins = &instance{
		name:    reg.Name,
		r:       reg.Factory(),
		cancels: make(map[uint64]context.CancelFunc),
	}
	l.instances[reg.Name] = ins
	l.logger.Debug("runner instance created", "runner", reg.Name)

	return ins
}

// ensureLoadedLocked brings the instance into a ready state for modelID.
// Callers must hold ins.mu; the mutex is what serializes concurrent load
// attempts, so a second caller waits here and then finds the model already
// loaded (same id: no-op) or switches to the one it needs.
func (l *Lifecycle) ensureLoadedLocked(ctx context.Context, ins *instance, modelID string, settings runner.Settings) *core.Error {
	if ins.loaded && ins.modelID == modelID {
		return nil
	}

	if ins.loaded {
		// Model switch: release the current model before loading the next.
		// An unload failure here is logged but does not abort the switch.
		if err := ins.r.Unload(ctx); err != nil {
			l.logger.Warn("unload before model switch failed", "runner", ins.name, "model", ins.modelID, "error", err)
		}
		ins.loaded = false
		ins.modelID = ""
	}

	if err := ins.r.Load(ctx, modelID, settings); err != nil {
		ins.loaded = false
		ins.modelID = ""
		l.logger.Warn("runner load failed", "runner", ins.name, "model", modelID, "error", err)
		return core.NewError(core.ErrLoadFailed, "runner %s failed to load model %q: %v", ins.name, modelID, err)
	}

	ins.loaded = true
	ins.modelID = modelID
	l.logger.Info("runner loaded", "runner", ins.name, "model", modelID)

	return nil
}

// remove unloads and discards the named instance, if one was ever created.
// Used when a registration is withdrawn while its instance may be live.
func (l *Lifecycle) remove(ctx context.Context, name string) error {
	l.mu.Lock()
	ins, ok := l.instances[name]
	delete(l.instances, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	return l.unloadInstance(ctx, ins)
}

// cleanup unloads every loaded instance and clears the cache. Best-effort:
// one runner's unload failure does not prevent attempting the others; the
// failures are collected and reported in aggregate.
func (l *Lifecycle) cleanup(ctx context.Context) error {
	l.mu.Lock()
	instances := l.instances
	l.instances = make(map[string]*instance)
	l.mu.Unlock()

	var errs []error
	for _, ins := range instances {
		if err := l.unloadInstance(ctx, ins); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (l *Lifecycle) unloadInstance(ctx context.Context, ins *instance) error {
	// Interrupt any in-flight load or run first so the execution mutex is
	// not held forever by a dispatch that will never finish.
	ins.interrupt()

	ins.mu.Lock()
	defer ins.mu.Unlock()

	if !ins.loaded {
		return nil
	}

	ins.loaded = false
	ins.modelID = ""

	if err := ins.r.Unload(ctx); err != nil {
		l.logger.Warn("runner unload failed", "runner", ins.name, "error", err)
		return fmt.Errorf("unload %s: %w", ins.name, err)
	}
	l.logger.Info("runner unloaded", "runner", ins.name)

	return nil
}

// LoadedModels returns a snapshot of instance name to loaded model id for
// every currently loaded instance.
func (l *Lifecycle) LoadedModels() map[string]string {
	l.mu.RLock()
	instances := make([]*instance, 0, len(l.instances))
	for _, ins := range l.instances {
		instances = append(instances, ins)
	}
	l.mu.RUnlock()

	loaded := make(map[string]string)
	for _, ins := range instances {
		ins.mu.Lock()
		if ins.loaded {
			loaded[ins.name] = ins.modelID
		}
		ins.mu.Unlock()
	}

	return loaded
}
