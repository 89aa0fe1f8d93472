// Package engine implements the dispatch engine and the runner lifecycle
// manager.
//
// The Engine is the public entry point of the dispatch path. It resolves a
// capability plus optional preferred runner name into a registration, drives
// load-before-run through the Lifecycle manager, executes the request either
// single-shot (Process) or as a cancellable stream (ProcessStream), and
// normalizes every failure into a typed core.Error envelope. No failure
// raised inside a runner escapes the engine boundary; callers always receive
// a structured result.
//
// The Lifecycle manager owns runner instances exclusively: at most one live
// instance exists per registration name, created lazily on first resolution.
// A per-instance mutex serializes load and run, because a typical native
// model handle supports only one concurrent execution. Model hot-swapping is
// handled inside that region: a caller waiting on the mutex re-checks the
// loaded model once it acquires it and switches models when needed.
package engine
