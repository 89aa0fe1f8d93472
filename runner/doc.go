// Package runner defines the pluggable backend contract and the registry
// that catalogs known runner types.
//
// A Runner is a polymorphic unit of work over one or more capabilities.
// Implementations wrap native libraries or remote APIs and are registered as
// a Registration (name, factory, capabilities, priority); the registry never
// instantiates runners itself, it only catalogs how to build them. Instance
// ownership and load/unload lifecycle belong to the engine package.
package runner
