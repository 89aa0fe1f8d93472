// Package core defines the shared data model for InferMesh: capabilities,
// inference requests and results, the polymorphic payload set and the error
// taxonomy used across the dispatch path.
//
// Everything in this package is transport-agnostic. Requests are immutable by
// convention once constructed; a single Request value is passed unchanged
// through dispatch to the resolved runner. Results carry either an output map
// or a typed *Error, never both.
package core
