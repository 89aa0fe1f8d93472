// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. A NoOpLogger is provided for tests and for embedding the
// engine where logging is unwanted.
package logging
