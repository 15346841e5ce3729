// Package types contains the data model shared by the plugin management engine:
// the framework configuration a plugin declares in its package descriptor, the
// command definition tree and the error kinds used across the engine.
package types
