// Package memory provides process-local implementations of the task store
// and challenge registry. It is the default backend for a single instance.
package memory
