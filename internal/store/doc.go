// Package store defines interfaces for the process-wide shared state of the
// fetcher: the task store, the challenge session registry and the artifact
// catalog. Implementations live under internal/platform (memory, redis,
// postgres, artifacts) so the orchestrator stays independent of the backend.
package store
