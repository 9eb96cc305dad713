// Package events publishes fetch task lifecycle events to in-process handlers.
//
// The orchestrator emits a TaskEvent after every committed status change.
// Handlers react without the orchestrator knowing about them; the
// CatalogRecorder, for example, records completed artifacts in the catalog.
package events
