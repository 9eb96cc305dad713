// Package api exposes the fetch orchestrator over HTTP. Handlers validate
// requests, call the orchestrator and translate domain errors into status
// codes; they never block on the document source.
package api
