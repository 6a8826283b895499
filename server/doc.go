// Package server exposes a travel.App over HTTP with gin.
//
// Routes:
//
//	GET  /healthz
//	POST /v1/sessions
//	GET  /v1/sessions/:id
//	GET  /v1/sessions/:id/state
//	POST /v1/sessions/:id/messages        {"text": "..."}
//	GET  /v1/sessions/:id/export?format=markdown|yaml
//	GET  /v1/sessions/:id/artifacts/:name
//
// Failures are answered with {"error": "..."}.
package server
