// Package artifact contains implementations of core.ArtifactStore.
//
// Artifacts are the files a conversation produces, such as the exported trip
// summary (viaje.md / viaje.yaml). Callers depend on the core interface so
// the in-memory store can be swapped for a durable backend.
package artifact
