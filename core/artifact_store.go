package core

// ArtifactStore persists binary artifacts (e.g. exported trip summaries)
// scoped by session identifier. Implementations must be safe for concurrent
// use. Saving an existing id replaces its bytes.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}
