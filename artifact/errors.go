package artifact

import "errors"

// ErrArtifactNotFound is returned when an artifact for the given session / id
// pair does not exist in the underlying store.
var ErrArtifactNotFound = errors.New("artifact not found")
