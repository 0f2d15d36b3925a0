package core

import "context"

// GraphStore loads and saves the whole document graph. Save is a full
// overwrite guarded by the version returned from the matching Load.
type GraphStore interface {
	Load(ctx context.Context) (*Graph, int64, error)
	Save(ctx context.Context, g *Graph, version int64) (int64, error)
}

// SessionStore persists the signed-in user pointer outside the graph.
type SessionStore interface {
	LoadPointer(ctx context.Context) (string, error)
	SavePointer(ctx context.Context, userID string) error
	ClearPointer(ctx context.Context) error
}

// Sealer encrypts documents at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
