package data

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// GraphKey is the document key the whole graph lives under.
const GraphKey = "mainwebdb"

// GraphRepo persists the document graph as one blob.
type GraphRepo struct {
	store  BlobStore
	sealer core.Sealer
}

// NewGraphRepo builds a repo over store. sealer may be nil to store plain JSON.
func NewGraphRepo(store BlobStore, sealer core.Sealer) *GraphRepo {
	return &GraphRepo{store: store, sealer: sealer}
}

// Load returns the stored graph and its version. A missing or unreadable
// document is replaced by an empty graph, which is persisted immediately.
func (r *GraphRepo) Load(ctx context.Context) (*core.Graph, int64, error) {
	raw, version, err := r.store.Get(ctx, GraphKey)
	if errors.Is(err, ErrBlobNotFound) {
		return r.reinit(ctx, 0)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load graph: %w", core.ErrInternal, err)
	}

	plain := raw
	if r.sealer != nil {
		plain, err = r.sealer.Open(raw)
	}
	if err == nil {
		var g *core.Graph
		if g, err = DecodeGraph(plain); err == nil {
			return g, version, nil
		}
	}

	logger.Log.Warn("Stored graph is unreadable, reinitializing",
		zap.Int64("version", version), zap.Error(err))
	return r.reinit(ctx, version)
}

func (r *GraphRepo) reinit(ctx context.Context, version int64) (*core.Graph, int64, error) {
	g := core.NewGraph()
	next, err := r.Save(ctx, g, version)
	if err != nil {
		return nil, 0, err
	}
	return g, next, nil
}

// Save overwrites the stored graph if it is still at version.
func (r *GraphRepo) Save(ctx context.Context, g *core.Graph, version int64) (int64, error) {
	body, err := EncodeGraph(g)
	if err != nil {
		return 0, fmt.Errorf("%w: encode graph: %w", core.ErrInternal, err)
	}
	if r.sealer != nil {
		if body, err = r.sealer.Seal(body); err != nil {
			return 0, fmt.Errorf("%w: seal graph: %w", core.ErrInternal, err)
		}
	}

	next, err := r.store.Put(ctx, GraphKey, body, version)
	if errors.Is(err, core.ErrVersionConflict) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("%w: save graph: %w", core.ErrInternal, err)
	}
	return next, nil
}

func EncodeGraph(g *core.Graph) ([]byte, error) {
	return json.Marshal(g)
}

// DecodeGraph parses a serialized graph. Any JSON object is accepted; missing
// collections default to empty.
func DecodeGraph(b []byte) (*core.Graph, error) {
	var g core.Graph
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, err
	}
	g.Normalize()
	return &g, nil
}
