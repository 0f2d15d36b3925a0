package service

import (
	"clouddb/internal/core"
	"clouddb/internal/data"
	"clouddb/internal/logger"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SnapshotService exports and imports the whole graph.
type SnapshotService struct {
	engine *Engine
}

func NewSnapshotService(engine *Engine) *SnapshotService {
	return &SnapshotService{engine: engine}
}

// Export returns the graph as indented JSON.
func (s *SnapshotService) Export(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.engine.View(ctx, func(g *core.Graph) error {
		var err error
		out, err = json.MarshalIndent(g, "", "  ")
		return err
	})
	return out, err
}

// Import replaces the graph with payload. Any JSON object is accepted;
// collections it lacks become empty.
func (s *SnapshotService) Import(ctx context.Context, payload []byte) error {
	imported, err := data.DecodeGraph(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}

	err = s.engine.Update(ctx, func(g *core.Graph) error {
		*g = *imported
		return nil
	})
	if err == nil {
		logger.Log.Info("Graph imported",
			zap.Int("users", len(imported.Users)),
			zap.Int("databases", len(imported.Databases)))
	}
	return err
}
