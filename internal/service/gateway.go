package service

import (
	"clouddb/internal/core"
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	ActionSelect = "select"
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// QueryRequest is the envelope accepted by the query API.
type QueryRequest struct {
	ApiKey  string       `json:"api_key"`
	Action  string       `json:"action"`
	Table   string       `json:"table"`
	Data    *core.Object `json:"data,omitempty"`
	Filters *core.Object `json:"filters,omitempty"`
	RowID   string       `json:"row_id,omitempty"`

	// Endpoint is recorded in the query log. Defaults to /tables/<table>.
	Endpoint string `json:"-"`
}

// DeleteResult is returned by a successful delete action.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Gateway executes API-key authorized requests against a database and logs
// each one it can attribute to an owner.
type Gateway struct {
	engine *Engine
	rows   *RowEngine
	clock  clock.Clock
}

func NewGateway(engine *Engine, rows *RowEngine, clk clock.Clock) *Gateway {
	return &Gateway{engine: engine, rows: rows, clock: clk}
}

// ResolveKey maps a key value to its owner and database. Unknown and inactive
// keys, and keys whose database is gone, are core.ErrInvalidKey.
func ResolveKey(g *core.Graph, keyValue string) (*core.ApiKey, error) {
	key := g.KeyByValue(keyValue)
	if key == nil || !key.IsActive || g.DatabaseByID(key.DatabaseID) == nil {
		return nil, core.ErrInvalidKey
	}
	return key, nil
}

// Execute runs one request. Requests missing required envelope fields or
// carrying an unusable key fail without touching the graph. Everything else
// commits the operation together with its query log entry in one save.
func (s *Gateway) Execute(ctx context.Context, req QueryRequest) (interface{}, error) {
	if req.ApiKey == "" || req.Action == "" || req.Table == "" {
		return nil, core.ErrMissingFields
	}
	start := s.clock.Now()

	var (
		result interface{}
		opErr  error
	)
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		key, err := ResolveKey(g, req.ApiKey)
		if err != nil {
			return err
		}
		userID, databaseID, keyID := key.UserID, key.DatabaseID, key.ID

		result, opErr = s.dispatch(g, databaseID, req)

		now := s.clock.Now()
		if k := g.KeyByID(keyID); k != nil {
			used := core.Stamp(now)
			k.LastUsedAt = &used
		}
		elapsed := now.Sub(start).Milliseconds()
		g.QueryLogs = append(g.QueryLogs, core.QueryLog{
			ID:             uuid.NewString(),
			UserID:         userID,
			DatabaseID:     databaseID,
			Method:         req.Action,
			Endpoint:       endpointFor(req),
			StatusCode:     core.StatusCode(opErr),
			ResponseTimeMs: &elapsed,
			RequestBody:    loggedBody(req),
			CreatedAt:      core.Stamp(now),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}

func (s *Gateway) dispatch(g *core.Graph, databaseID string, req QueryRequest) (interface{}, error) {
	action := strings.ToLower(req.Action)
	switch action {
	case ActionSelect, ActionInsert, ActionUpdate, ActionDelete:
	default:
		return nil, core.ErrInvalidAction
	}

	switch {
	case action == ActionInsert && req.Data == nil,
		action == ActionUpdate && (req.RowID == "" || req.Data == nil),
		action == ActionDelete && req.RowID == "":
		return nil, core.ErrMissingFields
	}

	db := g.DatabaseByID(databaseID)
	t := db.TableByName(req.Table)
	if t == nil {
		return nil, core.ErrTableNotFound
	}

	switch action {
	case ActionSelect:
		return s.rows.Select(g, databaseID, t.ID, req.Filters)
	case ActionInsert:
		return s.rows.Insert(g, databaseID, t.ID, req.Data)
	case ActionUpdate:
		return s.rows.Update(g, databaseID, t.ID, req.RowID, req.Data)
	default:
		if err := s.rows.Delete(g, databaseID, t.ID, req.RowID); err != nil {
			return nil, err
		}
		return DeleteResult{ID: req.RowID, Deleted: true}, nil
	}
}

func endpointFor(req QueryRequest) string {
	if req.Endpoint != "" {
		return req.Endpoint
	}
	return "/tables/" + req.Table
}

// loggedBody is the request as stored in the query log, without the key.
func loggedBody(req QueryRequest) core.Value {
	body := core.NewObject()
	body.Set("action", core.String(req.Action))
	body.Set("table", core.String(req.Table))
	if req.RowID != "" {
		body.Set("row_id", core.String(req.RowID))
	}
	if req.Data != nil {
		body.Set("data", core.ObjectValue(req.Data.Clone()))
	}
	if req.Filters != nil {
		body.Set("filters", core.ObjectValue(req.Filters.Clone()))
	}
	return core.ObjectValue(body)
}

// Describe returns the schema a key can reach: its database with tables and
// columns but no rows. Nothing is logged.
func (s *Gateway) Describe(ctx context.Context, keyValue string) (*core.Database, error) {
	if keyValue == "" {
		return nil, core.ErrMissingFields
	}
	var out core.Database
	err := s.engine.View(ctx, func(g *core.Graph) error {
		key, err := ResolveKey(g, keyValue)
		if err != nil {
			return err
		}
		out = *g.DatabaseByID(key.DatabaseID)
		out.Tables = make([]core.Table, len(out.Tables))
		for i, t := range g.DatabaseByID(key.DatabaseID).Tables {
			t.Columns = append([]core.Column(nil), t.Columns...)
			t.Rows = nil
			out.Tables[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// KeyService manages a user's API keys from the management surface.
type KeyService struct {
	engine *Engine
	clock  clock.Clock
}

func NewKeyService(engine *Engine, clk clock.Clock) *KeyService {
	return &KeyService{engine: engine, clock: clk}
}

// CreateKey issues an extra key for one of the caller's databases. A blank
// name falls back to the one used for the automatic key.
func (s *KeyService) CreateKey(ctx context.Context, session *core.Session, databaseID, name string) (*core.ApiKey, error) {
	var out core.ApiKey
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Key for " + g.DatabaseByID(databaseID).Name
		}
		var err error
		out, err = issueKey(g, session.UserID, databaseID, name, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *KeyService) ListKeys(ctx context.Context, session *core.Session, databaseID string) ([]core.ApiKey, error) {
	out := []core.ApiKey{}
	err := s.engine.View(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		for _, k := range g.ApiKeys {
			if k.DatabaseID == databaseID {
				out = append(out, k)
			}
		}
		return nil
	})
	return out, err
}

// SetKeyActive revokes or reactivates a key.
func (s *KeyService) SetKeyActive(ctx context.Context, session *core.Session, keyID string, active bool) (*core.ApiKey, error) {
	var out core.ApiKey
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		k, err := ownedKey(g, session, keyID)
		if err != nil {
			return err
		}
		k.IsActive = active
		out = *k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *KeyService) DeleteKey(ctx context.Context, session *core.Session, keyID string) error {
	return s.engine.Update(ctx, func(g *core.Graph) error {
		if _, err := ownedKey(g, session, keyID); err != nil {
			return err
		}
		for i := range g.ApiKeys {
			if g.ApiKeys[i].ID == keyID {
				g.ApiKeys = append(g.ApiKeys[:i], g.ApiKeys[i+1:]...)
				break
			}
		}
		return nil
	})
}

func ownedKey(g *core.Graph, session *core.Session, keyID string) (*core.ApiKey, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	k := g.KeyByID(keyID)
	if k == nil || k.UserID != session.UserID {
		return nil, core.ErrKeyNotFound
	}
	return k, nil
}
