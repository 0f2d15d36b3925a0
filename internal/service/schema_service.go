package service

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"
)

type SchemaService struct {
	engine *Engine
	clock  clock.Clock
}

func NewSchemaService(engine *Engine, clk clock.Clock) *SchemaService {
	return &SchemaService{engine: engine, clock: clk}
}

// CreatedDatabase is everything one CreateDatabase call commits.
type CreatedDatabase struct {
	Database core.Database         `json:"database"`
	ApiKey   core.ApiKey           `json:"api_key"`
	Strike   *core.CopyrightStrike `json:"copyright_strike"`
}

// DatabaseUpdate carries the fields to change; nil fields are kept.
type DatabaseUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// CreateDatabase adds a database with its first API key. The duplicate name
// guard runs first and may record a strike, but creation always proceeds.
func (s *SchemaService) CreateDatabase(ctx context.Context, session *core.Session, name, description string) (*CreatedDatabase, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrInvalidName
	}

	var out CreatedDatabase
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		if g.UserByID(session.UserID) == nil {
			return core.ErrNotAuthenticated
		}
		now := core.Stamp(s.clock.Now())
		db := core.Database{
			ID:          uuid.NewString(),
			UserID:      session.UserID,
			Name:        name,
			Description: description,
			Status:      core.DatabaseActive,
			Tables:      []core.Table{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		out.Strike = CheckDuplicateName(g, session.UserID, name, db.ID, contentTypeDatabase, now)
		g.Databases = append(g.Databases, db)

		key, err := issueKey(g, session.UserID, db.ID, "Key for "+name, now)
		if err != nil {
			return err
		}
		out.Database = db
		out.ApiKey = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Strike != nil {
		logger.Log.Warn("Duplicate database name flagged",
			zap.String("user_id", session.UserID),
			zap.String("database_id", out.Database.ID),
			zap.String("name", name))
	}
	return &out, nil
}

// DeleteDatabase removes a database with its tables, rows, keys and logs.
func (s *SchemaService) DeleteDatabase(ctx context.Context, session *core.Session, id string) error {
	if session == nil {
		return core.ErrNotAuthenticated
	}
	return s.engine.Update(ctx, func(g *core.Graph) error {
		if g.OwnedDatabase(session.UserID, id) == nil {
			return core.ErrDatabaseNotFound
		}
		g.DeleteDatabase(id)
		return nil
	})
}

// ListDatabases returns the caller's databases in creation order.
func (s *SchemaService) ListDatabases(ctx context.Context, session *core.Session) ([]core.Database, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	out := []core.Database{}
	err := s.engine.View(ctx, func(g *core.Graph) error {
		for _, d := range g.Databases {
			if d.UserID == session.UserID {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

func (s *SchemaService) GetDatabase(ctx context.Context, session *core.Session, id string) (*core.Database, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	var out core.Database
	err := s.engine.View(ctx, func(g *core.Graph) error {
		d := g.OwnedDatabase(session.UserID, id)
		if d == nil {
			return core.ErrDatabaseNotFound
		}
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SchemaService) UpdateDatabase(ctx context.Context, session *core.Session, id string, upd DatabaseUpdate) (*core.Database, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, core.ErrInvalidName
	}
	if upd.Status != nil && *upd.Status != core.DatabaseActive && *upd.Status != core.DatabaseArchived {
		return nil, fmt.Errorf("%w: unknown status %q", core.ErrInvalidPayload, *upd.Status)
	}

	var out core.Database
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		d := g.OwnedDatabase(session.UserID, id)
		if d == nil {
			return core.ErrDatabaseNotFound
		}
		if upd.Name != nil {
			d.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Description != nil {
			d.Description = *upd.Description
		}
		if upd.Status != nil {
			d.Status = *upd.Status
		}
		d.UpdatedAt = core.Stamp(s.clock.Now())
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTable adds a table to one of the caller's databases. Column
// definitions with blank names are dropped; the rest keep their input order.
func (s *SchemaService) CreateTable(ctx context.Context, session *core.Session, databaseID, name string, defs []core.ColumnDef) (*core.Table, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrInvalidName
	}
	columns, err := buildColumns(defs)
	if err != nil {
		return nil, err
	}

	var out core.Table
	err = s.engine.Update(ctx, func(g *core.Graph) error {
		d := g.OwnedDatabase(session.UserID, databaseID)
		if d == nil {
			return core.ErrDatabaseNotFound
		}
		if d.TableByName(name) != nil {
			return fmt.Errorf("%w: %q", core.ErrDuplicateTable, name)
		}
		now := core.Stamp(s.clock.Now())
		out = core.Table{
			ID:        uuid.NewString(),
			Name:      name,
			Columns:   columns,
			Rows:      []core.Row{},
			CreatedAt: now,
		}
		d.Tables = append(d.Tables, out)
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SchemaService) DeleteTable(ctx context.Context, session *core.Session, databaseID, tableID string) error {
	if session == nil {
		return core.ErrNotAuthenticated
	}
	return s.engine.Update(ctx, func(g *core.Graph) error {
		d := g.OwnedDatabase(session.UserID, databaseID)
		if d == nil {
			return core.ErrDatabaseNotFound
		}
		if !d.DeleteTable(tableID) {
			return core.ErrTableNotFound
		}
		d.UpdatedAt = core.Stamp(s.clock.Now())
		return nil
	})
}

func buildColumns(defs []core.ColumnDef) ([]core.Column, error) {
	columns := []core.Column{}
	seen := map[string]bool{}
	for _, def := range defs {
		colName := strings.TrimSpace(def.Name)
		if colName == "" {
			continue
		}
		if seen[colName] {
			return nil, fmt.Errorf("%w: %q", core.ErrDuplicateColumn, colName)
		}
		seen[colName] = true

		dt, err := core.ParseDataType(def.DataType)
		if err != nil {
			return nil, err
		}
		columns = append(columns, core.Column{
			ID:           uuid.NewString(),
			Name:         colName,
			DataType:     dt,
			IsNullable:   def.IsNullable,
			DefaultValue: def.DefaultValue,
			Position:     len(columns),
		})
	}
	if len(columns) == 0 {
		return nil, core.ErrEmptyColumnSet
	}
	return columns, nil
}
