package service

import (
	"clouddb/internal/core"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

// RowEngine applies row operations to a loaded graph. It does no I/O; callers
// run it inside an Engine cycle.
type RowEngine struct {
	clock  clock.Clock
	strict bool
}

// NewRowEngine builds a row engine. With strict set, writes are checked
// against the table's declared columns.
func NewRowEngine(clk clock.Clock, strict bool) *RowEngine {
	return &RowEngine{clock: clk, strict: strict}
}

func (r *RowEngine) table(g *core.Graph, databaseID, tableID string) (*core.Table, error) {
	d := g.DatabaseByID(databaseID)
	if d == nil {
		return nil, core.ErrTableNotFound
	}
	t := d.TableByID(tableID)
	if t == nil {
		return nil, core.ErrTableNotFound
	}
	return t, nil
}

// Insert stores a copy of data as a new row, filling declared columns that are
// absent from data with their defaults.
func (r *RowEngine) Insert(g *core.Graph, databaseID, tableID string, data *core.Object) (*core.Row, error) {
	t, err := r.table(g, databaseID, tableID)
	if err != nil {
		return nil, err
	}

	payload := data.Clone()
	for _, c := range t.Columns {
		if _, ok := payload.Get(c.Name); ok {
			continue
		}
		if v, ok := c.DefaultFor(); ok {
			payload.Set(c.Name, v)
		}
	}
	if r.strict {
		if err := checkInsert(t, payload); err != nil {
			return nil, err
		}
	}

	now := core.Stamp(r.clock.Now())
	row := core.Row{
		ID:        uuid.NewString(),
		Data:      payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.Rows = append(t.Rows, row)
	return copyRow(row), nil
}

// Select returns copies of the rows whose data contains every filter pair, in
// insertion order.
func (r *RowEngine) Select(g *core.Graph, databaseID, tableID string, filters *core.Object) ([]core.Row, error) {
	t, err := r.table(g, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	out := []core.Row{}
	for _, row := range t.Rows {
		if row.Data.Matches(filters) {
			out = append(out, *copyRow(row))
		}
	}
	return out, nil
}

// Update merges patch into the row's data.
func (r *RowEngine) Update(g *core.Graph, databaseID, tableID, rowID string, patch *core.Object) (*core.Row, error) {
	t, err := r.table(g, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	i := t.RowIndex(rowID)
	if i < 0 {
		return nil, core.ErrRowNotFound
	}
	if r.strict {
		if err := checkPatch(t, patch); err != nil {
			return nil, err
		}
	}

	row := &t.Rows[i]
	row.Data.Merge(patch)
	row.UpdatedAt = core.Stamp(r.clock.Now())
	return copyRow(*row), nil
}

// Delete removes one row by id. A missing row is core.ErrRowNotFound.
func (r *RowEngine) Delete(g *core.Graph, databaseID, tableID, rowID string) error {
	t, err := r.table(g, databaseID, tableID)
	if err != nil {
		return err
	}
	i := t.RowIndex(rowID)
	if i < 0 {
		return core.ErrRowNotFound
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
	return nil
}

// DeleteWhere removes every row matching filters and reports how many went.
// Matching nothing is not an error.
func (r *RowEngine) DeleteWhere(g *core.Graph, databaseID, tableID string, filters *core.Object) (int, error) {
	t, err := r.table(g, databaseID, tableID)
	if err != nil {
		return 0, err
	}
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if !row.Data.Matches(filters) {
			kept = append(kept, row)
		}
	}
	removed := len(t.Rows) - len(kept)
	t.Rows = kept
	return removed, nil
}

func copyRow(row core.Row) *core.Row {
	row.Data = row.Data.Clone()
	return &row
}

func checkInsert(t *core.Table, data *core.Object) error {
	for _, k := range data.Keys() {
		if t.Column(k) == nil {
			return fmt.Errorf("%w: undeclared column %q", core.ErrSchemaViolation, k)
		}
	}
	for _, c := range t.Columns {
		v, ok := data.Get(c.Name)
		if !ok {
			if !c.IsNullable {
				return fmt.Errorf("%w: missing value for %q", core.ErrSchemaViolation, c.Name)
			}
			continue
		}
		if !c.Accepts(v) {
			return fmt.Errorf("%w: %q expects %s", core.ErrSchemaViolation, c.Name, c.DataType)
		}
	}
	return nil
}

func checkPatch(t *core.Table, patch *core.Object) error {
	for _, k := range patch.Keys() {
		c := t.Column(k)
		if c == nil {
			return fmt.Errorf("%w: undeclared column %q", core.ErrSchemaViolation, k)
		}
		v, _ := patch.Get(k)
		if !c.Accepts(v) {
			return fmt.Errorf("%w: %q expects %s", core.ErrSchemaViolation, k, c.DataType)
		}
	}
	return nil
}

// RowService runs row operations for a signed-in user against their own
// databases. These calls are not written to the query log.
type RowService struct {
	engine *Engine
	rows   *RowEngine
}

func NewRowService(engine *Engine, rows *RowEngine) *RowService {
	return &RowService{engine: engine, rows: rows}
}

func owned(g *core.Graph, session *core.Session, databaseID string) error {
	if session == nil {
		return core.ErrNotAuthenticated
	}
	if g.OwnedDatabase(session.UserID, databaseID) == nil {
		return core.ErrDatabaseNotFound
	}
	return nil
}

func (s *RowService) InsertRow(ctx context.Context, session *core.Session, databaseID, tableID string, data *core.Object) (*core.Row, error) {
	var out *core.Row
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		var err error
		out, err = s.rows.Insert(g, databaseID, tableID, data)
		return err
	})
	return out, err
}

func (s *RowService) SelectRows(ctx context.Context, session *core.Session, databaseID, tableID string, filters *core.Object) ([]core.Row, error) {
	var out []core.Row
	err := s.engine.View(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		var err error
		out, err = s.rows.Select(g, databaseID, tableID, filters)
		return err
	})
	return out, err
}

func (s *RowService) UpdateRow(ctx context.Context, session *core.Session, databaseID, tableID, rowID string, patch *core.Object) (*core.Row, error) {
	var out *core.Row
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		var err error
		out, err = s.rows.Update(g, databaseID, tableID, rowID, patch)
		return err
	})
	return out, err
}

func (s *RowService) DeleteRow(ctx context.Context, session *core.Session, databaseID, tableID, rowID string) error {
	return s.engine.Update(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		return s.rows.Delete(g, databaseID, tableID, rowID)
	})
}

func (s *RowService) DeleteRows(ctx context.Context, session *core.Session, databaseID, tableID string, filters *core.Object) (int, error) {
	var removed int
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		if err := owned(g, session, databaseID); err != nil {
			return err
		}
		var err error
		removed, err = s.rows.DeleteWhere(g, databaseID, tableID, filters)
		return err
	})
	return removed, err
}
