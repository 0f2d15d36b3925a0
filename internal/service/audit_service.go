package service

import (
	"clouddb/internal/core"
	"context"
)

const defaultLogLimit = 200

// LogQuery narrows ListLogs. Zero values mean no restriction; Limit defaults
// to 200.
type LogQuery struct {
	DatabaseID string
	Method     string
	Limit      int
}

// AuditService reads query logs and copyright strikes and resolves strikes.
type AuditService struct {
	engine *Engine
}

func NewAuditService(engine *Engine) *AuditService {
	return &AuditService{engine: engine}
}

// ListLogs returns the caller's query logs, newest first.
func (s *AuditService) ListLogs(ctx context.Context, session *core.Session, q LogQuery) ([]core.QueryLog, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	out := []core.QueryLog{}
	err := s.engine.View(ctx, func(g *core.Graph) error {
		for i := len(g.QueryLogs) - 1; i >= 0 && len(out) < limit; i-- {
			l := g.QueryLogs[i]
			if l.UserID != session.UserID {
				continue
			}
			if q.DatabaseID != "" && l.DatabaseID != q.DatabaseID {
				continue
			}
			if q.Method != "" && l.Method != q.Method {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

func (s *AuditService) Stats(ctx context.Context, session *core.Session) (*core.Stats, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	var st core.Stats
	err := s.engine.View(ctx, func(g *core.Graph) error {
		for _, d := range g.Databases {
			if d.UserID != session.UserID {
				continue
			}
			st.Databases++
			st.Tables += len(d.Tables)
			for _, t := range d.Tables {
				st.Rows += len(t.Rows)
			}
		}
		for _, k := range g.ApiKeys {
			if k.UserID == session.UserID {
				st.ApiKeys++
			}
		}
		for _, l := range g.QueryLogs {
			if l.UserID == session.UserID {
				st.QueryLogs++
			}
		}
		for _, c := range g.CopyrightStrikes {
			if c.UserID == session.UserID && c.Status == core.StrikeActive {
				st.ActiveStrikes++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *AuditService) ListStrikes(ctx context.Context, session *core.Session) ([]core.CopyrightStrike, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	out := []core.CopyrightStrike{}
	err := s.engine.View(ctx, func(g *core.Graph) error {
		for _, c := range g.CopyrightStrikes {
			if c.UserID == session.UserID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (s *AuditService) DismissStrike(ctx context.Context, session *core.Session, id string) (*core.CopyrightStrike, error) {
	return s.closeStrike(ctx, session, id, core.StrikeDismissed)
}

func (s *AuditService) ResolveStrike(ctx context.Context, session *core.Session, id string) (*core.CopyrightStrike, error) {
	return s.closeStrike(ctx, session, id, core.StrikeResolved)
}

func (s *AuditService) closeStrike(ctx context.Context, session *core.Session, id string, status core.StrikeStatus) (*core.CopyrightStrike, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	var out core.CopyrightStrike
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		c := g.StrikeByID(id)
		if c == nil || c.UserID != session.UserID {
			return core.ErrStrikeNotFound
		}
		if c.Status != core.StrikeActive {
			return core.ErrStrikeNotActive
		}
		c.Status = status
		out = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
