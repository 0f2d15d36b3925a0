package api

import (
	"clouddb/internal/core"
	"clouddb/internal/service"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ManageHandler serves the session-authenticated owner console: databases,
// tables, rows, keys, logs and strikes.
type ManageHandler struct {
	schema *service.SchemaService
	rows   *service.RowService
	keys   *service.KeyService
	audit  *service.AuditService
}

func NewManageHandler(schema *service.SchemaService, rows *service.RowService, keys *service.KeyService, audit *service.AuditService) *ManageHandler {
	return &ManageHandler{schema: schema, rows: rows, keys: keys, audit: audit}
}

// Routes mounts the console under the caller's router.
func (h *ManageHandler) Routes(r chi.Router) {
	r.Get("/stats", h.Stats)

	r.Route("/databases", func(r chi.Router) {
		r.Get("/", h.ListDatabases)
		r.Post("/", h.CreateDatabase)
		r.Route("/{dbID}", func(r chi.Router) {
			r.Get("/", h.GetDatabase)
			r.Patch("/", h.UpdateDatabase)
			r.Delete("/", h.DeleteDatabase)

			r.Get("/keys", h.ListKeys)
			r.Post("/keys", h.CreateKey)

			r.Post("/tables", h.CreateTable)
			r.Route("/tables/{tableID}", func(r chi.Router) {
				r.Delete("/", h.DeleteTable)
				r.Get("/rows", h.ListRows)
				r.Post("/rows", h.InsertRow)
				r.Delete("/rows", h.DeleteRows)
				r.Patch("/rows/{rowID}", h.UpdateRow)
				r.Delete("/rows/{rowID}", h.DeleteRow)
			})
		})
	})

	r.Patch("/keys/{keyID}", h.SetKeyActive)
	r.Delete("/keys/{keyID}", h.DeleteKey)

	r.Get("/logs", h.ListLogs)

	r.Get("/strikes", h.ListStrikes)
	r.Post("/strikes/{strikeID}/dismiss", h.DismissStrike)
	r.Post("/strikes/{strikeID}/resolve", h.ResolveStrike)
}

// --- Databases ---

func (h *ManageHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := h.schema.ListDatabases(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, dbs)
}

func (h *ManageHandler) CreateDatabase(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.schema.CreateDatabase(r.Context(), SessionFrom(r.Context()), in.Name, in.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (h *ManageHandler) GetDatabase(w http.ResponseWriter, r *http.Request) {
	db, err := h.schema.GetDatabase(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, db)
}

func (h *ManageHandler) UpdateDatabase(w http.ResponseWriter, r *http.Request) {
	var upd service.DatabaseUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	db, err := h.schema.UpdateDatabase(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, db)
}

func (h *ManageHandler) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dbID")
	if err := h.schema.DeleteDatabase(r.Context(), SessionFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, service.DeleteResult{ID: id, Deleted: true})
}

// --- Tables ---

func (h *ManageHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name    string           `json:"name"`
		Columns []core.ColumnDef `json:"columns"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	t, err := h.schema.CreateTable(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), in.Name, in.Columns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (h *ManageHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableID")
	if err := h.schema.DeleteTable(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, service.DeleteResult{ID: id, Deleted: true})
}

// --- Rows ---

// rowFilters reads the optional ?filters= query parameter, a JSON object.
func rowFilters(r *http.Request) (*core.Object, error) {
	raw := r.URL.Query().Get("filters")
	if raw == "" {
		return nil, nil
	}
	f, err := core.ParseObject([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: filters: %v", core.ErrInvalidPayload, err)
	}
	return f, nil
}

func (h *ManageHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	filters, err := rowFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.rows.SelectRows(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), chi.URLParam(r, "tableID"), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, rows)
}

func (h *ManageHandler) InsertRow(w http.ResponseWriter, r *http.Request) {
	var data core.Object
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, err)
		return
	}
	row, err := h.rows.InsertRow(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), chi.URLParam(r, "tableID"), &data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, row)
}

func (h *ManageHandler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var patch core.Object
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	row, err := h.rows.UpdateRow(r.Context(), SessionFrom(r.Context()),
		chi.URLParam(r, "dbID"), chi.URLParam(r, "tableID"), chi.URLParam(r, "rowID"), &patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, row)
}

func (h *ManageHandler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "rowID")
	err := h.rows.DeleteRow(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), chi.URLParam(r, "tableID"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, service.DeleteResult{ID: id, Deleted: true})
}

func (h *ManageHandler) DeleteRows(w http.ResponseWriter, r *http.Request) {
	filters, err := rowFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.rows.DeleteRows(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), chi.URLParam(r, "tableID"), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"deleted": n})
}

// --- API keys ---

func (h *ManageHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, keys)
}

func (h *ManageHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	key, err := h.keys.CreateKey(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "dbID"), in.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, key)
}

func (h *ManageHandler) SetKeyActive(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.IsActive == nil {
		writeError(w, core.ErrMissingFields)
		return
	}
	key, err := h.keys.SetKeyActive(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "keyID"), *in.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, key)
}

func (h *ManageHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "keyID")
	if err := h.keys.DeleteKey(r.Context(), SessionFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, service.DeleteResult{ID: id, Deleted: true})
}

// --- Logs, strikes, stats ---

func (h *ManageHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := service.LogQuery{
		DatabaseID: r.URL.Query().Get("database_id"),
		Method:     r.URL.Query().Get("method"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", core.ErrInvalidPayload))
			return
		}
		q.Limit = n
	}
	logs, err := h.audit.ListLogs(r.Context(), SessionFrom(r.Context()), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, logs)
}

func (h *ManageHandler) ListStrikes(w http.ResponseWriter, r *http.Request) {
	strikes, err := h.audit.ListStrikes(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, strikes)
}

func (h *ManageHandler) DismissStrike(w http.ResponseWriter, r *http.Request) {
	s, err := h.audit.DismissStrike(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "strikeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

func (h *ManageHandler) ResolveStrike(w http.ResponseWriter, r *http.Request) {
	s, err := h.audit.ResolveStrike(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "strikeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

func (h *ManageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.Stats(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
