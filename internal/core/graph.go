package core

import (
	"strings"
	"time"
)

// Graph is the whole persisted document: every entity of every tenant.
type Graph struct {
	Users            []User            `json:"users"`
	Databases        []Database        `json:"databases"`
	ApiKeys          []ApiKey          `json:"api_keys"`
	QueryLogs        []QueryLog        `json:"query_logs"`
	CopyrightStrikes []CopyrightStrike `json:"copyright_strikes"`
}

func NewGraph() *Graph {
	g := &Graph{}
	g.Normalize()
	return g
}

// Normalize replaces missing collections with empty ones so that a graph
// decoded from a partial document is always fully populated.
func (g *Graph) Normalize() {
	if g.Users == nil {
		g.Users = []User{}
	}
	if g.Databases == nil {
		g.Databases = []Database{}
	}
	if g.ApiKeys == nil {
		g.ApiKeys = []ApiKey{}
	}
	if g.QueryLogs == nil {
		g.QueryLogs = []QueryLog{}
	}
	if g.CopyrightStrikes == nil {
		g.CopyrightStrikes = []CopyrightStrike{}
	}
	for i := range g.Databases {
		d := &g.Databases[i]
		if d.Tables == nil {
			d.Tables = []Table{}
		}
		for j := range d.Tables {
			t := &d.Tables[j]
			if t.Columns == nil {
				t.Columns = []Column{}
			}
			if t.Rows == nil {
				t.Rows = []Row{}
			}
			for k := range t.Rows {
				if t.Rows[k].Data == nil {
					t.Rows[k].Data = NewObject()
				}
			}
		}
	}
}

func (g *Graph) UserByID(id string) *User {
	for i := range g.Users {
		if g.Users[i].ID == id {
			return &g.Users[i]
		}
	}
	return nil
}

// UserByEmail matches the stored email exactly.
func (g *Graph) UserByEmail(email string) *User {
	for i := range g.Users {
		if g.Users[i].Email == email {
			return &g.Users[i]
		}
	}
	return nil
}

func (g *Graph) DatabaseByID(id string) *Database {
	for i := range g.Databases {
		if g.Databases[i].ID == id {
			return &g.Databases[i]
		}
	}
	return nil
}

// OwnedDatabase returns the database only when userID owns it.
func (g *Graph) OwnedDatabase(userID, id string) *Database {
	d := g.DatabaseByID(id)
	if d == nil || d.UserID != userID {
		return nil
	}
	return d
}

func (g *Graph) KeyByValue(value string) *ApiKey {
	for i := range g.ApiKeys {
		if g.ApiKeys[i].KeyValue == value {
			return &g.ApiKeys[i]
		}
	}
	return nil
}

func (g *Graph) KeyByID(id string) *ApiKey {
	for i := range g.ApiKeys {
		if g.ApiKeys[i].ID == id {
			return &g.ApiKeys[i]
		}
	}
	return nil
}

func (g *Graph) StrikeByID(id string) *CopyrightStrike {
	for i := range g.CopyrightStrikes {
		if g.CopyrightStrikes[i].ID == id {
			return &g.CopyrightStrikes[i]
		}
	}
	return nil
}

// DeleteDatabase removes the database with its inline tables and rows, plus
// every API key and query log that references it. Other records are kept.
func (g *Graph) DeleteDatabase(id string) bool {
	idx := -1
	for i := range g.Databases {
		if g.Databases[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	g.Databases = append(g.Databases[:idx], g.Databases[idx+1:]...)

	keys := g.ApiKeys[:0]
	for _, k := range g.ApiKeys {
		if k.DatabaseID != id {
			keys = append(keys, k)
		}
	}
	g.ApiKeys = keys

	logs := g.QueryLogs[:0]
	for _, l := range g.QueryLogs {
		if l.DatabaseID != id {
			logs = append(logs, l)
		}
	}
	g.QueryLogs = logs
	return true
}

func (d *Database) TableByID(id string) *Table {
	for i := range d.Tables {
		if d.Tables[i].ID == id {
			return &d.Tables[i]
		}
	}
	return nil
}

func (d *Database) TableByName(name string) *Table {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}
	return nil
}

func (d *Database) DeleteTable(id string) bool {
	for i := range d.Tables {
		if d.Tables[i].ID == id {
			d.Tables = append(d.Tables[:i], d.Tables[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Table) RowIndex(id string) int {
	for i := range t.Rows {
		if t.Rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// SameName compares content names the way the copyright guard does.
func SameName(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}

// Stamp normalizes a timestamp to the persisted precision.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
