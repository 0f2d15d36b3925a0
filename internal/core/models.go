package core

import (
	"time"
)

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"password"` // bcrypt credential, never plaintext
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PublicUser is the user shape handed out by the API (no credential).
type PublicUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

const (
	DatabaseActive   = "active"
	DatabaseArchived = "archived"
)

type Database struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Tables      []Table   `json:"tables"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Table struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Columns   []Column  `json:"columns"`
	Rows      []Row     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

type Column struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DataType     DataType `json:"data_type"`
	IsNullable   bool     `json:"is_nullable"`
	DefaultValue *string  `json:"default_value"` // nil means no default
	Position     int      `json:"position"`
}

type Row struct {
	ID        string    `json:"id"`
	Data      *Object   `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ApiKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	DatabaseID string     `json:"database_id"`
	KeyValue   string     `json:"key_value"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// QueryLog is append-only.
type QueryLog struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	DatabaseID     string    `json:"database_id"`
	Method         string    `json:"method"`
	Endpoint       string    `json:"endpoint"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs *int64    `json:"response_time_ms"`
	RequestBody    Value     `json:"request_body"`
	CreatedAt      time.Time `json:"created_at"`
}

type StrikeStatus string

const (
	StrikeActive    StrikeStatus = "active"
	StrikeResolved  StrikeStatus = "resolved"
	StrikeDismissed StrikeStatus = "dismissed"
)

type CopyrightStrike struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	ContentType  string       `json:"content_type"`
	ContentID    string       `json:"content_id"`
	ContentName  string       `json:"content_name"`
	StrikeReason string       `json:"strike_reason"`
	Status       StrikeStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Session identifies the signed-in user for one caller. A nil *Session is
// anonymous.
type Session struct {
	UserID string `json:"user_id"`
}

// Stats summarizes one user's footprint in the graph.
type Stats struct {
	Databases     int `json:"databases"`
	Tables        int `json:"tables"`
	Rows          int `json:"rows"`
	ApiKeys       int `json:"api_keys"`
	QueryLogs     int `json:"query_logs"`
	ActiveStrikes int `json:"active_strikes"`
}
