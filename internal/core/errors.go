package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrDatabaseNotFound = fmt.Errorf("database %w", ErrNotFound)
	ErrTableNotFound    = fmt.Errorf("table %w", ErrNotFound)
	ErrRowNotFound      = fmt.Errorf("row %w", ErrNotFound)
	ErrKeyNotFound      = fmt.Errorf("api key %w", ErrNotFound)
	ErrStrikeNotFound   = fmt.Errorf("copyright strike %w", ErrNotFound)

	ErrDuplicateEmail    = errors.New("an account with this email already exists")
	ErrInvalidCredential = errors.New("invalid password")
	ErrNotAuthenticated  = errors.New("not logged in")
	ErrInvalidKey        = errors.New("invalid or inactive API key")

	ErrMissingFields     = errors.New("missing required fields")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidName       = errors.New("name must not be blank")
	ErrEmptyColumnSet    = errors.New("add at least one column")
	ErrInvalidColumnType = errors.New("unknown column data type")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrDuplicateTable    = errors.New("a table with this name already exists")
	ErrSchemaViolation   = errors.New("row does not match table schema")
	ErrInvalidPayload    = errors.New("invalid payload")

	ErrKeyCollision    = errors.New("generated API key already exists")
	ErrVersionConflict = errors.New("document was modified by another writer")
	ErrStrikeNotActive = errors.New("copyright strike is not active")

	ErrInternal = errors.New("internal error")
)

// StatusCode maps an operation error onto the HTTP-style status used in API
// responses and query logs.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrEmptyColumnSet),
		errors.Is(err, ErrInvalidColumnType),
		errors.Is(err, ErrDuplicateColumn),
		errors.Is(err, ErrSchemaViolation),
		errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrDuplicateTable),
		errors.Is(err, ErrKeyCollision),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrStrikeNotActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicMessage is the error text safe to hand to API callers.
func PublicMessage(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
