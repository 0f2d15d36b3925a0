package service

import (
	"clouddb/internal/core"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const apiKeyPrefix = "gfx_"

var generateKey = GenerateKey

// GenerateKey returns a new API key value: the gfx_ prefix followed by 48
// lowercase hex characters.
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

// issueKey appends a new active key for the database. A generated value that
// already exists fails with core.ErrKeyCollision rather than replacing it.
func issueKey(g *core.Graph, userID, databaseID, name string, now time.Time) (core.ApiKey, error) {
	value, err := generateKey()
	if err != nil {
		return core.ApiKey{}, fmt.Errorf("%w: generate key: %w", core.ErrInternal, err)
	}
	if g.KeyByValue(value) != nil {
		return core.ApiKey{}, core.ErrKeyCollision
	}
	key := core.ApiKey{
		ID:         uuid.NewString(),
		UserID:     userID,
		DatabaseID: databaseID,
		KeyValue:   value,
		Name:       name,
		IsActive:   true,
		CreatedAt:  core.Stamp(now),
	}
	g.ApiKeys = append(g.ApiKeys, key)
	return key, nil
}
