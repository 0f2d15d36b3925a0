package data

import (
	"context"
	"errors"
)

// SessionKey holds the signed-in user id, outside the graph document.
const SessionKey = "gfxdb_session"

type SessionRepo struct {
	store BlobStore
}

func NewSessionRepo(store BlobStore) *SessionRepo {
	return &SessionRepo{store: store}
}

// LoadPointer returns the stored user id, or "" when nobody is signed in.
func (r *SessionRepo) LoadPointer(ctx context.Context) (string, error) {
	body, _, err := r.store.Get(ctx, SessionKey)
	if errors.Is(err, ErrBlobNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *SessionRepo) SavePointer(ctx context.Context, userID string) error {
	return r.put(ctx, []byte(userID))
}

func (r *SessionRepo) ClearPointer(ctx context.Context) error {
	return r.put(ctx, []byte{})
}

func (r *SessionRepo) put(ctx context.Context, body []byte) error {
	_, version, err := r.store.Get(ctx, SessionKey)
	if err != nil && !errors.Is(err, ErrBlobNotFound) {
		return err
	}
	_, err = r.store.Put(ctx, SessionKey, body, version)
	return err
}
