package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/supwarden/internal/client/storage"
)

// Сессии лежат в bucket sessions под ключом storage.SessionKey(ServerURL),
// поэтому смена --server не подхватывает чужой токен.

// SaveAuth stores the session of auth.ServerURL, replacing the previous one for that server
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil || auth.Token == "" {
		return fmt.Errorf("session token is empty")
	}
	key, err := storage.SessionKey(auth.ServerURL)
	if err != nil {
		return err
	}

	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessionsBucket(tx)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to save session for %s: %w", key, err)
		}
		return nil
	})
}

// GetAuth returns the session stored for serverURL
func (s *Storage) GetAuth(ctx context.Context, serverURL string) (*storage.AuthData, error) {
	key, err := storage.SessionKey(serverURL)
	if err != nil {
		return nil, err
	}

	var auth storage.AuthData
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := sessionsBucket(tx)
		if err != nil {
			return err
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrAuthNotFound
		}
		if err := json.Unmarshal(data, &auth); err != nil {
			return fmt.Errorf("failed to unmarshal session for %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// DeleteAuth forgets the session of serverURL; sessions of other servers stay
func (s *Storage) DeleteAuth(ctx context.Context, serverURL string) error {
	key, err := storage.SessionKey(serverURL)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessionsBucket(tx)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(key)) == nil {
			return storage.ErrAuthNotFound
		}
		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete session for %s: %w", key, err)
		}
		return nil
	})
}

// PruneExpired удаляет сессии с истекшим токеном и возвращает их число
func (s *Storage) PruneExpired(ctx context.Context) (int, error) {
	now := s.now()
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessionsBucket(tx)
		if err != nil {
			return err
		}

		var stale [][]byte
		err = bucket.ForEach(func(k, v []byte) error {
			var auth storage.AuthData
			// битая запись тоже мусор
			if json.Unmarshal(v, &auth) != nil || auth.Expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete session for %s: %w", k, err)
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func sessionsBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(bucketSessions)
	if bucket == nil {
		return nil, fmt.Errorf("sessions bucket not found")
	}
	return bucket, nil
}
