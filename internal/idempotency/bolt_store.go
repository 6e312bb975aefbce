package idempotency

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "idempotency_keys"

// BoltStore keeps records in a single embedded database file. Expired records
// are ignored on read and removed by PurgeExpired.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error) {
	var existing *Record

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		now := s.now()

		if v := b.Get([]byte(key)); v != nil {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !rec.Expired(now) {
				existing = &rec
				return nil
			}
		}

		payload, err := json.Marshal(Record{
			State:       StateInFlight,
			Fingerprint: fingerprint,
			ExpiresAt:   now.Add(ttl),
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(key), payload)
	})
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return nil, true, nil
}

func (s *BoltStore) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	record.State = StateCompleted
	record.ExpiresAt = s.now().Add(ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), payload)
	})
}

func (s *BoltStore) Release(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// PurgeExpired deletes expired records and returns how many were removed.
func (s *BoltStore) PurgeExpired(ctx context.Context) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		now := s.now()

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil || rec.Expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}
