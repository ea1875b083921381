// Package store implements the drone's local result buffer: a
// key-value, append-only store with a sync-status field
// (local | pending | synced), so a drone that executed a job but lost
// its connection to the broker can retry RecordExecution without
// re-running the webhook.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// SyncStatus is where one buffered execution frame stands relative to
// the broker.
type SyncStatus string

const (
	// StatusLocal: executed, not yet offered to the broker.
	StatusLocal SyncStatus = "local"
	// StatusPending: sent on the RecordExecution stream, ack not yet seen.
	StatusPending SyncStatus = "pending"
	// StatusSynced: broker acked the frame; safe to garbage-collect.
	StatusSynced SyncStatus = "synced"
)

var bucketName = []byte("executions")

// Record is one buffered outcome, keyed by job id.
type Record struct {
	JobID      string     `json:"job_id"`
	FrameJSON  []byte     `json:"frame_json"`
	Status     SyncStatus `json:"status"`
	BufferedAt time.Time  `json:"buffered_at"`
}

// Store wraps a single bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the local store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append inserts a new record in StatusLocal. Append-only: an existing
// key is never overwritten by a fresh execution, only by
// MarkStatus transitioning its status.
func (s *Store) Append(jobID string, frameJSON []byte) error {
	rec := Record{JobID: jobID, FrameJSON: frameJSON, Status: StatusLocal, BufferedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(jobID)) != nil {
			return nil
		}
		return b.Put([]byte(jobID), data)
	})
}

// MarkStatus transitions an existing record's sync status.
func (s *Store) MarkStatus(jobID string, status SyncStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		raw := b.Get([]byte(jobID))
		if raw == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("store: unmarshal record %s: %w", jobID, err)
		}
		rec.Status = status
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("store: marshal record %s: %w", jobID, err)
		}
		return b.Put([]byte(jobID), data)
	})
}

// Unsynced returns every record not yet acked by the broker, oldest
// first, for retry on reconnect.
func (s *Store) Unsynced() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("store: unmarshal record: %w", err)
			}
			if rec.Status != StatusSynced {
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

// Delete removes a record whatever its status, reclaiming space.
func (s *Store) Delete(jobID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(jobID))
	})
}
