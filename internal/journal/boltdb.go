package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SteelMorgan/offsetq/internal/domain"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "passes"
)

// BoltDBStore implements Store using BoltDB
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens (or creates) a BoltDB journal
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().
		Str("db_path", dbPath).
		Msg("BoltDB journal initialized")

	return &BoltDBStore{db: db}, nil
}

// Record appends a pass to the history of its file
func (s *BoltDBStore) Record(ctx context.Context, rec domain.PassRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode pass record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		return b.Put(makeKey(rec.FilePath, seq), val)
	})
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	log.Debug().
		Str("file_path", rec.FilePath).
		Str("pass_id", rec.PassID).
		Int64("to_offset", rec.ToOffset).
		Msg("Pass journaled")

	return nil
}

// Last returns the most recent pass for a file
func (s *BoltDBStore) Last(ctx context.Context, filePath string) (*domain.PassRecord, error) {
	var last *domain.PassRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		prefix := makePrefix(filePath)
		c := b.Cursor()
		var val []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			val = v
		}
		if val == nil {
			return nil
		}

		var rec domain.PassRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("invalid pass record: %w", err)
		}
		last = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get last pass: %w", err)
	}

	return last, nil
}

// List returns passes for a file, oldest first
func (s *BoltDBStore) List(ctx context.Context, filePath string) ([]domain.PassRecord, error) {
	var result []domain.PassRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		var prefix []byte
		if filePath != "" {
			prefix = makePrefix(filePath)
		}

		c := b.Cursor()
		k, v := c.First()
		if prefix != nil {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec domain.PassRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Warn().Err(err).Bytes("key", k).Msg("Skipping invalid pass record")
				continue
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}

	return result, nil
}

// Delete removes the history of a file
func (s *BoltDBStore) Delete(ctx context.Context, filePath string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		prefix := makePrefix(filePath)
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete passes: %w", err)
	}

	return nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Debug().Msg("Closing BoltDB journal")
	return s.db.Close()
}

// makePrefix is the key prefix shared by every pass of a file.
// The NUL separator keeps "a.txt" from matching "a.txt.1".
func makePrefix(filePath string) []byte {
	return append([]byte(filePath), 0)
}

// makeKey creates a composite key from file path and bucket sequence
func makeKey(filePath string, seq uint64) []byte {
	key := makePrefix(filePath)
	return binary.BigEndian.AppendUint64(key, seq)
}
