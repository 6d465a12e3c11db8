// Package journal persists one record per transfer operation in a
// local bbolt file. It gives workflows a durable, time-ordered account
// of what was downloaded and updated, independent of the disposable
// working copy.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

// Kind distinguishes the operation a record describes.
type Kind string

const (
	KindDownload Kind = "download"
	KindUpdate   Kind = "update"
)

// Entry is one journal record.
type Entry struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Repo      string        `json:"repo"`
	Paths     []string      `json:"paths"`
	Bytes     int64         `json:"bytes"`
	CommitSHA string        `json:"commit_sha,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// bucketOperations keys records as [8-byte big-endian start time][id]
// so iteration order is chronological.
var bucketOperations = []byte("operations")

// Journal is a bbolt-backed operation log.
type Journal struct {
	db     *bbolt.DB
	codec  *codec
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger for the journal.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithNow sets the time function for testing.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Open opens (creating if needed) the journal at the given path.
func Open(path string, opts ...Option) (*Journal, error) {
	j := &Journal{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOperations)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	j.db = db
	j.codec = c
	j.logger.Debug("opened journal", "path", path)
	return j, nil
}

// Close closes the journal and releases codec resources.
func (j *Journal) Close() error {
	if j.codec != nil {
		j.codec.close()
		j.codec = nil
	}
	if j.db == nil {
		return nil
	}
	db := j.db
	j.db = nil
	return db.Close()
}

// Record appends one entry. A zero StartedAt is filled in with the
// current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = j.now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	payload := j.codec.encode(data)

	key := makeKey(e.StartedAt, e.ID)
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOperations).Put(key, payload)
	})
}

// List returns up to limit entries, most recent first. A limit of 0 or
// less returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOperations).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			data, err := j.codec.decode(v)
			if err != nil {
				return fmt.Errorf("decoding entry %x: %w", k, err)
			}
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("unmarshaling entry %x: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// makeKey builds the record key: fixed-width big-endian timestamp for
// lexicographic time ordering, then the operation ID for uniqueness.
func makeKey(t time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	ns := t.UnixNano()
	// Offset so pre-1970 times still order correctly as unsigned.
	binary.BigEndian.PutUint64(key, uint64(ns-(-1<<63))) //nolint:gosec // intentional signed->unsigned shift
	return append(key, id...)
}
