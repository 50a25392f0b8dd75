package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"vstreet/core/events"
)

var bucketEvents = []byte("events")

// Record is one persisted engine event.
type Record struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Module     string            `json:"module"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Journal is an append-only event log backed by BoltDB. It implements
// events.Emitter so it can sit behind a Fanout next to other subscribers.
type Journal struct {
	db     *bolt.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open creates or opens the journal at path.
func Open(path string, options *bolt.Options) (*Journal, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now, logger: slog.Default()}, nil
}

// SetLogger overrides the logger used to report append failures.
func (j *Journal) SetLogger(logger *slog.Logger) {
	if logger != nil {
		j.logger = logger
	}
}

// SetClock overrides the timestamp source.
func (j *Journal) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Emit implements events.Emitter. Failures are logged and dropped.
func (j *Journal) Emit(evt events.Event) {
	if _, err := j.Append(evt); err != nil {
		j.logger.Error("journal append failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append persists evt and returns the stored record.
func (j *Journal) Append(evt events.Event) (Record, error) {
	rendered := events.Render(evt)
	if rendered == nil {
		return Record{}, errors.New("journal: nil event")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:         id.String(),
		Type:       rendered.Type,
		Module:     rendered.Module(),
		Attributes: rendered.Attributes,
		RecordedAt: j.now().UTC(),
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		rec.Sequence = seq
		encoded, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put(seqKey(seq), encoded)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns up to limit records with a sequence greater than after, in
// append order. A non-positive limit returns every remaining record. A
// non-empty module keeps only that engine's records.
func (j *Journal) List(after uint64, limit int, module string) ([]Record, error) {
	var out []Record
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(seqKey(after + 1)); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if module != "" && rec.Module != module {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
