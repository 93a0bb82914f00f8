package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kris-hansen/personaflow/utils/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPersonas  = []byte("personas")
	bucketPipelines = []byte("pipelines")
	bucketRuns      = []byte("runs")
	bucketTurns     = []byte("turns")
)

// Bolt is a Store backed by a single bbolt file. Values are JSON encoded;
// turns are keyed "<runID>/<sequence>" so a prefix scan yields call order.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the bolt file at path
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPersonas, bucketPipelines, bucketRuns, bucketTurns} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) put(bucket []byte, key string, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), enc)
	})
}

func (b *Bolt) get(bucket []byte, key string, v any) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

func (b *Bolt) remove(bucket []byte, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// each decodes every value of bucket via decode
func (b *Bolt) each(bucket []byte, decode func(data []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, data []byte) error {
			return decode(data)
		})
	})
}

func (b *Bolt) SavePersona(ctx context.Context, p *domain.Persona) error {
	return b.put(bucketPersonas, p.ID, p)
}

func (b *Bolt) DeletePersona(ctx context.Context, id string) error {
	return b.remove(bucketPersonas, id)
}

func (b *Bolt) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	var out []*domain.Persona
	err := b.each(bucketPersonas, func(data []byte) error {
		var p domain.Persona
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (b *Bolt) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	return b.put(bucketPipelines, p.ID, p)
}

func (b *Bolt) GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error) {
	var p domain.Pipeline
	found, err := b.get(bucketPipelines, id, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: pipeline %s", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (b *Bolt) ListPipelines(ctx context.Context) ([]*domain.Pipeline, error) {
	var out []*domain.Pipeline
	err := b.each(bucketPipelines, func(data []byte) error {
		var p domain.Pipeline
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (b *Bolt) SaveRun(ctx context.Context, r *domain.RunResult) error {
	enc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRuns)
		if bkt.Get([]byte(r.ID)) != nil {
			return fmt.Errorf("run %s already saved", r.ID)
		}
		return bkt.Put([]byte(r.ID), enc)
	})
}

func (b *Bolt) GetRun(ctx context.Context, id string) (*domain.RunResult, error) {
	var r domain.RunResult
	found, err := b.get(bucketRuns, id, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
	}
	return &r, nil
}

func (b *Bolt) ListRuns(ctx context.Context) ([]*domain.RunResult, error) {
	return b.filterRuns(func(*domain.RunResult) bool { return true })
}

func (b *Bolt) ListRunsForUser(ctx context.Context, userID string) ([]*domain.RunResult, error) {
	return b.filterRuns(func(r *domain.RunResult) bool { return r.Metadata.UserID == userID })
}

func (b *Bolt) filterRuns(keep func(*domain.RunResult) bool) ([]*domain.RunResult, error) {
	var out []*domain.RunResult
	err := b.each(bucketRuns, func(data []byte) error {
		var r domain.RunResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		if keep(&r) {
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (b *Bolt) DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error) {
	var removed []string
	err := b.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		err := runs.ForEach(func(k, data []byte) error {
			var r domain.RunResult
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			if r.CreatedAt.Before(t) {
				removed = append(removed, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range removed {
			if err := runs.Delete([]byte(id)); err != nil {
				return err
			}
			if _, err := clearTurns(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	sort.Strings(removed)
	return removed, err
}

func turnPrefix(runID string) []byte {
	return []byte(runID + "/")
}

func (b *Bolt) AppendTurn(ctx context.Context, t *domain.Turn) error {
	enc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketTurns)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%020d", t.RunID, seq)
		return bkt.Put([]byte(key), enc)
	})
}

func (b *Bolt) ListTurns(ctx context.Context, runID string) ([]*domain.Turn, error) {
	var out []*domain.Turn
	prefix := turnPrefix(runID)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTurns).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var t domain.Turn
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

func (b *Bolt) ClearTurns(ctx context.Context, runID string) (int, error) {
	var n int
	err := b.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = clearTurns(tx, runID)
		return err
	})
	return n, err
}

func clearTurns(tx *bolt.Tx, runID string) (int, error) {
	prefix := turnPrefix(runID)
	bkt := tx.Bucket(bucketTurns)
	var keys [][]byte
	c := bkt.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := bkt.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// Close releases the bolt file
func (b *Bolt) Close() error {
	return b.db.Close()
}
