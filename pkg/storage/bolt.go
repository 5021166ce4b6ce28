package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCampaigns = []byte("campaigns")
	bucketCache     = []byte("cache")
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrCampaignExists      = errors.New("campaign_exists")
	ErrPopulationExhausted = errors.New("population_exhausted")
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusCertified Status = "certified"
	StatusRejected  Status = "rejected"
	StatusExhausted Status = "exhausted"
)

// Campaign tracks draws without replacement from a finite population.
type Campaign struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Population          int     `json:"population"`
	Draws               int     `json:"draws"`
	Successes           int     `json:"successes"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastSuccessUnix     int64   `json:"last_success_unix"`
	LastFailureUnix     int64   `json:"last_failure_unix"`
	Status              Status  `json:"status"`
	LowerBound          float64 `json:"lower_bound"`
	CertifiedUnix       int64   `json:"certified_unix,omitempty"`
	NextAudits          []int64 `json:"next_audits,omitempty"`
}

func (c Campaign) Failures() int { return c.Draws - c.Successes }

type DB struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(bucketCampaigns); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists(bucketCache); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Close() error { return d.db.Close() }

func getCampaign(b *bolt.Bucket, id string) (*Campaign, error) {
	v := b.Get([]byte(id))
	if v == nil {
		return nil, errors.Wrapf(ErrNotFound, "campaign %q", id)
	}
	var c Campaign
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, errors.Wrapf(err, "decode campaign %q", id)
	}
	return &c, nil
}

func putCampaign(b *bolt.Bucket, c Campaign) error {
	j, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.Put([]byte(c.ID), j)
}

// CreateCampaign stores a new campaign and fails with ErrCampaignExists if the
// id is taken.
func (d *DB) CreateCampaign(c Campaign) error {
	if c.ID == "" {
		return errors.New("campaign id required")
	}
	if c.Population <= 0 {
		return errors.Errorf("campaign %q: population must be positive", c.ID)
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCampaigns)
		if b.Get([]byte(c.ID)) != nil {
			return errors.Wrapf(ErrCampaignExists, "campaign %q", c.ID)
		}
		return putCampaign(b, c)
	})
}

func (d *DB) PutCampaign(c Campaign) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putCampaign(tx.Bucket(bucketCampaigns), c)
	})
}

func (d *DB) GetCampaign(id string) (*Campaign, error) {
	var c *Campaign
	err := d.db.View(func(tx *bolt.Tx) error {
		var e error
		c, e = getCampaign(tx.Bucket(bucketCampaigns), id)
		return e
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns returns all campaigns ordered by id.
func (d *DB) ListCampaigns() ([]Campaign, error) {
	out := []Campaign{}
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).ForEach(func(k, v []byte) error {
			var c Campaign
			if err := json.Unmarshal(v, &c); err == nil {
				out = append(out, c)
			}
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (d *DB) RecordDraw(id string, success bool) (*Campaign, error) {
	return d.RecordDraws(id, []bool{success})
}

// RecordDraws applies the outcomes in order within one transaction. Nothing is
// written if the outcomes would draw more items than the population holds.
func (d *DB) RecordDraws(id string, outcomes []bool) (*Campaign, error) {
	var c *Campaign
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCampaigns)
		var e error
		if c, e = getCampaign(b, id); e != nil {
			return e
		}
		if c.Draws+len(outcomes) > c.Population {
			return errors.Wrapf(ErrPopulationExhausted, "campaign %q: %d of %d drawn, %d more requested",
				id, c.Draws, c.Population, len(outcomes))
		}
		now := d.now().Unix()
		for _, ok := range outcomes {
			c.Draws++
			if ok {
				c.Successes++
				c.LastSuccessUnix = now
				c.ConsecutiveFailures = 0
			} else {
				c.LastFailureUnix = now
				c.ConsecutiveFailures++
			}
		}
		return putCampaign(b, *c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// TestLengthKey identifies a MinTestLength evaluation in the cache.
func TestLengthKey(population int, sLimit, confidence, accuracy float64) string {
	return fmt.Sprintf("test_length/%d/%g/%g/%g", population, sLimit, confidence, accuracy)
}

func (d *DB) GetCachedTestLength(key string) (int, bool, error) {
	var (
		n     int
		found bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCache).Get([]byte(key))
		if len(v) != 8 {
			return nil
		}
		n = int(int64(binary.BigEndian.Uint64(v)))
		found = true
		return nil
	})
	return n, found, err
}

func (d *DB) PutCachedTestLength(key string, n int) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(int64(n)))
		return tx.Bucket(bucketCache).Put([]byte(key), v[:])
	})
}

// SnapshotCampaign writes an indented JSON copy of c into dir.
func (d *DB) SnapshotCampaign(c Campaign, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d.json", c.ID, d.now().Unix())
	path := filepath.Join(dir, name)
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
