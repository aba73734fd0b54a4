// Package archive records the outcome of every pipeline run.
//
// The server reports the latest record on its status endpoint, and
// long-running deployments keep the history in MongoDB to see when an
// upstream product stopped updating.
package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// Record describes one pipeline run.
type Record struct {
	ID        string         `json:"id" bson:"_id"`
	Title     string         `json:"title" bson:"title"`
	URL       string         `json:"url" bson:"url"`
	StartedAt time.Time      `json:"startedAt" bson:"startedAt"`
	Duration  time.Duration  `json:"duration" bson:"duration"`
	Outputs   []OutputRecord `json:"outputs" bson:"outputs"`
	Error     string         `json:"error,omitempty" bson:"error,omitempty"`
}

// OutputRecord describes one rendered output of a run.
type OutputRecord struct {
	Files []string   `json:"files" bson:"files"`
	Areas []geo.Area `json:"areas,omitempty" bson:"areas,omitempty"`
	Error string     `json:"error,omitempty" bson:"error,omitempty"`
}

// Failed reports whether the run or any of its outputs failed.
func (r *Record) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, o := range r.Outputs {
		if o.Error != "" {
			return true
		}
	}
	return false
}

// Store persists records. Implementations must be safe for concurrent use.
type Store interface {
	// Save stores rec.
	Save(ctx context.Context, rec Record) error

	// Latest returns the most recent record with the given title, or a
	// NOT_FOUND error.
	Latest(ctx context.Context, title string) (*Record, error)

	// Close releases the store's resources.
	Close() error
}

// NullStore discards every record.
type NullStore struct{}

func (NullStore) Save(context.Context, Record) error { return nil }

func (NullStore) Latest(_ context.Context, title string) (*Record, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "no run recorded for %q", title)
}

func (NullStore) Close() error { return nil }

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	limit   int
}

// NewMemoryStore returns a store holding at most limit records. A limit of
// zero or less keeps everything.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

// Save appends rec, evicting the oldest record when full.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.limit > 0 && len(s.records) > s.limit {
		s.records = s.records[len(s.records)-s.limit:]
	}
	return nil
}

// Latest returns the record with the newest StartedAt for title.
func (s *MemoryStore) Latest(_ context.Context, title string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Record
	for i := range s.records {
		r := &s.records[i]
		if r.Title != title {
			continue
		}
		if best == nil || !r.StartedAt.Before(best.StartedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no run recorded for %q", title)
	}
	rec := *best
	return &rec, nil
}

// All returns every stored record, newest first.
func (s *MemoryStore) All() []Record {
	s.mu.RLock()
	out := append([]Record(nil), s.records...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Close does nothing.
func (s *MemoryStore) Close() error { return nil }

var (
	_ Store = NullStore{}
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)
