// Package dataset generates the synthetic user-interest records that every
// backend is benchmarked with.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DefaultSize and DefaultMaxSubfields match the interactive defaults.
const (
	DefaultSize         = 100
	DefaultMaxSubfields = 10
)

// ErrInvalidOptions indicates the generation options are out of range.
var ErrInvalidOptions = errors.New("invalid dataset options")

// Record is a single user with the items they liked, disliked and bookmarked.
// Everything is keyed by UserID.
type Record struct {
	UserID    uuid.UUID   `json:"user_id"`
	Likes     []uuid.UUID `json:"likes"`
	Dislikes  []uuid.UUID `json:"dislikes"`
	Bookmarks []uuid.UUID `json:"bookmarks"`
	Score     float64     `json:"score"`
}

// Options controls dataset generation.
type Options struct {
	Size         int
	MaxSubfields int
	// Seed makes generation reproducible. Zero seeds from the clock.
	Seed int64
}

// Validate reports whether the options can produce a dataset.
func (o Options) Validate() error {
	if o.Size < 1 {
		return fmt.Errorf("%w: size must be at least 1, got %d", ErrInvalidOptions, o.Size)
	}
	if o.MaxSubfields < 0 {
		return fmt.Errorf("%w: subfields must be non-negative, got %d", ErrInvalidOptions, o.MaxSubfields)
	}
	return nil
}

// Dataset is an ordered, immutable-by-convention set of records.
type Dataset []*Record

// Generate builds opts.Size records. progress, when non-nil, is called once
// per generated record.
func Generate(ctx context.Context, opts Options, progress func()) (Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ds := make(Dataset, 0, opts.Size)
	for i := range opts.Size {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := newRecord(rng, opts.MaxSubfields)
		if err != nil {
			return nil, err
		}
		ds = append(ds, rec)
		if progress != nil {
			progress()
		}
	}
	return ds, nil
}

func newRecord(rng *rand.Rand, maxSubfields int) (*Record, error) {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	rec := &Record{UserID: id}
	for _, dst := range []*[]uuid.UUID{&rec.Likes, &rec.Dislikes, &rec.Bookmarks} {
		ids, err := randomIDs(rng, rng.Intn(maxSubfields+1))
		if err != nil {
			return nil, err
		}
		*dst = ids
	}
	rec.Score = math.Round(rng.Float64()*100) / 10
	return rec, nil
}

func randomIDs(rng *rand.Rand, n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generate subfield id: %w", err)
		}
		ids[i] = id
	}
	return ids, nil
}

// Split picks one record at random and returns it with every other record.
// The receiver is left untouched so the same dataset can be replayed against
// each backend.
func (d Dataset) Split(rng *rand.Rand) (*Record, Dataset) {
	if len(d) == 0 {
		return nil, nil
	}
	i := rng.Intn(len(d))
	rest := make(Dataset, 0, len(d)-1)
	rest = append(rest, d[:i]...)
	rest = append(rest, d[i+1:]...)
	return d[i], rest
}

// SampleIDs returns n user ids for a read workload. Ids come from a shuffled
// copy of the dataset, cycling when n exceeds its length.
func (d Dataset) SampleIDs(rng *rand.Rand, n int) []uuid.UUID {
	if len(d) == 0 || n <= 0 {
		return nil
	}
	order := rng.Perm(len(d))
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = d[order[i%len(order)]].UserID
	}
	return ids
}

// find returns the record with the given user id.
func (d Dataset) find(id uuid.UUID) (*Record, bool) {
	for _, r := range d {
		if r.UserID == id {
			return r, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	return &Record{
		UserID:    r.UserID,
		Likes:     append([]uuid.UUID{}, r.Likes...),
		Dislikes:  append([]uuid.UUID{}, r.Dislikes...),
		Bookmarks: append([]uuid.UUID{}, r.Bookmarks...),
		Score:     r.Score,
	}
}

// Equal reports whether two records carry the same values.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.UserID == o.UserID &&
		r.Score == o.Score &&
		equalIDs(r.Likes, o.Likes) &&
		equalIDs(r.Dislikes, o.Dislikes) &&
		equalIDs(r.Bookmarks, o.Bookmarks)
}

func equalIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Subfields returns the total number of ids across the three lists.
func (r *Record) Subfields() int {
	return len(r.Likes) + len(r.Dislikes) + len(r.Bookmarks)
}
