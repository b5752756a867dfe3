package vendors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// DateLayout is the day granularity used for LastSeen.
const DateLayout = "2006-01-02"

// Record is one vendor history row, keyed by (Vendor, Location).
type Record struct {
	Vendor              string `mapstructure:"vendor" json:"vendor"`
	Location            string `mapstructure:"location" json:"location"`
	Activity            string `mapstructure:"activity" json:"activity"`
	HasChargedTaxBefore string `mapstructure:"has_charged_tax_before" json:"has_charged_tax_before"` // "Yes" | "No"
	LastSeen            string `mapstructure:"last_seen" json:"last_seen"`                           // YYYY-MM-DD
}

func (r Record) key() [2]string { return [2]string{r.Vendor, r.Location} }

// Store is the per-entity vendor history. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for LastSeen.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert records that vendor at location was seen today, deriving the tax
// flag from taxApplied. The row is placed at the end of the history and any
// earlier row with the same (vendor, location) is dropped.
func (s *Store) Upsert(vendor, location, activity string, taxApplied any) Record {
	rec := Record{
		Vendor:              vendor,
		Location:            location,
		Activity:            activity,
		HasChargedTaxBefore: HasChargedTax(taxApplied),
		LastSeen:            s.now().Format(DateLayout),
	}
	s.Put(rec)
	return rec
}

// Put appends rec and collapses duplicate keys, keeping the last occurrence.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = dedupKeepLast(append(s.records, rec))
}

// Get returns the record for (vendor, location).
func (s *Store) Get(vendor, location string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Vendor == vendor && r.Location == location {
			return r, true
		}
	}
	return Record{}, false
}

// Delete removes the record for (vendor, location), reporting whether one existed.
func (s *Store) Delete(vendor, location string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.Vendor == vendor && r.Location == location {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true
		}
	}
	return false
}

// Records returns a copy of the history in insertion order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func dedupKeepLast(in []Record) []Record {
	last := make(map[[2]string]int, len(in))
	for i, r := range in {
		last[r.key()] = i
	}
	out := in[:0]
	for i, r := range in {
		if last[r.key()] == i {
			out = append(out, r)
		}
	}
	return out
}

// HasChargedTax returns "Yes" when the parsed tax amount is positive.
func HasChargedTax(taxApplied any) string {
	if ParseTaxAmount(taxApplied) > 0 {
		return "Yes"
	}
	return "No"
}

// ParseTaxAmount coerces a model-supplied tax value to a number after
// stripping "$", "," and whitespace. Anything unparseable is 0.
func ParseTaxAmount(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		return parseMoney(t)
	default:
		return parseMoney(fmt.Sprint(t))
	}
}

// parseMoney drops currency symbols, thousands separators and whitespace.
func parseMoney(s string) float64 {
	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
