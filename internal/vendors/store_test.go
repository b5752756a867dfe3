package vendors

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts string) func() time.Time {
	return func() time.Time {
		t, _ := time.Parse(time.RFC3339, ts)
		return t
	}
}

func TestParseTaxAmount(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"$1,234.50", 1234.5},
		{" 12 ", 12},
		{"0.00", 0},
		{"N/A", 0},
		{"", 0},
		{nil, 0},
		{7.25, 7.25},
		{3, 3},
		{json.Number("4.5"), 4.5},
		{true, 0},
		{"-2", -2},
		{"€12.00", 12},
		{"£ 3.10", 3.1},
		{"¥1,000", 1000},
		{"12.00\u00a0€", 12},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			assert.InDelta(t, tc.want, ParseTaxAmount(tc.in), 1e-9)
		})
	}
}

func TestHasChargedTax(t *testing.T) {
	assert.Equal(t, "Yes", HasChargedTax("$0.01"))
	assert.Equal(t, "No", HasChargedTax("0"))
	assert.Equal(t, "No", HasChargedTax("none"))
	assert.Equal(t, "No", HasChargedTax(-5.0))
	assert.Equal(t, "Yes", HasChargedTax("€12.00"))
}

func TestUpsert_DedupKeepsLastAndMovesToEnd(t *testing.T) {
	s := NewStore(WithClock(fixedClock("2025-03-04T15:04:05Z")))

	s.Upsert("Acme", "Austin, TX", "Widgets", "$10.00")
	s.Upsert("Globex", "Reno, NV", "Gadgets", 0)
	s.Upsert("Acme", "Austin, TX", "Widgets v2", "0")

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Globex", recs[0].Vendor)
	assert.Equal(t, Record{
		Vendor:              "Acme",
		Location:            "Austin, TX",
		Activity:            "Widgets v2",
		HasChargedTaxBefore: "No",
		LastSeen:            "2025-03-04",
	}, recs[1])
}

func TestUpsert_DistinctLocationsAreDistinctKeys(t *testing.T) {
	s := NewStore()
	s.Upsert("Acme", "Austin, TX", "x", 1)
	s.Upsert("Acme", "Dallas, TX", "x", 1)
	assert.Equal(t, 2, s.Len())

	_, ok := s.Get("Acme", "Dallas, TX")
	assert.True(t, ok)
}

func TestPut_CollapsesPreexistingDuplicates(t *testing.T) {
	s := NewStore()
	s.records = []Record{
		{Vendor: "A", Location: "L", Activity: "old"},
		{Vendor: "A", Location: "L", Activity: "older copy"},
		{Vendor: "B", Location: "L"},
	}
	s.Put(Record{Vendor: "C", Location: "L"})

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "older copy", recs[0].Activity)
	assert.Equal(t, "C", recs[2].Vendor)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	s.Upsert("A", "L", "x", 0)
	assert.True(t, s.Delete("A", "L"))
	assert.False(t, s.Delete("A", "L"))
	assert.Equal(t, 0, s.Len())
}

func TestRecordsIsCopy(t *testing.T) {
	s := NewStore()
	s.Upsert("A", "L", "x", 0)
	recs := s.Records()
	recs[0].Vendor = "mutated"
	got, ok := s.Get("A", "L")
	require.True(t, ok)
	assert.Equal(t, "A", got.Vendor)
}

func TestConcurrentUpserts(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Upsert(fmt.Sprintf("V%d", i%10), "L", "x", i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
}
