package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bartosicilia/TaxlexIA/internal/llm"
)

func fields(kv ...any) *llm.Fields {
	f := llm.NewFields()
	for i := 0; i < len(kv); i += 2 {
		f.Set(kv[i].(string), kv[i+1])
	}
	return f
}

func TestMaterialize_WithHeaders(t *testing.T) {
	recs := []*llm.Fields{
		fields("Vendor", "A", "Extra", 1),
		fields("Total", 2.5, "Vendor", nil),
	}
	tbl := Materialize(recs, []string{"Vendor", "Total"})
	assert.Equal(t, []string{"Vendor", "Total"}, tbl.Columns)
	assert.Equal(t, [][]any{{"A", "N/A"}, {nil, 2.5}}, tbl.Rows)
}

func TestMaterialize_UnionInFirstSeenOrder(t *testing.T) {
	recs := []*llm.Fields{
		fields("B", 1, "A", 2),
		fields("C", 3, "B", 4),
	}
	tbl := Materialize(recs, nil)
	assert.Equal(t, []string{"B", "A", "C"}, tbl.Columns)
	assert.Equal(t, []any{4, "N/A", 3}, tbl.Rows[1])
}

func TestMaterialize_DoesNotAliasHeaders(t *testing.T) {
	headers := []string{"X"}
	tbl := Materialize(nil, headers)
	tbl.Columns[0] = "changed"
	assert.Equal(t, "X", headers[0])
}

func TestTableValue(t *testing.T) {
	tbl := Materialize([]*llm.Fields{fields("A", 1)}, nil)
	v, ok := tbl.Value(0, "A")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = tbl.Value(0, "Z")
	assert.False(t, ok)
	_, ok = tbl.Value(3, "A")
	assert.False(t, ok)
}
