package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartosicilia/TaxlexIA/internal/entity"
	"github.com/bartosicilia/TaxlexIA/internal/llm"
	"github.com/bartosicilia/TaxlexIA/internal/metrics"
	"github.com/bartosicilia/TaxlexIA/internal/ocr"
)

// stubExtractor returns Data as text; names listed in fail/panics misbehave.
type stubExtractor struct {
	fail   map[string]string
	panics map[string]bool
	delay  map[string]time.Duration
}

func (s stubExtractor) Extract(ctx context.Context, data []byte, name string) (ocr.ExtractionResult, error) {
	if d := s.delay[name]; d > 0 {
		time.Sleep(d)
	}
	if s.panics[name] {
		panic("corrupt xref table")
	}
	if txt, ok := s.fail[name]; ok {
		return ocr.ExtractionResult{FileName: name, Text: txt, Method: ocr.MethodFailed},
			&ocr.ExtractionError{FileName: name, Text: txt, Err: errors.New("boom")}
	}
	return ocr.ExtractionResult{FileName: name, Text: string(data), Method: ocr.MethodNative, Pages: 1}, nil
}

// scriptedCompleter answers with replies[text]; unknown text is a call error.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	idx := strings.LastIndex(prompt, "\n")
	text := prompt[idx+1:]
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if r, ok := s.replies[text]; ok {
		return r, nil
	}
	return "", fmt.Errorf("no reply for %q", text)
}

func newAnalyzer(c llm.Completer) *llm.Analyzer {
	return llm.NewAnalyzer(c, llm.AnalyzerConfig{Lenient: true}, nil)
}

func fixedDay() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

func TestRun_OneRowPerFileInOrder(t *testing.T) {
	ent := entity.New("Acme")
	c := &scriptedCompleter{replies: map[string]string{
		"a": `{"Vendor": "V1", "Ship From": "Austin, TX", "What is being sold": "Paper", "Tax Applied": "$1.00", "File Name": "model-guess.pdf"}`,
		"b": `{"Vendor": "V2", "Tax Applied": "0"}`,
	}}
	p := New(stubExtractor{}, newAnalyzer(c), nil)

	res, err := p.Run(context.Background(), ent, []File{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.BatchID)

	tbl := res.Table
	assert.Equal(t, entity.DefaultExportSchema().Headers(), tbl.Columns)
	require.Len(t, tbl.Rows, 2)

	v, _ := tbl.Value(0, "File Name")
	assert.Equal(t, "a.pdf", v)
	v, _ = tbl.Value(1, "File Name")
	assert.Equal(t, "b.pdf", v)
	v, _ = tbl.Value(1, "Ship From")
	assert.Equal(t, "N/A", v)
	v, _ = tbl.Value(0, "Tax Applied")
	assert.Equal(t, "$1.00", v)

	recs := ent.Vendors.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "V1", recs[0].Vendor)
	assert.Equal(t, "Austin, TX", recs[0].Location)
	assert.Equal(t, "Paper", recs[0].Activity)
	assert.Equal(t, "Yes", recs[0].HasChargedTaxBefore)
	assert.Equal(t, "V2", recs[1].Vendor)
	assert.Equal(t, "Unknown", recs[1].Location)
	assert.Equal(t, "Unknown", recs[1].Activity)
	assert.Equal(t, "No", recs[1].HasChargedTaxBefore)
}

func TestRun_ErrorsBecomeSentinelRowsAndSkipHistory(t *testing.T) {
	ent := entity.New("Acme")
	c := &scriptedCompleter{replies: map[string]string{
		"ok1": `{"Vendor": "Good", "Tax Applied": 2}`,
		"ok2": `{"Vendor": "Good2"}`,
	}}
	extractor := stubExtractor{
		fail:   map[string]string{"scan.pdf": "Unable to read the file."},
		panics: map[string]bool{"crash.pdf": true},
	}
	p := New(extractor, newAnalyzer(c), nil)

	files := []File{
		{Name: "one.pdf", Data: []byte("ok1")},
		{Name: "scan.pdf", Data: []byte("ignored")},
		{Name: "crash.pdf", Data: []byte("ignored")},
		{Name: "model.pdf", Data: []byte("unscripted")},
		{Name: "two.pdf", Data: []byte("ok2")},
	}
	res, err := p.Run(context.Background(), ent, files)
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 5)
	require.Len(t, res.Files, 5)

	vendorsCol := func(i int) any { v, _ := res.Table.Value(i, "Vendor"); return v }
	assert.Equal(t, "Good", vendorsCol(0))
	assert.Equal(t, "FILE_ERROR", vendorsCol(1))
	assert.Equal(t, "FILE_ERROR", vendorsCol(2))
	assert.Equal(t, "AI_ERROR", vendorsCol(3))
	assert.Equal(t, "Good2", vendorsCol(4))

	total, _ := res.Table.Value(1, "Total Amount")
	assert.Equal(t, 0, total)
	name, _ := res.Table.Value(2, "File Name")
	assert.Equal(t, "crash.pdf", name)

	assert.Equal(t, llm.KindFileError, res.Files[2].Analysis.Kind)
	assert.True(t, strings.HasPrefix(res.Files[2].Analysis.Message, "Error Details: "))
	assert.Error(t, res.Files[2].Err)
	assert.Equal(t, ocr.MethodFailed, res.Files[1].Method)

	// failed extractions never reach the model
	assert.NotContains(t, c.calls, "ignored")
	assert.NotContains(t, c.calls, "Unable to read the file.")

	recs := ent.Vendors.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Good", recs[0].Vendor)
	assert.Equal(t, "Good2", recs[1].Vendor)
}

func TestRun_UnreadableFileKeepsBatch(t *testing.T) {
	ent := entity.New("Acme")
	c := &scriptedCompleter{replies: map[string]string{
		"a": `{"Vendor": "V1"}`,
		"c": `{"Vendor": "V3"}`,
	}}
	p := New(stubExtractor{}, newAnalyzer(c), nil)

	res, err := p.Run(context.Background(), ent, []File{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "gone.pdf", Err: errors.New("read gone.pdf: no such file or directory")},
		{Name: "c.pdf", Data: []byte("c")},
	})
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 3)

	v, _ := res.Table.Value(1, "Vendor")
	assert.Equal(t, "FILE_ERROR", v)
	name, _ := res.Table.Value(1, "File Name")
	assert.Equal(t, "gone.pdf", name)
	assert.Equal(t, ocr.MethodFailed, res.Files[1].Method)
	assert.Error(t, res.Files[1].Err)
	assert.Equal(t, "Error Details: read gone.pdf: no such file or directory", res.Files[1].Analysis.Message)

	assert.Len(t, c.calls, 2)
	assert.Equal(t, 2, ent.Vendors.Len())
}

func TestRun_EmptySchemaUsesKeyUnion(t *testing.T) {
	ent := entity.New("Acme")
	ent.Schema = nil
	c := &scriptedCompleter{replies: map[string]string{
		"a": `{"Vendor": "V", "Total": 5}`,
		"b": `{"Invoice": "7", "Vendor": "W"}`,
	}}
	p := New(stubExtractor{}, newAnalyzer(c), nil)

	res, err := p.Run(context.Background(), ent, []File{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendor", "Total", "File Name", "Invoice"}, res.Table.Columns)
	assert.Equal(t, []any{"W", "N/A", "b.pdf", "7"}, res.Table.Rows[1])
}

func TestRun_DuplicateVendorLastWins(t *testing.T) {
	ent := entity.New("Acme")
	c := &scriptedCompleter{replies: map[string]string{
		"a": `{"Vendor": "Acme", "Ship From": "Austin, TX", "What is being sold": "Chairs", "Tax Applied": "5"}`,
		"b": `{"Vendor": "Acme", "Ship From": "Austin, TX", "What is being sold": "Desks", "Tax Applied": "0"}`,
	}}
	p := New(stubExtractor{}, newAnalyzer(c), nil)

	_, err := p.Run(context.Background(), ent, []File{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)

	recs := ent.Vendors.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "Desks", recs[0].Activity)
	assert.Equal(t, "No", recs[0].HasChargedTaxBefore)
}

func TestRun_ParallelKeepsInputOrder(t *testing.T) {
	ent := entity.New("Acme")
	replies := map[string]string{}
	var files []File
	delay := map[string]time.Duration{}
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("t%d", i)
		// every file reports the same vendor key; the last input must win
		replies[key] = fmt.Sprintf(`{"Vendor": "Same", "Ship From": "X", "What is being sold": %q}`, key)
		name := fmt.Sprintf("f%d.pdf", i)
		files = append(files, File{Name: name, Data: []byte(key)})
		delay[name] = time.Duration(8-i) * 5 * time.Millisecond
	}

	var mu sync.Mutex
	var seen []int
	obs := ObserverFunc(func(done, total int, r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 8, total)
		seen = append(seen, done)
	})

	p := New(stubExtractor{delay: delay}, newAnalyzer(&scriptedCompleter{replies: replies}), nil,
		WithConcurrency(4), WithObserver(obs))
	res, err := p.Run(context.Background(), ent, files)
	require.NoError(t, err)

	for i := range files {
		name, _ := res.Table.Value(i, "File Name")
		assert.Equal(t, files[i].Name, name)
		assert.Equal(t, i, res.Files[i].Index)
	}
	recs := ent.Vendors.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "t7", recs[0].Activity)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, seen)
}

func TestRun_SchemaSnapshot(t *testing.T) {
	ent := entity.New("Acme")
	ent.Schema = entity.ExportSchema{{Header: "Vendor", Description: "v"}}

	var once sync.Once
	c := &scriptedCompleter{replies: map[string]string{"a": `{"Vendor": "V"}`, "b": `{"Vendor": "W"}`}}
	obs := ObserverFunc(func(done, total int, r FileResult) {
		once.Do(func() { ent.Schema = append(ent.Schema, entity.Column{Header: "Late"}) })
	})
	p := New(stubExtractor{}, newAnalyzer(c), nil, WithObserver(obs))

	res, err := p.Run(context.Background(), ent, []File{{Name: "a.pdf", Data: []byte("a")}, {Name: "b.pdf", Data: []byte("b")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendor"}, res.Table.Columns)
}

func TestRun_PromptCarriesEntityContext(t *testing.T) {
	ent := entity.New("Acme")
	ent.BusinessType = ""
	require.NoError(t, ent.AddLocation(entity.Location{City: "Austin", State: "TX", Zip: "78701"}))

	var prompts []string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return `{}`, nil
	})
	p := New(stubExtractor{}, newAnalyzer(c), nil)
	_, err := p.Run(context.Background(), ent, []File{{Name: "a.pdf", Data: []byte("text")}})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Physical Location: Austin, TX 78701")
	assert.Contains(t, prompts[0], "Business Type: General")
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipeline(reg)
	require.NoError(t, err)

	ent := entity.New("Acme")
	c := &scriptedCompleter{replies: map[string]string{"a": `{"Vendor": "V"}`}}
	p := New(stubExtractor{fail: map[string]string{"bad.pdf": "Error Details: x"}}, newAnalyzer(c), nil, WithMetrics(m))

	_, err = p.Run(context.Background(), ent, []File{{Name: "a.pdf", Data: []byte("a")}, {Name: "bad.pdf"}})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "taxlexia_pipeline_files_total", "taxlexia_pipeline_vendor_upserts_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_NilEntity(t *testing.T) {
	p := New(stubExtractor{}, newAnalyzer(nil), nil)
	_, err := p.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRun_EmptyBatch(t *testing.T) {
	p := New(stubExtractor{}, newAnalyzer(nil), nil)
	res, err := p.Run(context.Background(), entity.New("x"), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Table.Rows)
	assert.Len(t, res.Table.Columns, 11)
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
