package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// #region helpers

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #endregion

// #region chunk-tests

func TestReplaceAndNearestChunks(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "a", Content: "alpha", Vector: []float32{1, 0, 0}},
		{ID: "b", Content: "beta", Vector: []float32{0, 1, 0}, Metadata: map[string]string{"page": "2"}},
		{ID: "c", Content: "gamma", Vector: []float32{0.9, 0.1, 0}},
	}
	if err := s.ReplaceChunks(ctx, "acme", "doc-1", chunks); err != nil {
		t.Fatalf("replace chunks: %v", err)
	}

	matches, err := s.NearestChunks(ctx, "acme", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches: got %d, want 2", len(matches))
	}
	if matches[0].ID != "a" || matches[1].ID != "c" {
		t.Errorf("ranking: got [%s %s], want [a c]", matches[0].ID, matches[1].ID)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("identical vector score: got %v, want ~1", matches[0].Score)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("not descending: %v then %v", matches[0].Score, matches[1].Score)
	}
}

func TestNearestChunks_TenantIsolation(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.ReplaceChunks(ctx, "acme", "doc", []Chunk{{Content: "acme data", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("replace acme: %v", err)
	}
	if err := s.ReplaceChunks(ctx, "globex", "doc", []Chunk{{Content: "globex data", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("replace globex: %v", err)
	}

	matches, err := s.NearestChunks(ctx, "acme", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(matches) != 1 || matches[0].Content != "acme data" {
		t.Fatalf("tenant leak: got %+v", matches)
	}
}

func TestReplaceChunks_ReplacesPerSource(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.ReplaceChunks(ctx, "acme", "doc-1", []Chunk{{Content: "old", Vector: []float32{1}}}); err != nil {
		t.Fatalf("seed doc-1: %v", err)
	}
	if err := s.ReplaceChunks(ctx, "acme", "doc-2", []Chunk{{Content: "other", Vector: []float32{1}}}); err != nil {
		t.Fatalf("seed doc-2: %v", err)
	}

	// Re-syncing doc-1 must swap its chunks without touching doc-2.
	if err := s.ReplaceChunks(ctx, "acme", "doc-1", []Chunk{
		{Content: "new 1", Vector: []float32{1}},
		{Content: "new 2", Vector: []float32{1}},
	}); err != nil {
		t.Fatalf("resync doc-1: %v", err)
	}

	n, err := s.CountChunks(ctx, "acme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("chunk count: got %d, want 3", n)
	}

	matches, err := s.NearestChunks(ctx, "acme", []float32{1}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	for _, m := range matches {
		if m.Content == "old" {
			t.Errorf("stale chunk survived re-sync: %+v", m)
		}
	}
}

func TestChunkMetadataRoundtrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	chunks := []Chunk{{Content: "x", Vector: []float32{1}, Metadata: map[string]string{"source": "handbook.pdf", "page": "7"}}}
	if err := s.ReplaceChunks(ctx, "acme", "doc", chunks); err != nil {
		t.Fatalf("replace: %v", err)
	}

	matches, err := s.NearestChunks(ctx, "acme", []float32{1}, 1)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if matches[0].Metadata["source"] != "handbook.pdf" || matches[0].Metadata["page"] != "7" {
		t.Errorf("metadata: got %+v", matches[0].Metadata)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, math.MaxFloat32}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero-vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// #endregion chunk-tests

// #region row-tests

func seedOrders(t *testing.T, s *Store) {
	t.Helper()
	rows := []StructuredRow{
		{SheetName: "orders", RowNumber: 1, Fields: map[string]any{"Customer": "Alice", "Amount": 100.5, "Quantity": int64(2)}},
		{SheetName: "orders", RowNumber: 2, Fields: map[string]any{"Customer": "Bob", "Amount": 50.25, "Quantity": int64(1)}},
		{SheetName: "orders", RowNumber: 3, Fields: map[string]any{"Customer": "Carol", "Amount": 200.0, "Quantity": int64(4)}},
	}
	if err := s.ReplaceRows(context.Background(), "acme", "sheet-1", rows); err != nil {
		t.Fatalf("seed rows: %v", err)
	}
}

func TestStructuredRowQueries(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	seedOrders(t, s)

	has, err := s.HasStructuredData(ctx, "acme")
	if err != nil {
		t.Fatalf("has data: %v", err)
	}
	if !has {
		t.Error("expected structured data for acme")
	}

	has, err = s.HasStructuredData(ctx, "globex")
	if err != nil {
		t.Fatalf("has data globex: %v", err)
	}
	if has {
		t.Error("globex should have no structured data")
	}

	sheets, err := s.DistinctSheets(ctx, "acme")
	if err != nil {
		t.Fatalf("sheets: %v", err)
	}
	if len(sheets) != 1 || sheets[0] != "orders" {
		t.Errorf("sheets: got %v", sheets)
	}

	n, err := s.CountRows(ctx, "acme", "orders")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("sheet count: got %d, want 3", n)
	}
	n, err = s.CountRows(ctx, "acme", "")
	if err != nil {
		t.Fatalf("count all: %v", err)
	}
	if n != 3 {
		t.Errorf("tenant count: got %d, want 3", n)
	}
}

func TestSampleRow_TypePreservation(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	seedOrders(t, s)

	sample, err := s.SampleRow(ctx, "acme", "orders")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if sample == nil {
		t.Fatal("sample is nil")
	}

	if _, ok := sample["Quantity"].(int64); !ok {
		t.Errorf("Quantity: got %T, want int64", sample["Quantity"])
	}
	if _, ok := sample["Amount"].(float64); !ok {
		t.Errorf("Amount: got %T, want float64", sample["Amount"])
	}
	if _, ok := sample["Customer"].(string); !ok {
		t.Errorf("Customer: got %T, want string", sample["Customer"])
	}
}

func TestSampleRow_EmptySheet(t *testing.T) {
	s := tempStore(t)

	sample, err := s.SampleRow(context.Background(), "acme", "missing")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if sample != nil {
		t.Errorf("got %+v, want nil", sample)
	}
}

func TestRunSelect(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	seedOrders(t, s)

	// A different tenant's rows must never reach the result.
	if err := s.ReplaceRows(ctx, "globex", "sheet-1", []StructuredRow{
		{SheetName: "orders", RowNumber: 1, Fields: map[string]any{"Customer": "Mallory", "Amount": 9999.0}},
	}); err != nil {
		t.Fatalf("seed globex: %v", err)
	}

	out, err := s.RunSelect(ctx, "acme",
		`SELECT COUNT(*) AS n, SUM(CAST(json_extract(fields, '$.Amount') AS REAL)) AS total
		 FROM structured_rows WHERE tenant_id = :tenant_id`)
	if err != nil {
		t.Fatalf("run select: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("rows: got %d, want 1", len(out))
	}
	if n, ok := out[0]["n"].(int64); !ok || n != 3 {
		t.Errorf("n: got %v (%T), want 3", out[0]["n"], out[0]["n"])
	}
	total, ok := out[0]["total"].(float64)
	if !ok || math.Abs(total-350.75) > 1e-9 {
		t.Errorf("total: got %v (%T), want 350.75", out[0]["total"], out[0]["total"])
	}
}

func TestRunSelect_FieldExtraction(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	seedOrders(t, s)

	out, err := s.RunSelect(ctx, "acme",
		`SELECT json_extract(fields, '$.Customer') AS customer
		 FROM structured_rows
		 WHERE tenant_id = :tenant_id AND CAST(json_extract(fields, '$.Amount') AS REAL) > 99
		 ORDER BY row_number`)
	if err != nil {
		t.Fatalf("run select: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("rows: got %d, want 2", len(out))
	}
	if out[0]["customer"] != "Alice" || out[1]["customer"] != "Carol" {
		t.Errorf("customers: got %v, %v", out[0]["customer"], out[1]["customer"])
	}
}

// #endregion row-tests

// #region tenant-tests

func TestTenantPersona(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	persona, err := s.Persona(ctx, "acme")
	if err != nil {
		t.Fatalf("persona: %v", err)
	}
	if persona != "" {
		t.Errorf("unset persona: got %q, want empty", persona)
	}

	if err := s.UpsertTenant(ctx, "acme", "You are the Acme helpdesk."); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertTenant(ctx, "acme", "You are the Acme concierge."); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	persona, err = s.Persona(ctx, "acme")
	if err != nil {
		t.Fatalf("persona: %v", err)
	}
	if persona != "You are the Acme concierge." {
		t.Errorf("persona: got %q", persona)
	}
}

// #endregion tenant-tests
