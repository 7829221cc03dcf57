package main

// #region imports
import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/docubot-ai/engine/internal/config"
	"github.com/docubot-ai/engine/internal/embed"
	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/vectorstore"
)

// #endregion

// #region main

// ingest loads fixture data for a tenant: a .csv file becomes structured
// rows (header row = column names), anything else becomes embedded text
// chunks split on blank lines. Re-ingesting a source replaces it
// atomically.
func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	tenant := flag.String("tenant", "", "tenant to load data into")
	file := flag.String("file", "", "file to ingest (.csv for structured rows, .txt for chunks)")
	source := flag.String("source", "", "source id (defaults to the file name)")
	sheet := flag.String("sheet", "Sheet1", "sheet name for structured rows")
	persona := flag.String("persona", "", "set the tenant's system prompt")
	flag.Parse()

	if *tenant == "" || (*file == "" && *persona == "") {
		fmt.Fprintln(os.Stderr, "usage: ingest --tenant id [--file data.csv|notes.txt] [--sheet name] [--source id] [--persona text]")
		os.Exit(2)
	}
	if *source == "" {
		*source = filepath.Base(*file)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if *persona != "" {
		if err := st.UpsertTenant(ctx, *tenant, *persona); err != nil {
			fatal("set persona: %v", err)
		}
		fmt.Printf("persona set for tenant %s\n", *tenant)
	}
	if *file == "" {
		return
	}

	if strings.EqualFold(filepath.Ext(*file), ".csv") {
		n, err := ingestCSV(ctx, st, *tenant, *source, *sheet, *file)
		if err != nil {
			fatal("ingest csv: %v", err)
		}
		fmt.Printf("loaded %d rows into tenant %s sheet %q\n", n, *tenant, *sheet)
		return
	}

	n, err := ingestText(ctx, cfg, st, *tenant, *source, *file)
	if err != nil {
		fatal("ingest text: %v", err)
	}
	fmt.Printf("loaded %d chunks into tenant %s\n", n, *tenant)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// #endregion main

// #region csv

func ingestCSV(ctx context.Context, st *store.Store, tenant, source, sheet, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("need a header row and at least one data row")
	}

	header := records[0]
	rows := make([]store.StructuredRow, 0, len(records)-1)
	for i, record := range records[1:] {
		fields := make(map[string]any, len(header))
		for col, name := range header {
			if col < len(record) {
				fields[name] = parseCell(record[col])
			}
		}
		rows = append(rows, store.StructuredRow{
			SheetName: sheet,
			RowNumber: i + 1,
			Fields:    fields,
		})
	}

	if err := st.ReplaceRows(ctx, tenant, source, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// parseCell keeps the integer/float/text split the schema inspector
// infers from.
func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// #endregion csv

// #region text

func ingestText(ctx context.Context, cfg *config.Config, st *store.Store, tenant, source, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var texts []string
	for _, block := range strings.Split(string(data), "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			texts = append(texts, trimmed)
		}
	}
	if len(texts) == 0 {
		return 0, fmt.Errorf("no text found in %s", path)
	}

	client, err := embed.NewClient(embed.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout(),
	})
	if err != nil {
		return 0, err
	}
	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]store.Chunk, len(texts))
	for i := range texts {
		chunks[i] = store.Chunk{
			Content:  texts[i],
			Vector:   vectors[i],
			Metadata: map[string]string{"file": filepath.Base(path)},
		}
	}

	index, err := vectorstore.New(cfg.VectorStore, st)
	if err != nil {
		return 0, err
	}
	if err := index.ReplaceSource(ctx, tenant, source, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// #endregion text
