package main

// #region imports
import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/docubot-ai/engine/internal/conversation"
	"github.com/docubot-ai/engine/internal/logging"
	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/structured"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to engine.db")
	tenant := flag.String("tenant", "", "tenant to inspect")
	conversationID := flag.String("conversation", "", "dump one conversation's turns")
	decisions := flag.Int("decisions", 0, "show N most recent routing decisions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/engine.db [--tenant id] [--conversation id] [--decisions N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	switch {
	case *conversationID != "":
		err = runConversationMode(ctx, st, *conversationID, *jsonOut)
	case *decisions > 0:
		err = runDecisionMode(st, *tenant, *decisions, *jsonOut)
	case *tenant != "":
		err = runSchemaMode(ctx, st, *tenant, *jsonOut)
	default:
		fmt.Fprintln(os.Stderr, "nothing to inspect: pass --tenant, --conversation, or --decisions")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region schema-mode

func runSchemaMode(ctx context.Context, st *store.Store, tenant string, jsonOut bool) error {
	schema, err := structured.NewInspector(st).Inspect(ctx, tenant)
	if err != nil {
		return err
	}
	chunkCount, err := st.CountChunks(ctx, tenant)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"tenant": tenant,
			"chunks": chunkCount,
			"schema": schema,
		})
	}

	fmt.Printf("tenant %s: %d chunks, %d structured rows across %d sheets\n",
		tenant, chunkCount, schema.TotalRows, len(schema.Sheets))
	for _, sheet := range schema.Sheets {
		fmt.Printf("  sheet %q (%d rows)\n", sheet.Name, sheet.RowCount)
		for _, col := range sheet.Columns {
			fmt.Printf("    - %s (%s)\n", col.Name, col.Type)
		}
	}
	return nil
}

// #endregion schema-mode

// #region conversation-mode

func runConversationMode(ctx context.Context, st *store.Store, conversationID string, jsonOut bool) error {
	turns, err := conversation.NewStore(st.DB()).RecentTurns(ctx, conversationID, 1000)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Fprintln(os.Stderr, "no turns found")
		return nil
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(turns)
	}
	for _, turn := range turns {
		fmt.Printf("%-9s | %s\n", turn.Role, turn.Content)
	}
	return nil
}

// #endregion conversation-mode

// #region decision-mode

func runDecisionMode(st *store.Store, tenant string, limit int, jsonOut bool) error {
	entries, err := logging.RecentDecisions(st.DB(), tenant, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}
	for _, e := range entries {
		stage := e.Stage
		if stage == "" {
			stage = "-"
		}
		fmt.Printf("%s  %-12s %-11s %-9s stage=%-9s %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.TenantID, e.Intent, e.Path, stage, e.Reason)
	}
	return nil
}

// #endregion decision-mode
